// Package price normalizes raw price-bearing text into numeric values.
package price

import (
	"regexp"
	"strconv"
	"strings"
)

// numberRe matches an unsigned decimal literal, decimal-point form first so
// "19.99" is not truncated to "19".
var numberRe = regexp.MustCompile(`\d+\.\d+|\d+`)

// stripper removes comma thousands-separators and common currency glyphs
// before scanning for a number.
var stripper = strings.NewReplacer(
	",", "",
	"$", "",
	"€", "",
	"£", "",
	"¥", "",
	"₹", "",
)

// Parse returns the first decimal number found in text. The boolean is false
// when the fragment contains no parseable number; Parse never fails in any
// other way. Ambiguity policy: first match left-to-right wins, no currency
// awareness.
func Parse(text string) (float64, bool) {
	cleaned := stripper.Replace(text)
	m := numberRe.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
