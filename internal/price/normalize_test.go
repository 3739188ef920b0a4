package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{"plain decimal", "19.99", 19.99},
		{"plain integer", "42", 42},
		{"dollar prefix", "$129.99", 129.99},
		{"euro prefix", "€54.50", 54.5},
		{"pound prefix", "£9.99", 9.99},
		{"thousands separator", "$1,299.00", 1299.00},
		{"surrounding words", "Now only 89.95 while stocks last", 89.95},
		{"leading whitespace", "  \n\t$15.49 ", 15.49},
		{"first match wins", "was $99.99 now $79.99", 99.99},
		{"integer form", "save 20% today", 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.text)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_NoNumber(t *testing.T) {
	cases := []string{
		"",
		"out of stock",
		"$",
		"price unavailable",
		"€ — call for price",
	}
	for _, text := range cases {
		_, ok := Parse(text)
		assert.False(t, ok, "expected no number in %q", text)
	}
}
