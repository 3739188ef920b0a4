package scrape

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules holds the prioritized selector lists for both extraction stages.
// Order matters: specific selectors precede generic ones so promotional or
// sponsored-item prices are not picked up first.
type Rules struct {
	Static   []string `yaml:"static"`
	Rendered []string `yaml:"rendered"`
}

// DefaultRules returns the built-in selector priority lists. The rendered
// list is a superset tuned for dynamically built markup.
func DefaultRules() Rules {
	return Rules{
		Static: []string{
			`[itemprop="price"]`,
			`[data-testid="price-wrap"] span[itemprop="price"]`,
			`[data-automation-id="price-value"]`,
			`.price-characteristic`,
			`.prod-PriceSection [aria-hidden="false"]`,
			`span.price-group`,
		},
		Rendered: []string{
			`div[data-testid="price-wrap"] span[itemprop="price"]`,
			`[data-automation-id="product-price"]:not([data-automation-id*="sponsored"])`,
			`[data-testid="price-view"] span`,
			`[itemprop="price"]`,
			`.price-characteristic`,
			`.prod-PriceSection [aria-hidden="false"]`,
			`[data-testid*="price"]`,
			`.price`,
		},
	}
}

// LoadRules reads selector rules from a YAML file. An empty path yields the
// defaults. A named file that is missing or malformed is an error; a file
// that omits one of the lists inherits the default for it.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "scrape: read selector file %s", path)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, eris.Wrapf(err, "scrape: parse selector file %s", path)
	}

	defaults := DefaultRules()
	if len(rules.Static) == 0 {
		rules.Static = defaults.Static
	}
	if len(rules.Rendered) == 0 {
		rules.Rendered = defaults.Rendered
	}
	return rules, nil
}
