// Package scrape implements the cascading price-extraction pipeline: a
// static-document probe, a rendered-page fallback, and the redirect prober
// that detects canonical-URL changes.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Extractor attempts to pull a numeric price from a product URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (float64, error)
	Name() string
}

// Chain tries extractors in priority order, returning the first success.
// Any failure mode of a stage (transport error, bad status, selector
// exhaustion) falls through to the next stage.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a Chain. Extractors are tried in order.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

func (c *Chain) Name() string { return "chain" }

// Extract runs the chain for a single URL. Returns the first successful
// price, or an error once every stage is exhausted.
func (c *Chain) Extract(ctx context.Context, url string) (float64, error) {
	var lastErr error
	for _, e := range c.extractors {
		price, err := e.Extract(ctx, url)
		if err == nil {
			return price, nil
		}
		zap.L().Debug("scrape: extractor failed, trying next",
			zap.String("extractor", e.Name()),
			zap.String("url", url),
			zap.Error(err),
		)
		lastErr = err
	}
	if lastErr != nil {
		return 0, eris.Wrap(lastErr, "scrape: all extractors failed")
	}
	return 0, eris.Errorf("scrape: no extractors configured")
}
