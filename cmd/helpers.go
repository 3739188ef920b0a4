package main

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sells-group/pricewatch/internal/notify"
	"github.com/sells-group/pricewatch/internal/scrape"
	"github.com/sells-group/pricewatch/internal/store"
	"github.com/sells-group/pricewatch/internal/track"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.NewFromConfig(ctx, cfg.Store)
}

// buildExtractor assembles the two-stage extraction chain from the selector
// rules file (or built-in defaults).
func buildExtractor() (scrape.Extractor, error) {
	rules, err := scrape.LoadRules(cfg.Scrape.SelectorFile)
	if err != nil {
		return nil, err
	}

	static := scrape.NewStaticExtractor(scrape.StaticOptions{
		UserAgent:   cfg.Scrape.UserAgent,
		Timeout:     cfg.Scrape.Timeout(),
		RatePerHost: rate.Limit(cfg.Scrape.RatePerHost),
		RateBurst:   cfg.Scrape.RateBurst,
	}, rules.Static)

	rendered := scrape.NewRenderedExtractor(scrape.RenderedOptions{
		Bin:             cfg.Browser.Bin,
		PageLoadTimeout: cfg.Browser.PageLoadTimeout(),
		SelectorTimeout: cfg.Browser.SelectorTimeout(),
		DebugScreenshot: cfg.Browser.DebugScreenshot,
		ScreenshotDir:   cfg.Browser.ScreenshotDir,
		MaxScreenshots:  cfg.Browser.MaxScreenshots,
	}, rules.Rendered)

	return scrape.NewChain(static, rendered), nil
}

// buildChecker wires a full check cycle against the configured store.
func buildChecker(ctx context.Context) (*track.Checker, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	extractor, err := buildExtractor()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	checker := track.NewChecker(
		st,
		scrape.NewRedirectProber(cfg.Scrape.RedirectTimeout()),
		extractor,
		notify.NewEmail(cfg.SMTP),
	)
	return checker, st, nil
}
