package scrape

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/price"
)

// RenderedOptions configures the headless-browser extractor.
type RenderedOptions struct {
	// Bin is an explicit Chromium binary path; empty means auto-detect.
	Bin string

	// PageLoadTimeout bounds the initial page load.
	PageLoadTimeout time.Duration

	// SelectorTimeout bounds the wait for each selector to appear.
	SelectorTimeout time.Duration

	// DebugScreenshot enables writing a snapshot of the rendered page when
	// every selector fails.
	DebugScreenshot bool

	// ScreenshotDir is where debug snapshots are written.
	ScreenshotDir string

	// MaxScreenshots caps retained snapshots; oldest by modification time
	// are pruned beyond the cap.
	MaxScreenshots int
}

// RenderedExtractor drives a headless browser to load the URL and waits for
// any selector in its priority list to appear. The browser is instantiated
// per call and released on every exit path, so a long item list never leaks
// sessions.
type RenderedExtractor struct {
	opts      RenderedOptions
	selectors []string
}

// NewRenderedExtractor creates a RenderedExtractor with the given selector
// priority list.
func NewRenderedExtractor(opts RenderedOptions, selectors []string) *RenderedExtractor {
	if opts.PageLoadTimeout == 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	if opts.SelectorTimeout == 0 {
		opts.SelectorTimeout = 5 * time.Second
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "."
	}
	if opts.MaxScreenshots <= 0 {
		opts.MaxScreenshots = 5
	}
	return &RenderedExtractor{opts: opts, selectors: selectors}
}

func (r *RenderedExtractor) Name() string { return "rendered_page" }

// Extract loads the URL in a scoped browser session and probes selectors in
// priority order, each with a bounded wait.
func (r *RenderedExtractor) Extract(ctx context.Context, targetURL string) (float64, error) {
	l := launcher.New().Headless(true).NoSandbox(true)
	if r.opts.Bin != "" {
		l = l.Bin(r.opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return 0, eris.Wrap(err, "rendered_page: launch browser")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return 0, eris.Wrap(err, "rendered_page: connect browser")
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: targetURL})
	if err != nil {
		return 0, eris.Wrapf(err, "rendered_page: open %s", targetURL)
	}
	defer func() { _ = page.Close() }()

	if err := page.Timeout(r.opts.PageLoadTimeout).WaitLoad(); err != nil {
		return 0, eris.Wrapf(err, "rendered_page: load %s", targetURL)
	}

	for _, selector := range r.selectors {
		el, err := page.Timeout(r.opts.SelectorTimeout).Element(selector)
		if err != nil {
			zap.L().Debug("rendered_page: selector not found within budget",
				zap.String("selector", selector),
			)
			continue
		}
		text, err := el.Text()
		if err != nil {
			zap.L().Debug("rendered_page: element text unavailable",
				zap.String("selector", selector),
				zap.Error(err),
			)
			continue
		}
		v, ok := price.Parse(strings.TrimSpace(text))
		if !ok {
			zap.L().Debug("rendered_page: selector matched but text has no number",
				zap.String("selector", selector),
				zap.String("text", text),
			)
			continue
		}
		zap.L().Debug("rendered_page: price found",
			zap.String("selector", selector),
			zap.Float64("price", v),
		)
		return v, nil
	}

	if r.opts.DebugScreenshot {
		r.writeDebugScreenshot(page)
	}

	return 0, eris.Errorf("rendered_page: no selector yielded a price for %s", targetURL)
}

// writeDebugScreenshot snapshots the rendered page for offline inspection
// and prunes old snapshots beyond the retention cap.
func (r *RenderedExtractor) writeDebugScreenshot(page *rod.Page) {
	data, err := page.Screenshot(false, nil)
	if err != nil {
		zap.L().Warn("rendered_page: screenshot failed", zap.Error(err))
		return
	}

	path := filepath.Join(r.opts.ScreenshotDir, fmt.Sprintf("debug_screenshot_%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		zap.L().Warn("rendered_page: write screenshot failed", zap.Error(err))
		return
	}
	zap.L().Info("rendered_page: wrote debug screenshot", zap.String("path", path))

	if err := pruneScreenshots(r.opts.ScreenshotDir, r.opts.MaxScreenshots); err != nil {
		zap.L().Warn("rendered_page: prune screenshots failed", zap.Error(err))
	}
}

// pruneScreenshots removes the oldest debug snapshots (by modification time)
// so that at most keep remain in dir.
func pruneScreenshots(dir string, keep int) error {
	matches, err := filepath.Glob(filepath.Join(dir, "debug_screenshot_*.png"))
	if err != nil {
		return eris.Wrap(err, "glob screenshots")
	}
	if len(matches) <= keep {
		return nil
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, modTime: info.ModTime()})
	}

	if len(entries) <= keep {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })

	for _, e := range entries[:len(entries)-keep] {
		if err := os.Remove(e.path); err != nil {
			zap.L().Warn("rendered_page: remove old screenshot failed",
				zap.String("path", e.path),
				zap.Error(err),
			)
		}
	}
	return nil
}
