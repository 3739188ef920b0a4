package scrape

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pricewatch/internal/price"
)

// StaticOptions configures the static-document extractor.
type StaticOptions struct {
	UserAgent   string
	Timeout     time.Duration
	RatePerHost rate.Limit
	RateBurst   int
}

// StaticExtractor fetches a URL over plain HTTP with a desktop-browser
// request signature and probes a prioritized selector list against the
// parsed markup. A non-success status fails the stage outright; there is no
// retry at this layer.
type StaticExtractor struct {
	client    *http.Client
	opts      StaticOptions
	selectors []string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewStaticExtractor creates a StaticExtractor with the given selector
// priority list.
func NewStaticExtractor(opts StaticOptions, selectors []string) *StaticExtractor {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RatePerHost == 0 {
		opts.RatePerHost = 2
	}
	if opts.RateBurst == 0 {
		opts.RateBurst = 4
	}
	return &StaticExtractor{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		opts:      opts,
		selectors: selectors,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (s *StaticExtractor) Name() string { return "static_html" }

// Extract fetches and parses the document, then probes selectors in priority
// order. The first selector whose matched text normalizes to a number wins.
func (s *StaticExtractor) Extract(ctx context.Context, targetURL string) (float64, error) {
	if err := s.limiterFor(targetURL).Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "static_html: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "static_html: create request")
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "static_html: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, eris.Errorf("static_html: status %d from %s", resp.StatusCode, targetURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "static_html: parse document")
	}

	for _, selector := range s.selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.Text())
		v, ok := price.Parse(text)
		if !ok {
			zap.L().Debug("static_html: selector matched but text has no number",
				zap.String("selector", selector),
				zap.String("text", text),
			)
			continue
		}
		zap.L().Debug("static_html: price found",
			zap.String("selector", selector),
			zap.Float64("price", v),
		)
		return v, nil
	}

	return 0, eris.Errorf("static_html: no selector yielded a price for %s", targetURL)
}

// limiterFor returns the per-host rate limiter, creating one on first use.
func (s *StaticExtractor) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[host]
	if !ok {
		lim = rate.NewLimiter(s.opts.RatePerHost, s.opts.RateBurst)
		s.limiters[host] = lim
	}
	return lim
}
