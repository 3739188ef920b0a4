package scrape

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// redirectStatuses are the standard redirect codes the prober reacts to.
var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true, // 301
	http.StatusFound:             true, // 302
	http.StatusSeeOther:          true, // 303
	http.StatusTemporaryRedirect: true, // 307
	http.StatusPermanentRedirect: true, // 308
}

// RedirectProber detects that an origin now redirects a tracked URL, without
// following the redirect.
type RedirectProber struct {
	client *http.Client
}

// NewRedirectProber creates a prober with redirect-following disabled and
// the given timeout.
func NewRedirectProber(timeout time.Duration) *RedirectProber {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &RedirectProber{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe issues a metadata-only request for the URL. It returns the redirect
// target and true when the origin answers with a redirect status carrying a
// Location header; otherwise "", false. A transport failure is returned as
// an error and is non-fatal to the caller.
func (p *RedirectProber) Probe(ctx context.Context, targetURL string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		return "", false, eris.Wrap(err, "redirect: create request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, eris.Wrapf(err, "redirect: probe %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if !redirectStatuses[resp.StatusCode] {
		return "", false, nil
	}

	// Location() resolves relative targets against the request URL.
	loc, err := resp.Location()
	if err != nil {
		return "", false, nil
	}
	return loc.String(), true, nil
}
