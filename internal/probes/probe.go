// Package probes contains the independent checks run against a target URL.
// Each probe is side-effect free apart from its outbound fetches and
// returns zero or more findings.
package probes

import (
	"context"
	"net/http"
	"time"

	"vigil/internal/domain"
)

// Probe is one independently runnable check against a target.
type Probe interface {
	Name() string
	Run(ctx context.Context, target string) ([]domain.Finding, error)
}

// Options configure the shipped probe set.
type Options struct {
	// Timeout bounds each outbound fetch.
	Timeout time.Duration
	// UserAgent identifies the scanner to targets.
	UserAgent string
	// ExposurePace is the minimum spacing between exposure-probe requests,
	// so the scanner does not hammer the target.
	ExposurePace time.Duration
}

// DefaultSet returns the shipped probes in their fixed execution order.
// The order is part of the contract: progress percentages interpolate over
// it and must stay deterministic for the polling UI.
func DefaultSet(opts Options) []Probe {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "vigil-scanner/1.0"
	}
	if opts.ExposurePace <= 0 {
		opts.ExposurePace = 250 * time.Millisecond
	}
	client := &http.Client{Timeout: opts.Timeout}
	// The exposure probe must see raw status codes; a redirect to a login
	// page is not an exposed path.
	noRedirect := &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return []Probe{
		NewHeaderProbe(client, opts.UserAgent),
		NewCookieProbe(client, opts.UserAgent),
		NewExposureProbe(noRedirect, opts.UserAgent, opts.ExposurePace),
	}
}

func get(ctx context.Context, client *http.Client, url, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return client.Do(req)
}
