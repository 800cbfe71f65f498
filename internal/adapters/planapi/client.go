// Package planapi adapts the external payment/plan capability to the
// PlanService port.
package planapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"vigil/internal/ports"
)

// Client talks to a remote plan service over HTTP.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		base:   baseURL,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) CheckScanLimit(ctx context.Context, requesterID string) (ports.PlanDecision, error) {
	var decision ports.PlanDecision

	endpoint := fmt.Sprintf("%s/v1/plans/%s/scan-allowance", c.base, url.PathEscape(requesterID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decision, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return decision, fmt.Errorf("plan service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decision, fmt.Errorf("plan service: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Allowed    bool   `json:"allowed"`
		Reason     string `json:"reason"`
		DailyLimit int    `json:"daily_limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decision, fmt.Errorf("plan service: decode: %w", err)
	}
	decision.Allowed = body.Allowed
	decision.Reason = body.Reason
	decision.DailyLimit = body.DailyLimit
	return decision, nil
}

func (c *Client) TrackScanUsage(ctx context.Context, requesterID string) error {
	endpoint := fmt.Sprintf("%s/v1/plans/%s/usage", c.base, url.PathEscape(requesterID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plan service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("plan service: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Static always allows scans with a fixed daily limit. Used by self-hosted
// deployments without a billing backend, and by tests.
type Static struct {
	DailyLimit int
}

func (s Static) CheckScanLimit(ctx context.Context, requesterID string) (ports.PlanDecision, error) {
	return ports.PlanDecision{Allowed: true, DailyLimit: s.DailyLimit}, nil
}

func (s Static) TrackScanUsage(ctx context.Context, requesterID string) error { return nil }
