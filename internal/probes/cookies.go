package probes

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"vigil/internal/domain"
)

// CookieProbe fetches the target once and audits every Set-Cookie value
// for the Secure, HttpOnly and SameSite attributes. Each missing attribute
// is its own finding so remediation can be tracked per cookie.
type CookieProbe struct {
	client    *http.Client
	userAgent string
}

func NewCookieProbe(client *http.Client, userAgent string) *CookieProbe {
	return &CookieProbe{client: client, userAgent: userAgent}
}

func (p *CookieProbe) Name() string { return "cookie-audit" }

func (p *CookieProbe) Run(ctx context.Context, target string) ([]domain.Finding, error) {
	resp, err := get(ctx, p.client, target, p.userAgent)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return []domain.Finding{p.finding(domain.OutcomePass, domain.SeverityInfo,
			"No cookies set",
			"The target sets no cookies on an unauthenticated fetch; nothing to audit.",
			nil)}, nil
	}

	var findings []domain.Finding
	allStrict := true
	for _, c := range cookies {
		if !c.Secure {
			allStrict = false
			findings = append(findings, p.finding(domain.OutcomeFail, domain.SeverityMedium,
				fmt.Sprintf("Cookie %q missing Secure attribute", c.Name),
				"Without Secure the cookie is sent over plain HTTP and can be intercepted.",
				map[string]any{"cookie": c.Name}))
		}
		if !c.HttpOnly {
			allStrict = false
			findings = append(findings, p.finding(domain.OutcomeFail, domain.SeverityMedium,
				fmt.Sprintf("Cookie %q missing HttpOnly attribute", c.Name),
				"Without HttpOnly the cookie is readable by page scripts and exposed to XSS theft.",
				map[string]any{"cookie": c.Name}))
		}
		switch c.SameSite {
		case http.SameSiteLaxMode, http.SameSiteStrictMode:
		case http.SameSiteNoneMode:
			allStrict = false
			findings = append(findings, p.finding(domain.OutcomeWarning, domain.SeverityMedium,
				fmt.Sprintf("Cookie %q uses SameSite=None", c.Name),
				"SameSite=None sends the cookie on all cross-site requests; confirm this cookie really needs it.",
				map[string]any{"cookie": c.Name}))
		default:
			allStrict = false
			findings = append(findings, p.finding(domain.OutcomeFail, domain.SeverityMedium,
				fmt.Sprintf("Cookie %q missing SameSite attribute", c.Name),
				"Without SameSite the cookie rides along on cross-site requests, enabling CSRF.",
				map[string]any{"cookie": c.Name}))
		}
	}

	if allStrict {
		findings = append(findings, p.finding(domain.OutcomePass, domain.SeverityInfo,
			"Cookies carry Secure, HttpOnly and SameSite",
			fmt.Sprintf("All %d cookie(s) set Secure, HttpOnly and a restrictive SameSite attribute.", len(cookies)),
			map[string]any{"cookies": len(cookies)}))
	}
	return findings, nil
}

func (p *CookieProbe) finding(outcome domain.Outcome, sev domain.Severity, title, desc string, evidence map[string]any) domain.Finding {
	return domain.Finding{
		ProbeName:   p.Name(),
		Category:    domain.CategoryAuthFailures,
		Severity:    sev,
		Outcome:     outcome,
		Title:       title,
		Description: desc,
		Evidence:    evidence,
		Confidence:  90,
	}
}
