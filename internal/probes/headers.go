package probes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"vigil/internal/domain"
)

// oneYearSeconds is the minimum HSTS max-age considered effective.
const oneYearSeconds = 31536000

// HeaderProbe fetches the target once and audits its security response
// headers. A failed fetch is a probe error: without the response there is
// nothing to audit.
type HeaderProbe struct {
	client    *http.Client
	userAgent string
}

func NewHeaderProbe(client *http.Client, userAgent string) *HeaderProbe {
	return &HeaderProbe{client: client, userAgent: userAgent}
}

func (p *HeaderProbe) Name() string { return "header-audit" }

func (p *HeaderProbe) Run(ctx context.Context, target string) ([]domain.Finding, error) {
	resp, err := get(ctx, p.client, target, p.userAgent)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	h := resp.Header
	var findings []domain.Finding

	findings = append(findings, p.checkCSP(h))
	if strings.HasPrefix(strings.ToLower(target), "https://") {
		findings = append(findings, p.checkHSTS(h))
	}
	findings = append(findings, p.checkFrameOptions(h))
	findings = append(findings, p.checkNosniff(h))
	findings = append(findings, p.checkReferrerPolicy(h))
	return findings, nil
}

func (p *HeaderProbe) checkCSP(h http.Header) domain.Finding {
	csp := h.Get("Content-Security-Policy")
	if csp == "" {
		return p.finding(domain.OutcomeFail, domain.SeverityMedium, domain.CategoryMisconfiguration,
			"Missing Content-Security-Policy",
			"No Content-Security-Policy header was returned, leaving the site without a script-injection safety net.",
			nil)
	}
	return p.finding(domain.OutcomePass, domain.SeverityInfo, domain.CategoryMisconfiguration,
		"Content-Security-Policy present",
		"A Content-Security-Policy header is set.",
		map[string]any{"policy": truncate(csp, 500)})
}

func (p *HeaderProbe) checkHSTS(h http.Header) domain.Finding {
	hsts := h.Get("Strict-Transport-Security")
	if hsts == "" {
		return p.finding(domain.OutcomeFail, domain.SeverityMedium, domain.CategoryCryptoFailures,
			"Missing Strict-Transport-Security",
			"HTTPS responses do not set Strict-Transport-Security, so browsers will still attempt plain HTTP connections.",
			nil)
	}
	if age, ok := hstsMaxAge(hsts); ok && age < oneYearSeconds {
		return p.finding(domain.OutcomeWarning, domain.SeverityLow, domain.CategoryCryptoFailures,
			"Short Strict-Transport-Security max-age",
			fmt.Sprintf("Strict-Transport-Security max-age is %d seconds; at least one year (%d) is recommended.", age, oneYearSeconds),
			map[string]any{"header": hsts, "max_age": age})
	}
	return p.finding(domain.OutcomePass, domain.SeverityInfo, domain.CategoryCryptoFailures,
		"Strict-Transport-Security present",
		"HTTPS responses carry a Strict-Transport-Security header with an adequate max-age.",
		map[string]any{"header": hsts})
}

func (p *HeaderProbe) checkFrameOptions(h http.Header) domain.Finding {
	xfo := strings.ToUpper(h.Get("X-Frame-Options"))
	frameAncestors := strings.Contains(strings.ToLower(h.Get("Content-Security-Policy")), "frame-ancestors")
	if xfo == "DENY" || xfo == "SAMEORIGIN" || frameAncestors {
		return p.finding(domain.OutcomePass, domain.SeverityInfo, domain.CategoryMisconfiguration,
			"Framing protection present",
			"The response restricts framing via X-Frame-Options or CSP frame-ancestors.",
			map[string]any{"x_frame_options": xfo, "frame_ancestors": frameAncestors})
	}
	return p.finding(domain.OutcomeFail, domain.SeverityMedium, domain.CategoryMisconfiguration,
		"Missing framing protection",
		"Neither X-Frame-Options nor a CSP frame-ancestors directive is set; the page can be framed for clickjacking.",
		map[string]any{"x_frame_options": xfo})
}

func (p *HeaderProbe) checkNosniff(h http.Header) domain.Finding {
	if strings.EqualFold(h.Get("X-Content-Type-Options"), "nosniff") {
		return p.finding(domain.OutcomePass, domain.SeverityInfo, domain.CategoryMisconfiguration,
			"X-Content-Type-Options set",
			"Responses opt out of MIME sniffing with X-Content-Type-Options: nosniff.",
			nil)
	}
	return p.finding(domain.OutcomeFail, domain.SeverityLow, domain.CategoryMisconfiguration,
		"Missing X-Content-Type-Options",
		"Responses do not set X-Content-Type-Options: nosniff, allowing browsers to MIME-sniff content.",
		nil)
}

func (p *HeaderProbe) checkReferrerPolicy(h http.Header) domain.Finding {
	rp := h.Get("Referrer-Policy")
	if rp == "" {
		return p.finding(domain.OutcomeFail, domain.SeverityLow, domain.CategoryMisconfiguration,
			"Missing Referrer-Policy",
			"No Referrer-Policy header is set; full URLs may leak to third parties via the Referer header.",
			nil)
	}
	return p.finding(domain.OutcomePass, domain.SeverityInfo, domain.CategoryMisconfiguration,
		"Referrer-Policy present",
		"A Referrer-Policy header is set.",
		map[string]any{"policy": rp})
}

func (p *HeaderProbe) finding(outcome domain.Outcome, sev domain.Severity, cat domain.OwaspCategory, title, desc string, evidence map[string]any) domain.Finding {
	return domain.Finding{
		ProbeName:   p.Name(),
		Category:    cat,
		Severity:    sev,
		Outcome:     outcome,
		Title:       title,
		Description: desc,
		Evidence:    evidence,
		Confidence:  95,
	}
}

func hstsMaxAge(header string) (int, bool) {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(strings.ToLower(part))
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			age, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, false
			}
			return age, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
