// Package report derives the summary report from a scan's findings. The
// computation is deterministic and side-effect free; persistence is the
// caller's concern.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"vigil/internal/domain"
)

// recommendations maps each OWASP category to the single human-readable
// action emitted when that category has failing findings.
var recommendations = map[domain.OwaspCategory]string{
	domain.CategoryBrokenAccessControl: "Restrict access to administrative and sensitive paths; require authentication and remove leftover files from the web root.",
	domain.CategoryCryptoFailures:      "Enforce HTTPS with a Strict-Transport-Security header of at least one year and redirect all plain HTTP traffic.",
	domain.CategoryInjection:           "Validate and encode all user-controlled input; prefer parameterized queries and templating with auto-escaping.",
	domain.CategoryInsecureDesign:      "Review the affected flows against an abuse-case threat model before shipping further changes.",
	domain.CategoryMisconfiguration:    "Harden HTTP response headers (Content-Security-Policy, X-Frame-Options, X-Content-Type-Options, Referrer-Policy) and remove diagnostic or backup files from production.",
	domain.CategoryVulnComponents:      "Inventory third-party components and upgrade any with known vulnerabilities.",
	domain.CategoryAuthFailures:        "Set Secure, HttpOnly and a restrictive SameSite attribute on all session cookies.",
	domain.CategoryIntegrityFailures:   "Block public access to version-control metadata and verify the integrity of deployed artifacts.",
	domain.CategoryLoggingFailures:     "Ensure authentication and access-control failures are logged and monitored.",
	domain.CategorySSRF:                "Validate and allow-list outbound request destinations made on behalf of users.",
}

// Synthesize builds the report for a scan. Risk score follows the
// max-severity-present rule: one critical finding dominates the whole
// report regardless of how many passes surround it.
func Synthesize(scanID string, findings []domain.Finding, now time.Time) *domain.Report {
	return &domain.Report{
		ID:              uuid.New().String(),
		ScanID:          scanID,
		RiskScore:       riskScore(findings),
		Coverage:        coverage(findings),
		Recommendations: recommend(findings),
		Findings:        findings,
		GeneratedAt:     now,
	}
}

// riskScore returns the highest severity among fail/warning findings, or
// low when nothing failed.
func riskScore(findings []domain.Finding) domain.Severity {
	max := domain.SeverityLow
	for _, f := range findings {
		if f.Outcome != domain.OutcomeFail && f.Outcome != domain.OutcomeWarning {
			continue
		}
		if f.Severity.Score() > max.Score() {
			max = f.Severity
		}
	}
	return max
}

// coverage is the fraction of the ten OWASP categories with at least one
// pass finding.
func coverage(findings []domain.Finding) float64 {
	passed := make(map[domain.OwaspCategory]bool)
	for _, f := range findings {
		if f.Outcome == domain.OutcomePass {
			passed[f.Category] = true
		}
	}
	return float64(len(passed)) / float64(len(domain.AllCategories()))
}

// recommend emits one action per category with failing findings, ordered
// by that category's worst severity, then category code for determinism.
func recommend(findings []domain.Finding) []string {
	worst := make(map[domain.OwaspCategory]domain.Severity)
	for _, f := range findings {
		if f.Outcome != domain.OutcomeFail && f.Outcome != domain.OutcomeWarning {
			continue
		}
		if cur, ok := worst[f.Category]; !ok || f.Severity.Score() > cur.Score() {
			worst[f.Category] = f.Severity
		}
	}
	if len(worst) == 0 {
		return []string{"No critical issues found. Keep monitoring with periodic re-scans."}
	}

	cats := make([]domain.OwaspCategory, 0, len(worst))
	for c := range worst {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		si, sj := worst[cats[i]].Score(), worst[cats[j]].Score()
		if si != sj {
			return si > sj
		}
		return cats[i] < cats[j]
	})

	out := make([]string, 0, len(cats))
	for _, c := range cats {
		line, ok := recommendations[c]
		if !ok {
			line = fmt.Sprintf("Review and remediate the findings reported under %s.", c)
		}
		out = append(out, line)
	}
	return out
}
