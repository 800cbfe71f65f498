package probes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vigil/internal/domain"
)

// exposurePath is one well-known sensitive location checked relative to
// the target root.
type exposurePath struct {
	path     string
	severity domain.Severity
	category domain.OwaspCategory
	desc     string
}

// exposurePaths is the fixed probe list. Severity comes from real-world
// impact: leaked credentials or config outrank a reachable admin panel,
// which outranks diagnostics output.
var exposurePaths = []exposurePath{
	{".env", domain.SeverityCritical, domain.CategoryMisconfiguration, "Environment file with credentials and secrets"},
	{".git/HEAD", domain.SeverityCritical, domain.CategoryIntegrityFailures, "Exposed git repository metadata; source and history can be reconstructed"},
	{"wp-config.php", domain.SeverityCritical, domain.CategoryMisconfiguration, "WordPress configuration file with database credentials"},
	{"config.php.bak", domain.SeverityCritical, domain.CategoryMisconfiguration, "Configuration backup served as plain text"},
	{".htpasswd", domain.SeverityCritical, domain.CategoryMisconfiguration, "HTTP basic-auth password file"},
	{"backup.sql", domain.SeverityHigh, domain.CategoryMisconfiguration, "Database dump reachable over HTTP"},
	{"database.sql", domain.SeverityHigh, domain.CategoryMisconfiguration, "Database dump reachable over HTTP"},
	{"backup.zip", domain.SeverityHigh, domain.CategoryMisconfiguration, "Site backup archive reachable over HTTP"},
	{"admin/", domain.SeverityHigh, domain.CategoryBrokenAccessControl, "Admin panel reachable without redirection"},
	{"wp-admin/", domain.SeverityHigh, domain.CategoryBrokenAccessControl, "WordPress admin reachable without redirection"},
	{"phpmyadmin/", domain.SeverityHigh, domain.CategoryBrokenAccessControl, "phpMyAdmin reachable from the outside"},
	{"phpinfo.php", domain.SeverityMedium, domain.CategoryMisconfiguration, "phpinfo() diagnostics page exposes platform details"},
	{"server-status", domain.SeverityMedium, domain.CategoryMisconfiguration, "Apache mod_status diagnostics exposed"},
	{".DS_Store", domain.SeverityLow, domain.CategoryMisconfiguration, "Finder metadata leaks directory listings"},
	{"crossdomain.xml", domain.SeverityLow, domain.CategoryMisconfiguration, "Legacy Flash cross-domain policy file"},
}

// ExposureProbe requests well-known sensitive paths under the target and
// reports any that answer 200. Requests are paced so the probe does not
// overwhelm the target, and redirects are not followed so only paths that
// are genuinely served count.
type ExposureProbe struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func NewExposureProbe(client *http.Client, userAgent string, pace time.Duration) *ExposureProbe {
	return &ExposureProbe{
		client:    client,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Every(pace), 1),
	}
}

func (p *ExposureProbe) Name() string { return "exposure-check" }

func (p *ExposureProbe) Run(ctx context.Context, target string) ([]domain.Finding, error) {
	base := strings.TrimSuffix(target, "/")
	var findings []domain.Finding

	for _, ep := range exposurePaths {
		if err := p.limiter.Wait(ctx); err != nil {
			return findings, err
		}
		resp, err := get(ctx, p.client, base+"/"+ep.path, p.userAgent)
		if err != nil {
			// A path that cannot be fetched is simply not exposed; timeouts
			// and refused connections here are expected conditions.
			continue
		}
		status := resp.StatusCode
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if status != http.StatusOK {
			continue
		}
		findings = append(findings, domain.Finding{
			ProbeName:   p.Name(),
			Category:    ep.category,
			Severity:    ep.severity,
			Outcome:     domain.OutcomeFail,
			Title:       fmt.Sprintf("Sensitive path /%s is publicly reachable", ep.path),
			Description: ep.desc,
			Evidence:    map[string]any{"path": "/" + ep.path, "status": status},
			Confidence:  80,
		})
	}

	if len(findings) == 0 {
		findings = append(findings, domain.Finding{
			ProbeName:   p.Name(),
			Category:    domain.CategoryBrokenAccessControl,
			Severity:    domain.SeverityInfo,
			Outcome:     domain.OutcomePass,
			Title:       "No well-known sensitive paths exposed",
			Description: fmt.Sprintf("None of the %d probed paths returned HTTP 200.", len(exposurePaths)),
			Confidence:  70,
		})
	}
	return findings, nil
}
