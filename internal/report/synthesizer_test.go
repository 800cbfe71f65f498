package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/domain"
)

func TestSynthesizeRiskScoreMaxSeverity(t *testing.T) {
	findings := []domain.Finding{
		{Category: domain.CategoryMisconfiguration, Severity: domain.SeverityLow, Outcome: domain.OutcomeFail},
		{Category: domain.CategoryMisconfiguration, Severity: domain.SeverityCritical, Outcome: domain.OutcomeFail},
		{Category: domain.CategoryAuthFailures, Severity: domain.SeverityMedium, Outcome: domain.OutcomeWarning},
		// high severity, but a pass: must not lift the score
		{Category: domain.CategoryCryptoFailures, Severity: domain.SeverityHigh, Outcome: domain.OutcomePass},
	}

	rep := Synthesize("scan-1", findings, time.Now())
	assert.Equal(t, domain.SeverityCritical, rep.RiskScore)
	assert.Equal(t, "scan-1", rep.ScanID)
	assert.NotEmpty(t, rep.ID)
}

func TestSynthesizeCleanScanScoresLow(t *testing.T) {
	findings := []domain.Finding{
		{Category: domain.CategoryMisconfiguration, Severity: domain.SeverityInfo, Outcome: domain.OutcomePass},
		{Category: domain.CategoryAuthFailures, Severity: domain.SeverityHigh, Outcome: domain.OutcomeError},
	}

	rep := Synthesize("scan-1", findings, time.Now())
	assert.Equal(t, domain.SeverityLow, rep.RiskScore)
	assert.Equal(t, []string{"No critical issues found. Keep monitoring with periodic re-scans."}, rep.Recommendations)
}

func TestSynthesizeCoverage(t *testing.T) {
	findings := []domain.Finding{
		{Category: domain.CategoryMisconfiguration, Outcome: domain.OutcomePass},
		{Category: domain.CategoryMisconfiguration, Outcome: domain.OutcomePass},
		{Category: domain.CategoryAuthFailures, Outcome: domain.OutcomePass},
		{Category: domain.CategoryCryptoFailures, Outcome: domain.OutcomeFail},
	}

	rep := Synthesize("scan-1", findings, time.Now())
	// two distinct categories passed out of ten
	assert.InDelta(t, 0.2, rep.Coverage, 1e-9)
}

func TestSynthesizeRecommendationOrdering(t *testing.T) {
	findings := []domain.Finding{
		{Category: domain.CategoryAuthFailures, Severity: domain.SeverityMedium, Outcome: domain.OutcomeFail},
		{Category: domain.CategoryMisconfiguration, Severity: domain.SeverityCritical, Outcome: domain.OutcomeFail},
		// duplicate category, must not produce a second line
		{Category: domain.CategoryMisconfiguration, Severity: domain.SeverityLow, Outcome: domain.OutcomeFail},
	}

	rep := Synthesize("scan-1", findings, time.Now())
	require.Len(t, rep.Recommendations, 2)
	// critical misconfiguration outranks medium auth failures
	assert.Equal(t, recommendations[domain.CategoryMisconfiguration], rep.Recommendations[0])
	assert.Equal(t, recommendations[domain.CategoryAuthFailures], rep.Recommendations[1])
}

func TestSynthesizeTieBreaksByCategoryCode(t *testing.T) {
	findings := []domain.Finding{
		{Category: domain.CategoryCryptoFailures, Severity: domain.SeverityMedium, Outcome: domain.OutcomeFail},
		{Category: domain.CategoryBrokenAccessControl, Severity: domain.SeverityMedium, Outcome: domain.OutcomeFail},
	}

	rep := Synthesize("scan-1", findings, time.Now())
	require.Len(t, rep.Recommendations, 2)
	// equal severity: A01 sorts before A02
	assert.Equal(t, recommendations[domain.CategoryBrokenAccessControl], rep.Recommendations[0])
	assert.Equal(t, recommendations[domain.CategoryCryptoFailures], rep.Recommendations[1])
}
