package domain

import "fmt"

// Outcome classifies what a probe observed for one check.
type Outcome string

const (
	// OutcomePass means the check ran and the target is configured well.
	OutcomePass Outcome = "pass"
	// OutcomeFail means the check ran and found a weakness.
	OutcomeFail Outcome = "fail"
	// OutcomeWarning means the check found a partial or borderline weakness.
	OutcomeWarning Outcome = "warning"
	// OutcomeError means the probe could not determine anything.
	OutcomeError Outcome = "error"
)

// Finding is one discrete observation produced by a probe. Findings are
// immutable once written and belong to exactly one scan.
type Finding struct {
	ScanID      string         `json:"scan_id"`
	ProbeName   string         `json:"probe_name"`
	Category    OwaspCategory  `json:"category"`
	Severity    Severity       `json:"severity"`
	Outcome     Outcome        `json:"outcome"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Evidence    map[string]any `json:"evidence,omitempty"`
	Confidence  int            `json:"confidence"` // 0..100
}

// ErrorFinding builds the synthetic finding recorded when a probe fails
// outright instead of returning results.
func ErrorFinding(probeName string, err error) Finding {
	return Finding{
		ProbeName:   probeName,
		Category:    CategoryMisconfiguration,
		Severity:    SeverityInfo,
		Outcome:     OutcomeError,
		Title:       fmt.Sprintf("Probe %s did not complete", probeName),
		Description: err.Error(),
		Confidence:  100,
	}
}
