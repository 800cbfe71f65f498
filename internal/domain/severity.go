package domain

// Severity is the qualitative risk level attached to a finding.
// Values are lowercase strings so they can be stored and serialized as-is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Score returns a numeric rank for ordering severities.
// critical=5, high=4, medium=3, low=2, info=1, unknown=0.
func (s Severity) Score() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string { return string(s) }

// SeverityCounts aggregates findings per severity for a finished scan.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Add increments the bucket for the given severity.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	case SeverityInfo:
		c.Info++
	}
}

// Total returns the sum over all buckets.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// CountFindings tallies severities of findings whose outcome indicates a
// real observation (fail or warning). Pass and error outcomes never
// contribute: an errored probe proves nothing about the target.
func CountFindings(findings []Finding) SeverityCounts {
	var counts SeverityCounts
	for _, f := range findings {
		if f.Outcome == OutcomeFail || f.Outcome == OutcomeWarning {
			counts.Add(f.Severity)
		}
	}
	return counts
}
