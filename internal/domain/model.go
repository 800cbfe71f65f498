package domain

import "time"

// Core domain models. API request/response shapes live in the http adapter;
// keep these decoupled where helpful.

// ScanRequest is the ephemeral intake shape produced by the admission
// boundary. It is consumed once to create a ScanRecord and never persisted
// on its own.
type ScanRequest struct {
	URL           string
	RequesterID   string // empty for anonymous callers
	IsPublicScan  bool
	UserAgent     string
	SourceAddress string
}

// Authenticated reports whether the request carries a requester identity.
func (r ScanRequest) Authenticated() bool { return r.RequesterID != "" }

// ScanRecord is the durable record of one submitted scan.
type ScanRecord struct {
	ID           string
	URL          string
	Domain       string // registrable domain, derived once at creation
	RequesterID  string
	IsPublicScan bool
	Status       Status
	Progress     Progress
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	JobRef       string
	Counts       SeverityCounts
	ErrorMessage string
	RetryCount   int
}

// Progress describes how far a running scan has advanced. Percentage is
// monotonically non-decreasing within one scan.
type Progress struct {
	Stage           string  `json:"stage"`
	CompletedProbes int     `json:"completed_probes"`
	TotalProbes     int     `json:"total_probes"`
	CurrentProbe    string  `json:"current_probe,omitempty"`
	Percentage      float64 `json:"percentage"`
}

// ScanJobData is the queue payload handed to the worker.
type ScanJobData struct {
	URL            string `json:"url"`
	Domain         string `json:"domain"`
	RequesterID    string `json:"requester_id,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // per-fetch probe timeout override
}

// QueueJob is the read-only view of one queued delivery handed to the
// orchestrator. The queue owns the row; the orchestrator only reports back
// how the delivery resolved.
type QueueJob struct {
	ID          string
	ScanID      string
	Payload     ScanJobData
	Attempts    int
	MaxAttempts int
	EnqueuedAt  time.Time
}

// Report is the derived summary of a completed scan, generated exactly
// once. A re-scan produces a new ScanRecord and a new Report.
type Report struct {
	ID              string    `json:"id"`
	ScanID          string    `json:"scan_id"`
	RiskScore       Severity  `json:"risk_score"`
	Coverage        float64   `json:"coverage"` // fraction of OWASP categories with a pass finding
	Recommendations []string  `json:"recommendations"`
	Findings        []Finding `json:"findings"`
	GeneratedAt     time.Time `json:"generated_at"`
}
