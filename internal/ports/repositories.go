package ports

import (
	"context"
	"errors"
	"time"

	"vigil/internal/domain"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ScanRepository manages scan records and their lifecycle transitions. The
// record for a given scan id is only ever written by the admission gate
// (create) and the orchestrator (everything after), so a plain atomic row
// update is sufficient.
type ScanRepository interface {
	// CreateWithJob inserts a pending scan record, enqueues its job and
	// persists the job reference on the record, all atomically. Either the
	// record and its queue entry both exist afterwards or neither does.
	CreateWithJob(ctx context.Context, rec *domain.ScanRecord, payload domain.ScanJobData) (jobRef string, err error)

	Get(ctx context.Context, scanID string) (*domain.ScanRecord, error)

	// CountCreatedSince counts a requester's scans created at or after the
	// given instant. Backs the daily-quota check.
	CountCreatedSince(ctx context.Context, requesterID string, since time.Time) (int, error)

	// FindRecentByURL returns the most recent scan for the exact URL by the
	// same requester created at or after since, if any. Backs duplicate
	// suppression.
	FindRecentByURL(ctx context.Context, requesterID, url string, since time.Time) (scanID string, found bool, err error)

	// MarkRunning transitions the scan to running, setting startedAt only on
	// first entry. Re-delivered jobs re-entering is a no-op on startedAt.
	MarkRunning(ctx context.Context, scanID string, at time.Time) error

	// MarkCompleted sets the terminal completed state together with the
	// severity counts, in one write.
	MarkCompleted(ctx context.Context, scanID string, at time.Time, counts domain.SeverityCounts) error

	MarkFailed(ctx context.Context, scanID string, at time.Time, message string) error

	UpdateProgress(ctx context.Context, scanID string, p domain.Progress) error
}

// FindingRepository persists probe findings.
type FindingRepository interface {
	// ReplaceForScan removes any prior findings for the scan and writes the
	// given set, atomically. Replace-on-scan keeps re-delivered jobs from
	// duplicating rows.
	ReplaceForScan(ctx context.Context, scanID string, findings []domain.Finding) error

	ListByScan(ctx context.Context, scanID string) ([]domain.Finding, error)
}

// ReportRepository persists derived reports, one per completed scan.
type ReportRepository interface {
	// Upsert writes the report, overwriting a previous delivery's copy for
	// the same scan if one exists.
	Upsert(ctx context.Context, rep *domain.Report) error

	GetByScan(ctx context.Context, scanID string) (*domain.Report, error)
}

// UsageRepository tracks per-requester daily scan usage. Increment must be
// an atomic upsert-with-add; concurrent admissions for the same requester
// contend on this one counter.
type UsageRepository interface {
	Increment(ctx context.Context, requesterID string, day time.Time) error
}
