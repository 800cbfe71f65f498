package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vigil/internal/domain"
	"vigil/internal/ports"
)

// CreateWithJob inserts the pending scan, its queue entry and the job
// reference in one transaction. Admission is all-or-nothing up to enqueue.
func (db *DB) CreateWithJob(ctx context.Context, rec *domain.ScanRecord, payload domain.ScanJobData) (string, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
        INSERT INTO scans (id, url, domain, requester_id, is_public, status, created_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
    `, rec.ID, rec.URL, rec.Domain, rec.RequesterID, rec.IsPublicScan, rec.Status, rec.CreatedAt); err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	if _, err = tx.Exec(ctx, `
        INSERT INTO scan_jobs (id, scan_id, payload, max_attempts, enqueued_at, next_run_at)
        VALUES ($1, $2, $3, $4, now(), now())
    `, jobID, rec.ID, payload, db.jobMaxAttempts()); err != nil {
		return "", err
	}

	if _, err = tx.Exec(ctx, `UPDATE scans SET job_ref = $2 WHERE id = $1`, rec.ID, jobID); err != nil {
		return "", err
	}
	return jobID, nil
}

func (db *DB) Get(ctx context.Context, scanID string) (*domain.ScanRecord, error) {
	var (
		rec         domain.ScanRecord
		requesterID *string
		jobRef      *string
	)
	err := db.Pool.QueryRow(ctx, `
        SELECT id, url, domain, requester_id, is_public, status,
               stage, current_probe, completed_probes, total_probes, progress,
               created_at, started_at, completed_at, job_ref,
               counts_critical, counts_high, counts_medium, counts_low, counts_info,
               error_message, retry_count
        FROM scans WHERE id = $1
    `, scanID).Scan(
		&rec.ID, &rec.URL, &rec.Domain, &requesterID, &rec.IsPublicScan, &rec.Status,
		&rec.Progress.Stage, &rec.Progress.CurrentProbe, &rec.Progress.CompletedProbes,
		&rec.Progress.TotalProbes, &rec.Progress.Percentage,
		&rec.CreatedAt, &rec.StartedAt, &rec.CompletedAt, &jobRef,
		&rec.Counts.Critical, &rec.Counts.High, &rec.Counts.Medium, &rec.Counts.Low, &rec.Counts.Info,
		&rec.ErrorMessage, &rec.RetryCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if requesterID != nil {
		rec.RequesterID = *requesterID
	}
	if jobRef != nil {
		rec.JobRef = *jobRef
	}
	return &rec, nil
}

func (db *DB) CountCreatedSince(ctx context.Context, requesterID string, since time.Time) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `
        SELECT count(*) FROM scans WHERE requester_id = $1 AND created_at >= $2
    `, requesterID, since).Scan(&n)
	return n, err
}

func (db *DB) FindRecentByURL(ctx context.Context, requesterID, url string, since time.Time) (string, bool, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
        SELECT id FROM scans
        WHERE requester_id = $1 AND url = $2 AND created_at >= $3
        ORDER BY created_at DESC
        LIMIT 1
    `, requesterID, url, since).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// MarkRunning is a resume-friendly transition: started_at is set only on
// first entry and an already-running row is untouched.
func (db *DB) MarkRunning(ctx context.Context, scanID string, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE scans SET status = 'running', started_at = COALESCE(started_at, $2)
        WHERE id = $1 AND status IN ('pending', 'running')
    `, scanID, at)
	return err
}

// MarkCompleted writes the terminal state and the severity counts in one
// atomic row update; counts are never written twice.
func (db *DB) MarkCompleted(ctx context.Context, scanID string, at time.Time, counts domain.SeverityCounts) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE scans SET status = 'completed', completed_at = $2, progress = 100,
               stage = 'done', current_probe = '',
               counts_critical = $3, counts_high = $4, counts_medium = $5,
               counts_low = $6, counts_info = $7
        WHERE id = $1 AND status = 'running'
    `, scanID, at, counts.Critical, counts.High, counts.Medium, counts.Low, counts.Info)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, scanID string, at time.Time, message string) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE scans SET status = 'failed', completed_at = $2, error_message = $3
        WHERE id = $1 AND status IN ('pending', 'running')
    `, scanID, at, message)
	return err
}

func (db *DB) UpdateProgress(ctx context.Context, scanID string, p domain.Progress) error {
	// GREATEST keeps the percentage monotonic even if a stale delivery
	// writes behind a newer one.
	_, err := db.Pool.Exec(ctx, `
        UPDATE scans SET stage = $2, current_probe = $3,
               completed_probes = $4, total_probes = $5,
               progress = GREATEST(progress, $6)
        WHERE id = $1 AND status = 'running'
    `, scanID, p.Stage, p.CurrentProbe, p.CompletedProbes, p.TotalProbes, p.Percentage)
	return err
}
