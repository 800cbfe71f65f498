package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vigil/internal/domain"
	"vigil/internal/ports"
)

const (
	// retryBackoffBase is the first retry delay; each further attempt
	// doubles it (2s, 4s, 8s).
	retryBackoffBase = 2 * time.Second
	// defaultMaxAttempts matches the scan_jobs column default.
	defaultMaxAttempts = 3
	// defaultVisibilityTimeout bounds how long a claimed job may sit in
	// running before it is considered abandoned by a crashed worker.
	defaultVisibilityTimeout = 10 * time.Minute
)

// ClaimNext claims the oldest due queued job using SKIP LOCKED so multiple
// worker processes never double-claim, marks it running and bumps its
// attempt count. Running jobs whose claim outlived the visibility timeout
// are reclaimed the same way, so a worker crash mid-processing re-delivers
// instead of stranding the job. The scan's retry_count mirrors attempts
// beyond the first.
func (db *DB) ClaimNext(ctx context.Context) (job domain.QueueJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id, scan_id, payload, attempts, max_attempts, enqueued_at
        FROM scan_jobs
        WHERE (status = 'queued' AND next_run_at <= now())
           OR (status = 'running' AND started_at < now() - $1)
        ORDER BY enqueued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `, db.visibility()).Scan(&job.ID, &job.ScanID, &job.Payload, &job.Attempts, &job.MaxAttempts, &job.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	job.Attempts++
	if _, err = tx.Exec(ctx, `
        UPDATE scan_jobs SET status = 'running', started_at = now(), attempts = attempts + 1
        WHERE id = $1
    `, job.ID); err != nil {
		return job, false, err
	}
	if _, err = tx.Exec(ctx, `
        UPDATE scans SET retry_count = $2 WHERE id = $1
    `, job.ScanID, job.Attempts-1); err != nil {
		return job, false, err
	}
	return job, true, nil
}

// Resolve finalizes one delivery. Retries are rescheduled with exponential
// backoff until the attempt ceiling, then the job is dead-lettered and the
// scan marked failed with the last error.
func (db *DB) Resolve(ctx context.Context, job domain.QueueJob, res ports.Resolution) error {
	switch res.Kind {
	case ports.ResolveAck:
		_, err := db.Pool.Exec(ctx, `
            UPDATE scan_jobs SET status = 'completed', finished_at = now(), last_error = ''
            WHERE id = $1
        `, job.ID)
		return err

	case ports.ResolveRetry:
		if job.Attempts >= job.MaxAttempts {
			return db.deadLetter(ctx, job, res.Reason)
		}
		_, err := db.Pool.Exec(ctx, `
            UPDATE scan_jobs SET status = 'queued', next_run_at = now() + $2, last_error = $3
            WHERE id = $1
        `, job.ID, db.retryDelay(job.Attempts), res.Reason)
		return err

	case ports.ResolveDead:
		return db.deadLetter(ctx, job, res.Reason)

	default:
		return fmt.Errorf("unknown resolution kind %d", res.Kind)
	}
}

// deadLetter parks the job for manual inspection and fails the scan.
func (db *DB) deadLetter(ctx context.Context, job domain.QueueJob, reason string) error {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
        UPDATE scan_jobs SET status = 'dead', finished_at = now(), last_error = $2
        WHERE id = $1
    `, job.ID, reason); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `
        UPDATE scans SET status = 'failed', completed_at = now(), error_message = $2
        WHERE id = $1 AND status IN ('pending', 'running')
    `, job.ScanID, reason); err != nil {
		return err
	}
	return nil
}

// retryDelay is the exponential backoff before the next delivery: the
// base doubles for every attempt already made.
func (db *DB) retryDelay(attempts int) time.Duration {
	base := db.RetryBackoff
	if base <= 0 {
		base = retryBackoffBase
	}
	if attempts < 1 {
		attempts = 1
	}
	return base << (attempts - 1)
}

func (db *DB) jobMaxAttempts() int {
	if db.MaxAttempts > 0 {
		return db.MaxAttempts
	}
	return defaultMaxAttempts
}

func (db *DB) visibility() time.Duration {
	if db.VisibilityTimeout > 0 {
		return db.VisibilityTimeout
	}
	return defaultVisibilityTimeout
}

// PruneFinished bounds queue storage: completed jobs go after their
// retention window, dead jobs after a longer one.
func (db *DB) PruneFinished(ctx context.Context, completedBefore, deadBefore time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
        DELETE FROM scan_jobs
        WHERE (status = 'completed' AND finished_at < $1)
           OR (status = 'dead' AND finished_at < $2)
    `, completedBefore, deadBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
