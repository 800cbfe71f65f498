package postgres

import (
	"context"
	"time"
)

// Increment bumps the requester's counter for the given day with an
// upsert-with-add. Concurrent admissions contend here, so the update never
// goes through a read-then-write.
func (db *DB) Increment(ctx context.Context, requesterID string, day time.Time) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO daily_usage (requester_id, day, scans)
        VALUES ($1, $2, 1)
        ON CONFLICT (requester_id, day) DO UPDATE SET scans = daily_usage.scans + 1
    `, requesterID, day.Format("2006-01-02"))
	return err
}
