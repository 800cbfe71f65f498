package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"vigil/internal/domain"
)

// ReplaceForScan deletes prior findings for the scan and inserts the new
// set in one transaction, so a re-delivered job overwrites instead of
// appending.
func (db *DB) ReplaceForScan(ctx context.Context, scanID string, findings []domain.Finding) error {
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

	if _, err = tx.Exec(ctx, `DELETE FROM findings WHERE scan_id = $1`, scanID); err != nil {
		return err
	}
	for _, f := range findings {
		if _, err = tx.Exec(ctx, `
            INSERT INTO findings (scan_id, probe_name, category, severity, outcome,
                                  title, description, evidence, confidence)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        `, scanID, f.ProbeName, f.Category, f.Severity, f.Outcome,
			f.Title, f.Description, f.Evidence, f.Confidence); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) ListByScan(ctx context.Context, scanID string) ([]domain.Finding, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT scan_id, probe_name, category, severity, outcome,
               title, description, evidence, confidence
        FROM findings WHERE scan_id = $1 ORDER BY id
    `, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var f domain.Finding
		if err := rows.Scan(&f.ScanID, &f.ProbeName, &f.Category, &f.Severity, &f.Outcome,
			&f.Title, &f.Description, &f.Evidence, &f.Confidence); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
