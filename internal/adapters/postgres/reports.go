package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"vigil/internal/domain"
	"vigil/internal/ports"
)

// Upsert writes the report, replacing a previous delivery's copy for the
// same scan. Findings are stored in their own table; the row keeps the
// derived summary only.
func (db *DB) Upsert(ctx context.Context, rep *domain.Report) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO reports (id, scan_id, risk_score, coverage, recommendations, generated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (scan_id) DO UPDATE SET
            risk_score = EXCLUDED.risk_score,
            coverage = EXCLUDED.coverage,
            recommendations = EXCLUDED.recommendations,
            generated_at = EXCLUDED.generated_at
    `, rep.ID, rep.ScanID, rep.RiskScore, rep.Coverage, rep.Recommendations, rep.GeneratedAt)
	return err
}

func (db *DB) GetByScan(ctx context.Context, scanID string) (*domain.Report, error) {
	var rep domain.Report
	err := db.Pool.QueryRow(ctx, `
        SELECT id, scan_id, risk_score, coverage, recommendations, generated_at
        FROM reports WHERE scan_id = $1
    `, scanID).Scan(&rep.ID, &rep.ScanID, &rep.RiskScore, &rep.Coverage, &rep.Recommendations, &rep.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rep.Findings, err = db.ListByScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
