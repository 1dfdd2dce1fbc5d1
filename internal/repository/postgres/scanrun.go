package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

type ScanRunRepository struct {
	db *sqlx.DB
}

func NewScanRunRepository(db *sqlx.DB) *ScanRunRepository {
	return &ScanRunRepository{db: db}
}

func (r *ScanRunRepository) Create(ctx context.Context, run *domain.ScanRun) error {
	query := `
        INSERT INTO scan_runs (
            id, scan_type, triggered_by, status, users_scanned, flags_created,
            started_at, duration_ms
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.ScanType, run.TriggeredBy, run.Status,
		run.UsersScanned, run.FlagsCreated, run.StartedAt, run.DurationMS,
	)
	return errors.Wrap(err, "failed to create scan run")
}

func (r *ScanRunRepository) Complete(ctx context.Context, id uuid.UUID, status domain.ScanRunStatus, usersScanned, flagsCreated int, durationMS int64) error {
	query := `
		UPDATE scan_runs SET
			status = $1, users_scanned = $2, flags_created = $3, duration_ms = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(ctx, query, status, usersScanned, flagsCreated, durationMS, id)
	return errors.Wrap(err, "failed to complete scan run")
}

func (r *ScanRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ScanRun, error) {
	var run domain.ScanRun
	query := `
        SELECT id, scan_type, triggered_by, status, users_scanned, flags_created,
               started_at, duration_ms
        FROM scan_runs
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &run, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrScanRunNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find scan run")
	}

	return &run, nil
}

func (r *ScanRunRepository) FindRecent(ctx context.Context, limit int) ([]*domain.ScanRun, error) {
	var runs []*domain.ScanRun
	query := `
        SELECT id, scan_type, triggered_by, status, users_scanned, flags_created,
               started_at, duration_ms
        FROM scan_runs
        ORDER BY started_at DESC
        LIMIT $1
    `

	err := r.db.SelectContext(ctx, &runs, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scan runs")
	}
	return runs, nil
}
