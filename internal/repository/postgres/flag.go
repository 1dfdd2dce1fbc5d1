package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

const flagColumns = `
	id, user_id, type, severity, description, status, auto_detected,
	COALESCE(detection_source, '') AS detection_source,
	reviewed_by, reviewed_at, COALESCE(review_notes, '') AS review_notes,
	created_at, updated_at`

type FraudFlagRepository struct {
	db *sqlx.DB
}

func NewFraudFlagRepository(db *sqlx.DB) *FraudFlagRepository {
	return &FraudFlagRepository{db: db}
}

// Insert writes a flag unless the user already carries an active flag of the
// same type; the partial unique index makes the dedup check and the write a
// single atomic statement. The returned bool reports whether a row was
// created.
func (r *FraudFlagRepository) Insert(ctx context.Context, f *domain.FraudFlag) (bool, error) {
	query := `
        INSERT INTO fraud_flags (
            id, user_id, type, severity, description, status, auto_detected,
            detection_source, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        )
        ON CONFLICT (user_id, type) WHERE status = 'active' DO NOTHING
    `

	res, err := r.db.ExecContext(ctx, query,
		f.ID, f.UserID, f.Type, f.Severity, f.Description, f.Status,
		f.AutoDetected, f.DetectionSource, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to insert fraud flag")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

func (r *FraudFlagRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.FraudFlag, error) {
	var f domain.FraudFlag
	query := fmt.Sprintf(`SELECT %s FROM fraud_flags WHERE id = $1`, flagColumns)

	err := r.db.GetContext(ctx, &f, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrFlagNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find fraud flag")
	}

	return &f, nil
}

// Review moves an active flag into a terminal review status. The status
// guard in the WHERE clause rejects double review.
func (r *FraudFlagRepository) Review(ctx context.Context, id uuid.UUID, status domain.FlagStatus, reviewedBy uuid.UUID, notes string, reviewedAt time.Time) (bool, error) {
	query := `
		UPDATE fraud_flags SET
			status = $1, reviewed_by = $2, review_notes = $3, reviewed_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6
	`

	res, err := r.db.ExecContext(ctx, query, status, reviewedBy, notes, reviewedAt, id, domain.FlagStatusActive)
	if err != nil {
		return false, errors.Wrap(err, "failed to review fraud flag")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

func (r *FraudFlagRepository) FindByStatus(ctx context.Context, status domain.FlagStatus, limit, offset int) ([]*domain.FraudFlag, error) {
	var flags []*domain.FraudFlag
	query := fmt.Sprintf(`
		SELECT %s FROM fraud_flags
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, flagColumns)

	err := r.db.SelectContext(ctx, &flags, query, status, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list fraud flags by status")
	}
	return flags, nil
}

func (r *FraudFlagRepository) FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.FraudFlag, error) {
	var flags []*domain.FraudFlag
	query := fmt.Sprintf(`
		SELECT %s FROM fraud_flags
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, flagColumns)

	err := r.db.SelectContext(ctx, &flags, query, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list fraud flags by user")
	}
	return flags, nil
}

func (r *FraudFlagRepository) CountByStatus(ctx context.Context, status domain.FlagStatus) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM fraud_flags WHERE status = $1`

	err := r.db.GetContext(ctx, &total, query, status)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count fraud flags")
	}
	return total, nil
}
