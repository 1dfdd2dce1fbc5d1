package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

type BlacklistRepository struct {
	db *sqlx.DB
}

func NewBlacklistRepository(db *sqlx.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

func (r *BlacklistRepository) Insert(ctx context.Context, e *domain.BlacklistEntry) error {
	query := `
        INSERT INTO blacklist_entries (id, type, value, reason, added_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := r.db.ExecContext(ctx, query, e.ID, e.Type, e.Value, e.Reason, e.AddedBy, e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errors.ErrBlacklistDuplicate
		}
		return errors.Wrap(err, "failed to insert blacklist entry")
	}

	return nil
}

func (r *BlacklistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blacklist_entries WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete blacklist entry")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.ErrBlacklistNotFound
	}
	return nil
}

func (r *BlacklistRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.BlacklistEntry, error) {
	var e domain.BlacklistEntry
	query := `
        SELECT id, type, value, COALESCE(reason, '') AS reason, added_by, created_at
        FROM blacklist_entries
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &e, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrBlacklistNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find blacklist entry")
	}

	return &e, nil
}

func (r *BlacklistRepository) FindByType(ctx context.Context, entryType domain.BlacklistType, limit, offset int) ([]*domain.BlacklistEntry, error) {
	var entries []*domain.BlacklistEntry
	query := `
        SELECT id, type, value, COALESCE(reason, '') AS reason, added_by, created_at
        FROM blacklist_entries
        WHERE type = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `

	err := r.db.SelectContext(ctx, &entries, query, entryType, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list blacklist entries")
	}
	return entries, nil
}

func (r *BlacklistRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.BlacklistEntry, error) {
	var entries []*domain.BlacklistEntry
	query := `
        SELECT id, type, value, COALESCE(reason, '') AS reason, added_by, created_at
        FROM blacklist_entries
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2
    `

	err := r.db.SelectContext(ctx, &entries, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list blacklist entries")
	}
	return entries, nil
}

// Exists reports whether a normalized value is listed under the given type.
func (r *BlacklistRepository) Exists(ctx context.Context, entryType domain.BlacklistType, value string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM blacklist_entries WHERE type = $1 AND value = $2)`

	err := r.db.GetContext(ctx, &exists, query, entryType, value)
	if err != nil {
		return false, errors.Wrap(err, "failed to check blacklist entry")
	}
	return exists, nil
}
