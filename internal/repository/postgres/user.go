package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	query := `
        SELECT id, email, username, role, is_active, created_at, updated_at
        FROM users
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &u, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	return &u, nil
}

// FindActivePage pages through active accounts in creation order, for the
// full-population scan.
func (r *UserRepository) FindActivePage(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var users []*domain.User
	query := `
        SELECT id, email, username, role, is_active, created_at, updated_at
        FROM users
        WHERE is_active = true
        ORDER BY created_at ASC
        LIMIT $1 OFFSET $2
    `

	err := r.db.SelectContext(ctx, &users, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to page users")
	}
	return users, nil
}
