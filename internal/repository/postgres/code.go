package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

type DeliveryCodeRepository struct {
	db *sqlx.DB
}

func NewDeliveryCodeRepository(db *sqlx.DB) *DeliveryCodeRepository {
	return &DeliveryCodeRepository{db: db}
}

func (r *DeliveryCodeRepository) BulkInsert(ctx context.Context, codes []*domain.DeliveryCode) error {
	if len(codes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
        INSERT INTO delivery_codes (id, listing_id, code_text, is_used, created_at)
        VALUES ($1, $2, $3, false, $4)
    `
	for _, c := range codes {
		if _, err := tx.ExecContext(ctx, query, c.ID, c.ListingID, c.CodeText, c.CreatedAt); err != nil {
			return errors.Wrap(err, "failed to insert delivery code")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit delivery codes")
}

// Claim marks exactly one unused code for the listing as used by the order
// and returns it. Concurrent claimants skip each other's locked rows, so a
// code is never handed out twice. No code left means ErrOutOfStock.
func (r *DeliveryCodeRepository) Claim(ctx context.Context, listingID, orderID uuid.UUID) (*domain.DeliveryCode, error) {
	var code domain.DeliveryCode
	query := `
        UPDATE delivery_codes SET
            is_used = true, order_id = $1, delivered_at = NOW()
        WHERE id = (
            SELECT id FROM delivery_codes
            WHERE listing_id = $2 AND is_used = false
            ORDER BY created_at ASC
            FOR UPDATE SKIP LOCKED
            LIMIT 1
        )
        RETURNING id, listing_id, code_text, is_used, order_id, delivered_at, created_at
    `

	err := r.db.GetContext(ctx, &code, query, orderID, listingID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOutOfStock
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim delivery code")
	}

	return &code, nil
}

func (r *DeliveryCodeRepository) CountUnused(ctx context.Context, listingID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM delivery_codes WHERE listing_id = $1 AND is_used = false`

	err := r.db.GetContext(ctx, &count, query, listingID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unused codes")
	}
	return count, nil
}

func (r *DeliveryCodeRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.DeliveryCode, error) {
	var code domain.DeliveryCode
	query := `
        SELECT id, listing_id, code_text, is_used, order_id, delivered_at, created_at
        FROM delivery_codes
        WHERE order_id = $1
    `

	err := r.db.GetContext(ctx, &code, query, orderID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrCodeNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find delivery code by order")
	}

	return &code, nil
}

func (r *DeliveryCodeRepository) FindByListing(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]*domain.DeliveryCode, error) {
	var codes []*domain.DeliveryCode
	query := `
        SELECT id, listing_id, code_text, is_used, order_id, delivered_at, created_at
        FROM delivery_codes
        WHERE listing_id = $1
        ORDER BY created_at ASC
        LIMIT $2 OFFSET $3
    `

	err := r.db.SelectContext(ctx, &codes, query, listingID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list delivery codes")
	}
	return codes, nil
}
