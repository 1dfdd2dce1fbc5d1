package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

type ListingRepository struct {
	db *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	query := `
        SELECT id, seller_id, game, title, COALESCE(description, '') AS description, price, stock, delivery_type, status,
               created_at, updated_at
        FROM listings
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &l, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrListingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find listing")
	}

	return &l, nil
}

// DecrementStock reduces available stock and marks the listing sold when it
// hits zero. Refuses to go negative.
func (r *ListingRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	query := `
        UPDATE listings SET
            stock = stock - $1,
            status = CASE WHEN stock - $1 <= 0 THEN 'sold' ELSE status END,
            updated_at = NOW()
        WHERE id = $2 AND stock >= $1
    `

	res, err := r.db.ExecContext(ctx, query, qty, id)
	if err != nil {
		return errors.Wrap(err, "failed to decrement listing stock")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.ErrOutOfStock
	}
	return nil
}

func (r *ListingRepository) FindBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	query := `
        SELECT id, seller_id, game, title, COALESCE(description, '') AS description, price, stock, delivery_type, status,
               created_at, updated_at
        FROM listings
        WHERE seller_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `

	err := r.db.SelectContext(ctx, &listings, query, sellerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list seller listings")
	}
	return listings, nil
}

func (r *ListingRepository) FindActiveBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	query := `
        SELECT id, seller_id, game, title, COALESCE(description, '') AS description, price, stock, delivery_type, status,
               created_at, updated_at
        FROM listings
        WHERE seller_id = $1 AND status = 'active'
        ORDER BY created_at DESC
    `

	err := r.db.SelectContext(ctx, &listings, query, sellerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active seller listings")
	}
	return listings, nil
}

// MarketPrice holds the peer group stats for a game's active listings.
type MarketPrice struct {
	Peers int             `db:"peers"`
	Mean  decimal.Decimal `db:"mean"`
}

// MarketPriceForGame returns how many other active listings exist for the
// game and their mean price. The listing under inspection is excluded.
func (r *ListingRepository) MarketPriceForGame(ctx context.Context, game string, exclude uuid.UUID) (*MarketPrice, error) {
	var mp MarketPrice
	query := `
        SELECT COUNT(*) AS peers, COALESCE(AVG(price), 0) AS mean
        FROM listings
        WHERE game = $1 AND id != $2 AND status = 'active'
    `

	err := r.db.GetContext(ctx, &mp, query, game, exclude)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute market price")
	}
	return &mp, nil
}
