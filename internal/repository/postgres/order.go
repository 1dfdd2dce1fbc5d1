// Package postgres implements the relational ledger store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

const orderColumns = `
	id, listing_id, buyer_id, seller_id, amount, quantity, status,
	payment_method, payment_reference, delivery_type,
	dispute_opened_at, COALESCE(dispute_reason, '') AS dispute_reason,
	resolved_by, COALESCE(resolution_notes, '') AS resolution_notes,
	completed_at, metadata, created_at, updated_at`

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
        INSERT INTO orders (
            id, listing_id, buyer_id, seller_id, amount, quantity, status,
            payment_method, payment_reference, delivery_type,
            dispute_opened_at, dispute_reason, resolved_by, resolution_notes,
            completed_at, metadata, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
        )
    `

	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.ListingID, o.BuyerID, o.SellerID, o.Amount, o.Quantity, o.Status,
		o.PaymentMethod, o.PaymentReference, o.DeliveryType,
		o.DisputeOpenedAt, o.DisputeReason, o.ResolvedBy, o.ResolutionNotes,
		o.CompletedAt, o.Metadata, o.CreatedAt, o.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			if strings.Contains(pqErr.Constraint, "payment_reference") || strings.Contains(pqErr.Message, "payment_reference") {
				return errors.ErrDuplicatePayment
			}
		}
		return errors.Wrap(err, "failed to create order")
	}

	return nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	query := `
		UPDATE orders SET
			status = $1, delivery_type = $2, dispute_opened_at = $3,
			dispute_reason = $4, resolved_by = $5, resolution_notes = $6,
			completed_at = $7, metadata = $8, updated_at = $9
		WHERE id = $10
	`

	_, err := r.db.ExecContext(ctx, query,
		o.Status, o.DeliveryType, o.DisputeOpenedAt,
		o.DisputeReason, o.ResolvedBy, o.ResolutionNotes,
		o.CompletedAt, o.Metadata, o.UpdatedAt,
		o.ID,
	)

	return errors.Wrap(err, "failed to update order")
}

// TransitionStatus performs a conditional status move. It only writes when
// the order's current status matches from; the returned bool reports whether
// the row was updated.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, errors.Wrap(err, "failed to transition order status")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

// ResolveDispute atomically closes a dispute_raised order into refunded or
// completed. A second resolution attempt finds no matching row.
func (r *OrderRepository) ResolveDispute(ctx context.Context, id uuid.UUID, to domain.OrderStatus, resolvedBy uuid.UUID, notes string) (bool, error) {
	query := `
		UPDATE orders SET
			status = $1, resolved_by = $2, resolution_notes = $3,
			completed_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = $5
	`

	res, err := r.db.ExecContext(ctx, query, to, resolvedBy, notes, id, domain.OrderStatusDisputeRaised)
	if err != nil {
		return false, errors.Wrap(err, "failed to resolve dispute")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

// OpenDispute moves a paid or delivered order into dispute_raised.
func (r *OrderRepository) OpenDispute(ctx context.Context, id uuid.UUID, reason string, openedAt time.Time) (bool, error) {
	query := `
		UPDATE orders SET
			status = $1, dispute_opened_at = $2, dispute_reason = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ($5, $6)
	`

	res, err := r.db.ExecContext(ctx, query,
		domain.OrderStatusDisputeRaised, openedAt, reason, id,
		domain.OrderStatusPaid, domain.OrderStatusDelivered,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to open dispute")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

// Complete finalizes a delivered order, stamping completed_at in the same
// statement as the status move.
func (r *OrderRepository) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE orders SET
			status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	res, err := r.db.ExecContext(ctx, query, domain.OrderStatusCompleted, id, domain.OrderStatusDelivered)
	if err != nil {
		return false, errors.Wrap(err, "failed to complete order")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	err := r.db.GetContext(ctx, &o, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find order")
	}

	return &o, nil
}

func (r *OrderRepository) FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	var o domain.Order
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE payment_reference = $1`, orderColumns)

	err := r.db.GetContext(ctx, &o, query, ref)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find order by payment reference")
	}

	return &o, nil
}

func (r *OrderRepository) FindByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	var orders []*domain.Order
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orderColumns)

	err := r.db.SelectContext(ctx, &orders, query, buyerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find orders by buyer")
	}
	return orders, nil
}

func (r *OrderRepository) FindBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	var orders []*domain.Order
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orderColumns)

	err := r.db.SelectContext(ctx, &orders, query, sellerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find orders by seller")
	}
	return orders, nil
}

func (r *OrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]*domain.Order, error) {
	var orders []*domain.Order
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`, orderColumns)

	err := r.db.SelectContext(ctx, &orders, query, status, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find orders by status")
	}
	return orders, nil
}

func (r *OrderRepository) CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM orders WHERE status = $1`
	err := r.db.GetContext(ctx, &total, query, status)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count orders by status")
	}
	return total, nil
}

// FindStalePending returns pending orders older than the cutoff, for the
// abandoned-checkout sweep.
func (r *OrderRepository) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error) {
	var orders []*domain.Order
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE status = 'pending' AND created_at < NOW() - $1::INTERVAL
		ORDER BY created_at ASC
		LIMIT $2`, orderColumns)

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))

	err := r.db.SelectContext(ctx, &orders, query, interval, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find stale pending orders")
	}
	return orders, nil
}

// --- Scanner queries ---

// CountInvolvingUser counts orders where the user is buyer or seller,
// excluding abandoned checkouts.
func (r *OrderRepository) CountInvolvingUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `
        SELECT COUNT(*)
        FROM orders
        WHERE (buyer_id = $1 OR seller_id = $1)
          AND status != 'cancelled'
    `
	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count orders involving user")
	}
	return count, nil
}

// CountDisputesInvolvingUser counts orders involving the user that have ever
// entered dispute (currently disputed or closed out of one).
func (r *OrderRepository) CountDisputesInvolvingUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `
        SELECT COUNT(*)
        FROM orders
        WHERE (buyer_id = $1 OR seller_id = $1)
          AND dispute_opened_at IS NOT NULL
    `
	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count disputes involving user")
	}
	return count, nil
}

// CountBuyerOrders counts all non-cancelled orders placed by the buyer.
func (r *OrderRepository) CountBuyerOrders(ctx context.Context, buyerID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM orders WHERE buyer_id = $1 AND status != 'cancelled'`
	err := r.db.GetContext(ctx, &count, query, buyerID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count buyer orders")
	}
	return count, nil
}

// CountRecentOrders counts the user's orders created inside the trailing
// window.
func (r *OrderRepository) CountRecentOrders(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error) {
	var count int
	query := `
        SELECT COUNT(*)
        FROM orders
        WHERE (buyer_id = $1 OR seller_id = $1)
          AND created_at > NOW() - $2::INTERVAL
    `
	interval := fmt.Sprintf("%d seconds", int(window.Seconds()))

	err := r.db.GetContext(ctx, &count, query, userID, interval)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count recent orders")
	}
	return count, nil
}

// CountFastDeliveries counts the seller's completed orders whose delivery
// code was handed out within the window of order creation. Disputed and
// refunded orders are excluded.
const fastDeliveriesQuery = `
        SELECT COUNT(*)
        FROM orders o
        JOIN delivery_codes dc ON dc.order_id = o.id
        WHERE o.seller_id = $1
          AND o.status = 'completed'
          AND dc.delivered_at IS NOT NULL
          AND dc.delivered_at - o.created_at < $2::INTERVAL
    `

func (r *OrderRepository) CountFastDeliveries(ctx context.Context, sellerID uuid.UUID, window time.Duration) (int, error) {
	var count int
	interval := fmt.Sprintf("%d seconds", int(window.Seconds()))

	err := r.db.GetContext(ctx, &count, fastDeliveriesQuery, sellerID, interval)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count fast deliveries")
	}
	return count, nil
}
