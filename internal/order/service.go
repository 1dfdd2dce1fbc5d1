// Package order implements the purchase lifecycle.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/realtime"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// Repository defines order persistence as consumed by this service.
type Repository interface {
	Create(ctx context.Context, o *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error)
	OpenDispute(ctx context.Context, id uuid.UUID, reason string, openedAt time.Time) (bool, error)
	Complete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error)
	FindBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error)
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error)
}

// ListingRepository covers the listing reads and stock writes orders need.
type ListingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

// Deliverer fulfills a paid automatic order. Implementations must handle
// their own out-of-stock fallback.
type Deliverer interface {
	Deliver(ctx context.Context, o *domain.Order) error
}

// Notifier sends user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) error
}

type Service struct {
	repo        Repository
	listingRepo ListingRepository
	deliverer   Deliverer
	notifier    Notifier
	bus         *realtime.Bus
	logger      logger.Logger
}

func NewService(
	repo Repository,
	listingRepo ListingRepository,
	deliverer Deliverer,
	notifier Notifier,
	bus *realtime.Bus,
	log logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		listingRepo: listingRepo,
		deliverer:   deliverer,
		notifier:    notifier,
		bus:         bus,
		logger:      log,
	}
}

type CreateOrderRequest struct {
	ListingID        uuid.UUID            `json:"listing_id" validate:"required"`
	BuyerID          uuid.UUID            `json:"buyer_id" validate:"required"`
	Quantity         int                  `json:"quantity" validate:"required,gt=0"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method" validate:"required,oneof=card crypto"`
	PaymentReference string               `json:"payment_reference" validate:"required"`
}

// Create opens a pending order against an active listing. The delivery type
// is snapshotted from the listing so later listing edits cannot reroute the
// order. A payment reference that was already used surfaces the original
// order instead of a second charge.
func (s *Service) Create(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	listing, err := s.listingRepo.FindByID(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}

	if listing.Status != domain.ListingStatusActive {
		return nil, errors.ErrListingNotFound
	}
	if listing.Stock < req.Quantity {
		return nil, errors.ErrOutOfStock
	}
	if listing.SellerID == req.BuyerID {
		return nil, errors.ErrSelfPurchase
	}

	now := time.Now()
	o := &domain.Order{
		ID:               uuid.New(),
		ListingID:        listing.ID,
		BuyerID:          req.BuyerID,
		SellerID:         listing.SellerID,
		Amount:           listing.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Quantity:         req.Quantity,
		Status:           domain.OrderStatusPending,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		DeliveryType:     listing.DeliveryType,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if err == errors.ErrDuplicatePayment {
			existing, findErr := s.repo.FindByPaymentReference(ctx, req.PaymentReference)
			if findErr != nil {
				return nil, errors.Wrap(findErr, "duplicate payment reference but original order not found")
			}
			s.logger.Warn("Duplicate payment reference, returning existing order", map[string]interface{}{
				"order_id":  existing.ID,
				"reference": req.PaymentReference,
			})
			return existing, nil
		}
		return nil, err
	}

	s.logger.Info("Order created", map[string]interface{}{
		"order_id":   o.ID,
		"listing_id": o.ListingID,
		"buyer_id":   o.BuyerID,
		"amount":     o.Amount.String(),
	})

	return o, nil
}

// MarkPaid confirms payment on a pending order, consumes listing stock, and
// kicks off fulfillment. Automatic orders are delivered inline so the buyer
// sees a code immediately; the deliverer downgrades to manual when stock
// runs out.
func (s *Service) MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	moved, err := s.repo.TransitionStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	if !moved {
		o, findErr := s.repo.FindByID(ctx, orderID)
		if findErr != nil {
			return nil, findErr
		}
		if o.Status == domain.OrderStatusPaid {
			// payment confirmation replayed, nothing to do
			return o, nil
		}
		if IsTerminal(o.Status) {
			s.logger.Warn("Payment confirmation for closed order ignored", map[string]interface{}{
				"order_id": orderID,
				"status":   o.Status,
			})
		}
		return nil, errors.ErrIllegalTransition
	}

	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.listingRepo.DecrementStock(ctx, o.ListingID, o.Quantity); err != nil {
		// The payment is in; log and continue rather than strand the buyer.
		s.logger.Error("Stock decrement failed after payment", map[string]interface{}{
			"order_id":   o.ID,
			"listing_id": o.ListingID,
			"error":      err.Error(),
		})
	}

	s.publish("order_paid", o, nil)
	s.notifyAsync(o.BuyerID, "ORDER_PAID", map[string]interface{}{
		"order_id": o.ID.String(),
		"amount":   o.Amount.String(),
	})

	if o.DeliveryType == domain.DeliveryAutomatic {
		if err := s.deliverer.Deliver(ctx, o); err != nil {
			s.logger.Error("Automatic delivery failed", map[string]interface{}{
				"order_id": o.ID,
				"error":    err.Error(),
			})
		}
		return s.repo.FindByID(ctx, orderID)
	}

	s.notifyAsync(o.SellerID, "MANUAL_DELIVERY_DUE", map[string]interface{}{
		"order_id": o.ID.String(),
	})

	return o, nil
}

// MarkDelivered records a manual fulfillment by the seller.
func (s *Service) MarkDelivered(ctx context.Context, orderID, sellerID uuid.UUID) (*domain.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SellerID != sellerID {
		return nil, errors.ErrOrderNotFound
	}
	if o.Status == domain.OrderStatusDelivered {
		return nil, errors.ErrDeliveryRecorded
	}
	if !CanTransition(o.Status, domain.OrderStatusDelivered) {
		return nil, errors.ErrOrderNotPaid
	}

	moved, err := s.repo.TransitionStatus(ctx, orderID, domain.OrderStatusPaid, domain.OrderStatusDelivered)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, errors.ErrIllegalTransition
	}

	o, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish("order_delivered", o, nil)
	s.notifyAsync(o.BuyerID, "CODE_DELIVERED", map[string]interface{}{
		"order_id": o.ID.String(),
	})

	return o, nil
}

// Complete lets the buyer confirm receipt, releasing funds to the seller.
func (s *Service) Complete(ctx context.Context, orderID, buyerID uuid.UUID) (*domain.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, errors.ErrOrderNotFound
	}
	if !CanTransition(o.Status, domain.OrderStatusCompleted) {
		return nil, errors.ErrIllegalTransition
	}

	moved, err := s.repo.Complete(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, errors.ErrIllegalTransition
	}

	o, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish("order_completed", o, nil)
	return o, nil
}

// OpenDispute freezes a paid or delivered order pending moderator review.
func (s *Service) OpenDispute(ctx context.Context, orderID, buyerID uuid.UUID, reason string) (*domain.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, errors.ErrOrderNotFound
	}
	if o.Status == domain.OrderStatusDisputeRaised {
		return nil, errors.ErrDisputeAlreadyOpen
	}
	if !CanTransition(o.Status, domain.OrderStatusDisputeRaised) {
		return nil, errors.ErrIllegalTransition
	}

	moved, err := s.repo.OpenDispute(ctx, orderID, reason, time.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		if o.Status == domain.OrderStatusDisputeRaised {
			return nil, errors.ErrDisputeAlreadyOpen
		}
		return nil, errors.ErrIllegalTransition
	}

	o, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish("dispute_opened", o, map[string]interface{}{"reason": reason})
	s.notifyAsync(o.SellerID, "DISPUTE_OPENED", map[string]interface{}{
		"order_id": o.ID.String(),
		"reason":   reason,
	})

	return o, nil
}

// Cancel abandons an unpaid order. Anything past pending is refused.
func (s *Service) Cancel(ctx context.Context, orderID, actorID uuid.UUID) (*domain.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actorID && o.SellerID != actorID {
		return nil, errors.ErrOrderNotFound
	}
	if !CanTransition(o.Status, domain.OrderStatusCancelled) {
		return nil, errors.ErrOrderNotCancellable
	}

	moved, err := s.repo.TransitionStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, errors.ErrOrderNotCancellable
	}

	o, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish("order_cancelled", o, nil)
	s.notifyAsync(o.BuyerID, "ORDER_CANCELLED", map[string]interface{}{
		"order_id": o.ID.String(),
	})

	return o, nil
}

// SweepStalePending cancels pending orders whose checkout was abandoned.
// Returns the number of orders cancelled.
func (s *Service) SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range stale {
		moved, err := s.repo.TransitionStatus(ctx, o.ID, domain.OrderStatusPending, domain.OrderStatusCancelled)
		if err != nil {
			s.logger.Error("Stale order sweep failed", map[string]interface{}{
				"order_id": o.ID,
				"error":    err.Error(),
			})
			continue
		}
		if moved {
			cancelled++
		}
	}

	if cancelled > 0 {
		s.logger.Info("Stale pending orders cancelled", map[string]interface{}{"count": cancelled})
	}
	return cancelled, nil
}

// Get returns the order if the caller is a party to it or an admin.
func (s *Service) Get(ctx context.Context, orderID, actorID uuid.UUID, isAdmin bool) (*domain.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.BuyerID != actorID && o.SellerID != actorID {
		return nil, errors.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	return s.repo.FindByBuyer(ctx, buyerID, limit, offset)
}

func (s *Service) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	return s.repo.FindBySeller(ctx, sellerID, limit, offset)
}

func (s *Service) publish(eventType string, o *domain.Order, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(realtime.TableOrders, realtime.Event{
		Type:      eventType,
		OrderID:   o.ID,
		Status:    string(o.Status),
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (s *Service) notifyAsync(userID uuid.UUID, eventType string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, userID, eventType, data); err != nil {
			s.logger.Error("Notification dispatch failed", map[string]interface{}{
				"user_id": userID,
				"event":   eventType,
				"error":   err.Error(),
			})
		}
	}()
}
