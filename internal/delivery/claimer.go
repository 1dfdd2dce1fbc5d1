// Package delivery hands out pre-provisioned codes for automatic orders.
package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// CodeRepository provides atomic code claims.
type CodeRepository interface {
	Claim(ctx context.Context, listingID, orderID uuid.UUID) (*domain.DeliveryCode, error)
	CountUnused(ctx context.Context, listingID uuid.UUID) (int, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.DeliveryCode, error)
	BulkInsert(ctx context.Context, codes []*domain.DeliveryCode) error
	FindByListing(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]*domain.DeliveryCode, error)
}

// OrderRepository covers the order writes the claimer performs.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error)
	Update(ctx context.Context, o *domain.Order) error
}

// ListingRepository is read-only here; ownership checks on code upload.
type ListingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
}

// Notifier sends user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) error
}

type Claimer struct {
	codeRepo    CodeRepository
	orderRepo   OrderRepository
	listingRepo ListingRepository
	notifier    Notifier
	logger      logger.Logger
}

func NewClaimer(
	codeRepo CodeRepository,
	orderRepo OrderRepository,
	listingRepo ListingRepository,
	notifier Notifier,
	log logger.Logger,
) *Claimer {
	return &Claimer{
		codeRepo:    codeRepo,
		orderRepo:   orderRepo,
		listingRepo: listingRepo,
		notifier:    notifier,
		logger:      log,
	}
}

// Deliver claims one unused code for the paid order and marks it delivered.
// The claim statement is where exactly-once lives: two orders can never
// receive the same code regardless of how many claimers race. When the pool
// is empty the order falls back to manual delivery instead of failing the
// purchase.
func (c *Claimer) Deliver(ctx context.Context, o *domain.Order) error {
	if o.DeliveryType != domain.DeliveryAutomatic {
		return errors.ErrNotAutomatic
	}
	if o.Status != domain.OrderStatusPaid {
		return errors.ErrOrderNotPaid
	}

	// Replayed delivery attempt: the code is already attached.
	if existing, err := c.codeRepo.FindByOrderID(ctx, o.ID); err == nil && existing != nil {
		return errors.ErrDeliveryRecorded
	}

	code, err := c.codeRepo.Claim(ctx, o.ListingID, o.ID)
	if err == errors.ErrOutOfStock {
		return c.fallbackToManual(ctx, o)
	}
	if err != nil {
		return err
	}

	moved, err := c.orderRepo.TransitionStatus(ctx, o.ID, domain.OrderStatusPaid, domain.OrderStatusDelivered)
	if err != nil {
		return err
	}
	if !moved {
		// Order moved under us (dispute, refund); the code stays attached
		// for the moderation trail.
		c.logger.Warn("Code claimed but order no longer paid", map[string]interface{}{
			"order_id": o.ID,
			"code_id":  code.ID,
		})
		return errors.ErrIllegalTransition
	}

	c.logger.Info("Delivery code claimed", map[string]interface{}{
		"order_id":   o.ID,
		"listing_id": o.ListingID,
		"code_id":    code.ID,
	})

	c.notifyAsync(o.BuyerID, "CODE_DELIVERED", map[string]interface{}{
		"order_id": o.ID.String(),
	})

	return nil
}

// fallbackToManual downgrades the order's delivery snapshot so the seller
// fulfills it by hand. Both sides are told.
func (c *Claimer) fallbackToManual(ctx context.Context, o *domain.Order) error {
	fresh, err := c.orderRepo.FindByID(ctx, o.ID)
	if err != nil {
		return err
	}

	fresh.DeliveryType = domain.DeliveryManual
	if fresh.Metadata == nil {
		fresh.Metadata = domain.Metadata{}
	}
	fresh.Metadata["delivery_fallback"] = "code_pool_exhausted"
	fresh.UpdatedAt = time.Now()
	if err := c.orderRepo.Update(ctx, fresh); err != nil {
		return errors.Wrap(err, "failed to downgrade order to manual delivery")
	}

	c.logger.Warn("Code pool exhausted, order downgraded to manual", map[string]interface{}{
		"order_id":   o.ID,
		"listing_id": o.ListingID,
	})

	c.notifyAsync(o.BuyerID, "DELIVERY_FALLBACK", map[string]interface{}{
		"order_id": o.ID.String(),
	})
	c.notifyAsync(o.SellerID, "MANUAL_DELIVERY_DUE", map[string]interface{}{
		"order_id": o.ID.String(),
	})

	return nil
}

type UploadCodesRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	SellerID  uuid.UUID `json:"seller_id" validate:"required"`
	Codes     []string  `json:"codes" validate:"required,min=1,dive,required"`
}

// UploadCodes provisions a batch of codes for the seller's own listing.
func (c *Claimer) UploadCodes(ctx context.Context, req *UploadCodesRequest) (int, error) {
	listing, err := c.listingRepo.FindByID(ctx, req.ListingID)
	if err != nil {
		return 0, err
	}
	if listing.SellerID != req.SellerID {
		return 0, errors.ErrListingNotFound
	}
	if listing.DeliveryType != domain.DeliveryAutomatic {
		return 0, errors.ErrNotAutomatic
	}

	now := time.Now()
	codes := make([]*domain.DeliveryCode, 0, len(req.Codes))
	for _, text := range req.Codes {
		codes = append(codes, &domain.DeliveryCode{
			ID:        uuid.New(),
			ListingID: req.ListingID,
			CodeText:  text,
			CreatedAt: now,
		})
	}

	if err := c.codeRepo.BulkInsert(ctx, codes); err != nil {
		return 0, err
	}

	c.logger.Info("Delivery codes uploaded", map[string]interface{}{
		"listing_id": req.ListingID,
		"count":      len(codes),
	})

	return len(codes), nil
}

// Stock reports how many unused codes remain for the listing.
func (c *Claimer) Stock(ctx context.Context, listingID uuid.UUID) (int, error) {
	return c.codeRepo.CountUnused(ctx, listingID)
}

// CodeForOrder returns the delivered code, visible to the buyer only.
func (c *Claimer) CodeForOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*domain.DeliveryCode, error) {
	o, err := c.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, errors.ErrOrderNotFound
	}
	return c.codeRepo.FindByOrderID(ctx, orderID)
}

// ListCodes returns the listing's code audit trail for its seller.
func (c *Claimer) ListCodes(ctx context.Context, listingID, sellerID uuid.UUID, limit, offset int) ([]*domain.DeliveryCode, error) {
	listing, err := c.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, errors.ErrListingNotFound
	}
	return c.codeRepo.FindByListing(ctx, listingID, limit, offset)
}

func (c *Claimer) notifyAsync(userID uuid.UUID, eventType string, data map[string]interface{}) {
	if c.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.notifier.Notify(ctx, userID, eventType, data); err != nil {
			c.logger.Error("Notification dispatch failed", map[string]interface{}{
				"user_id": userID,
				"event":   eventType,
				"error":   err.Error(),
			})
		}
	}()
}
