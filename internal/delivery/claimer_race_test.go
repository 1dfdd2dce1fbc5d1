package delivery

import (
	"context"
	"sync"
	"testing"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// In-memory stand-ins with the same conditional-update semantics as the
// Postgres repositories, for exercising the claim under real contention.

type memCodeRepo struct {
	mu    sync.Mutex
	codes []*domain.DeliveryCode
}

func (r *memCodeRepo) Claim(ctx context.Context, listingID, orderID uuid.UUID) (*domain.DeliveryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.ListingID == listingID && !c.IsUsed {
			c.IsUsed = true
			id := orderID
			c.OrderID = &id
			return c, nil
		}
	}
	return nil, errors.ErrOutOfStock
}

func (r *memCodeRepo) CountUnused(ctx context.Context, listingID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.codes {
		if c.ListingID == listingID && !c.IsUsed {
			n++
		}
	}
	return n, nil
}

func (r *memCodeRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.DeliveryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.OrderID != nil && *c.OrderID == orderID {
			return c, nil
		}
	}
	return nil, errors.ErrCodeNotFound
}

func (r *memCodeRepo) BulkInsert(ctx context.Context, codes []*domain.DeliveryCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, codes...)
	return nil
}

func (r *memCodeRepo) FindByListing(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]*domain.DeliveryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DeliveryCode
	for _, c := range r.codes {
		if c.ListingID == listingID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *memOrderRepo) Update(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func TestClaimRaceExactlyOneWinnerPerCode(t *testing.T) {
	const pool = 5
	const claimants = 20

	listingID := uuid.New()
	codeRepo := &memCodeRepo{}
	for i := 0; i < pool; i++ {
		codeRepo.codes = append(codeRepo.codes, &domain.DeliveryCode{
			ID:        uuid.New(),
			ListingID: listingID,
		})
	}

	orderRepo := &memOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
	orders := make([]*domain.Order, 0, claimants)
	for i := 0; i < claimants; i++ {
		o := &domain.Order{
			ID:           uuid.New(),
			ListingID:    listingID,
			BuyerID:      uuid.New(),
			SellerID:     uuid.New(),
			Quantity:     1,
			Status:       domain.OrderStatusPaid,
			DeliveryType: domain.DeliveryAutomatic,
		}
		orders = append(orders, o)
		orderRepo.orders[o.ID] = o
	}

	claimer := NewClaimer(codeRepo, orderRepo, nil, nil, logger.NewNop())

	var wg sync.WaitGroup
	for _, o := range orders {
		wg.Add(1)
		go func(o *domain.Order) {
			defer wg.Done()
			err := claimer.Deliver(context.Background(), o)
			assert.NoError(t, err)
		}(o)
	}
	wg.Wait()

	// Exactly pool orders got a code, each code went to exactly one order.
	seen := make(map[uuid.UUID]uuid.UUID)
	for _, c := range codeRepo.codes {
		assert.True(t, c.IsUsed)
		assert.NotNil(t, c.OrderID)
		_, dup := seen[c.ID]
		assert.False(t, dup)
		seen[c.ID] = *c.OrderID
	}
	assert.Len(t, seen, pool)

	delivered, manual := 0, 0
	for _, o := range orderRepo.orders {
		switch {
		case o.Status == domain.OrderStatusDelivered:
			delivered++
		case o.Status == domain.OrderStatusPaid && o.DeliveryType == domain.DeliveryManual:
			manual++
		}
	}
	assert.Equal(t, pool, delivered)
	assert.Equal(t, claimants-pool, manual)
}
