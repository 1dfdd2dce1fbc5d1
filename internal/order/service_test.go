package order

import (
	"context"
	"testing"
	"time"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mocks

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockRepository) FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) OpenDispute(ctx context.Context, id uuid.UUID, reason string, openedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, reason, openedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	args := m.Called(ctx, buyerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockRepository) FindBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	args := m.Called(ctx, sellerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockRepository) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockListingRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

// Helpers

func activeListing(sellerID uuid.UUID) *domain.Listing {
	return &domain.Listing{
		ID:           uuid.New(),
		SellerID:     sellerID,
		Game:         "Eternal Siege",
		Title:        "Season pass key",
		Price:        decimal.NewFromFloat(19.99),
		Stock:        10,
		DeliveryType: domain.DeliveryAutomatic,
		Status:       domain.ListingStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func newTestService(repo *MockRepository, listings *MockListingRepository, deliverer *MockDeliverer) *Service {
	var d Deliverer
	if deliverer != nil {
		d = deliverer
	}
	return NewService(repo, listings, d, nil, nil, logger.NewNop())
}

// Tests

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusPaid, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusDelivered, false},
		{domain.OrderStatusPending, domain.OrderStatusCompleted, false},
		{domain.OrderStatusPaid, domain.OrderStatusDelivered, true},
		{domain.OrderStatusPaid, domain.OrderStatusDisputeRaised, true},
		{domain.OrderStatusPaid, domain.OrderStatusCancelled, false},
		{domain.OrderStatusPaid, domain.OrderStatusRefunded, false},
		{domain.OrderStatusDelivered, domain.OrderStatusCompleted, true},
		{domain.OrderStatusDelivered, domain.OrderStatusDisputeRaised, true},
		{domain.OrderStatusDelivered, domain.OrderStatusRefunded, false},
		{domain.OrderStatusDisputeRaised, domain.OrderStatusRefunded, true},
		{domain.OrderStatusDisputeRaised, domain.OrderStatusCompleted, true},
		{domain.OrderStatusDisputeRaised, domain.OrderStatusDelivered, false},
		{domain.OrderStatusCompleted, domain.OrderStatusDisputeRaised, false},
		{domain.OrderStatusRefunded, domain.OrderStatusPaid, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPaid, false},
	}

	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		assert.Equal(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(domain.OrderStatusCompleted))
	assert.True(t, IsTerminal(domain.OrderStatusRefunded))
	assert.True(t, IsTerminal(domain.OrderStatusCancelled))
	assert.False(t, IsTerminal(domain.OrderStatusPending))
	assert.False(t, IsTerminal(domain.OrderStatusDisputeRaised))
}

func TestCreateOrder(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	buyerID := uuid.New()
	listing := activeListing(uuid.New())

	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.Status == domain.OrderStatusPending &&
			o.DeliveryType == domain.DeliveryAutomatic &&
			o.Amount.Equal(decimal.NewFromFloat(39.98))
	})).Return(nil)

	o, err := service.Create(context.Background(), &CreateOrderRequest{
		ListingID:        listing.ID,
		BuyerID:          buyerID,
		Quantity:         2,
		PaymentMethod:    domain.PaymentMethodCard,
		PaymentReference: "sess-1001",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, listing.SellerID, o.SellerID)
	repo.AssertExpectations(t)
}

func TestCreateOrderSelfPurchase(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	sellerID := uuid.New()
	listing := activeListing(sellerID)

	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := service.Create(context.Background(), &CreateOrderRequest{
		ListingID:        listing.ID,
		BuyerID:          sellerID,
		Quantity:         1,
		PaymentMethod:    domain.PaymentMethodCard,
		PaymentReference: "sess-1002",
	})

	assert.ErrorIs(t, err, errors.ErrSelfPurchase)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	listing := activeListing(uuid.New())
	listing.Stock = 1

	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := service.Create(context.Background(), &CreateOrderRequest{
		ListingID:        listing.ID,
		BuyerID:          uuid.New(),
		Quantity:         3,
		PaymentMethod:    domain.PaymentMethodCard,
		PaymentReference: "sess-1003",
	})

	assert.ErrorIs(t, err, errors.ErrOutOfStock)
}

func TestCreateOrderDuplicateReferenceReturnsExisting(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	listing := activeListing(uuid.New())
	existing := &domain.Order{
		ID:               uuid.New(),
		ListingID:        listing.ID,
		Status:           domain.OrderStatusPending,
		PaymentReference: "sess-dup",
	}

	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.ErrDuplicatePayment)
	repo.On("FindByPaymentReference", mock.Anything, "sess-dup").Return(existing, nil)

	o, err := service.Create(context.Background(), &CreateOrderRequest{
		ListingID:        listing.ID,
		BuyerID:          uuid.New(),
		Quantity:         1,
		PaymentMethod:    domain.PaymentMethodCard,
		PaymentReference: "sess-dup",
	})

	assert.NoError(t, err)
	assert.Equal(t, existing.ID, o.ID)
	repo.AssertExpectations(t)
}

func TestMarkPaidAutomaticDelivers(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	deliverer := new(MockDeliverer)
	service := newTestService(repo, listings, deliverer)

	orderID := uuid.New()
	o := &domain.Order{
		ID:           orderID,
		ListingID:    uuid.New(),
		BuyerID:      uuid.New(),
		SellerID:     uuid.New(),
		Quantity:     1,
		Status:       domain.OrderStatusPaid,
		DeliveryType: domain.DeliveryAutomatic,
		Amount:       decimal.NewFromFloat(19.99),
	}

	repo.On("TransitionStatus", mock.Anything, orderID, domain.OrderStatusPending, domain.OrderStatusPaid).Return(true, nil)
	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)
	listings.On("DecrementStock", mock.Anything, o.ListingID, 1).Return(nil)
	deliverer.On("Deliver", mock.Anything, o).Return(nil)

	got, err := service.MarkPaid(context.Background(), orderID)

	assert.NoError(t, err)
	assert.Equal(t, orderID, got.ID)
	deliverer.AssertExpectations(t)
	listings.AssertExpectations(t)
}

func TestMarkPaidManualSkipsDeliverer(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	deliverer := new(MockDeliverer)
	service := newTestService(repo, listings, deliverer)

	orderID := uuid.New()
	o := &domain.Order{
		ID:           orderID,
		ListingID:    uuid.New(),
		Quantity:     1,
		Status:       domain.OrderStatusPaid,
		DeliveryType: domain.DeliveryManual,
		Amount:       decimal.NewFromFloat(5),
	}

	repo.On("TransitionStatus", mock.Anything, orderID, domain.OrderStatusPending, domain.OrderStatusPaid).Return(true, nil)
	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)
	listings.On("DecrementStock", mock.Anything, o.ListingID, 1).Return(nil)

	_, err := service.MarkPaid(context.Background(), orderID)

	assert.NoError(t, err)
	deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestMarkPaidReplayIsNoOp(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	orderID := uuid.New()
	o := &domain.Order{ID: orderID, Status: domain.OrderStatusPaid}

	repo.On("TransitionStatus", mock.Anything, orderID, domain.OrderStatusPending, domain.OrderStatusPaid).Return(false, nil)
	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)

	got, err := service.MarkPaid(context.Background(), orderID)

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, got.Status)
	listings.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkPaidOnTerminalOrder(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	orderID := uuid.New()
	o := &domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}

	repo.On("TransitionStatus", mock.Anything, orderID, domain.OrderStatusPending, domain.OrderStatusPaid).Return(false, nil)
	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)

	_, err := service.MarkPaid(context.Background(), orderID)

	assert.ErrorIs(t, err, errors.ErrIllegalTransition)
}

func TestCancelPaidOrderRefused(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	buyerID := uuid.New()
	orderID := uuid.New()
	o := &domain.Order{ID: orderID, BuyerID: buyerID, SellerID: uuid.New(), Status: domain.OrderStatusPaid}

	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)

	_, err := service.Cancel(context.Background(), orderID, buyerID)

	assert.ErrorIs(t, err, errors.ErrOrderNotCancellable)
	// Refused by the lifecycle graph before any write is attempted.
	repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOpenDisputeAlreadyOpen(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	buyerID := uuid.New()
	orderID := uuid.New()
	o := &domain.Order{ID: orderID, BuyerID: buyerID, Status: domain.OrderStatusDisputeRaised}

	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)

	_, err := service.OpenDispute(context.Background(), orderID, buyerID, "code never arrived")

	assert.ErrorIs(t, err, errors.ErrDisputeAlreadyOpen)
	repo.AssertNotCalled(t, "OpenDispute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteByNonBuyer(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	orderID := uuid.New()
	o := &domain.Order{ID: orderID, BuyerID: uuid.New(), Status: domain.OrderStatusDelivered}

	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)

	_, err := service.Complete(context.Background(), orderID, uuid.New())

	assert.ErrorIs(t, err, errors.ErrOrderNotFound)
	repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestCompleteCancelledOrderRefused(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	buyerID := uuid.New()
	orderID := uuid.New()
	o := &domain.Order{ID: orderID, BuyerID: buyerID, Status: domain.OrderStatusCancelled}

	repo.On("FindByID", mock.Anything, orderID).Return(o, nil)

	_, err := service.Complete(context.Background(), orderID, buyerID)

	assert.ErrorIs(t, err, errors.ErrIllegalTransition)
	repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestSweepStalePending(t *testing.T) {
	repo := new(MockRepository)
	listings := new(MockListingRepository)
	service := newTestService(repo, listings, nil)

	stale := []*domain.Order{
		{ID: uuid.New(), Status: domain.OrderStatusPending},
		{ID: uuid.New(), Status: domain.OrderStatusPending},
	}

	repo.On("FindStalePending", mock.Anything, time.Hour, 100).Return(stale, nil)
	for _, o := range stale {
		repo.On("TransitionStatus", mock.Anything, o.ID, domain.OrderStatusPending, domain.OrderStatusCancelled).Return(true, nil)
	}

	n, err := service.SweepStalePending(context.Background(), time.Hour, 100)

	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertExpectations(t)
}
