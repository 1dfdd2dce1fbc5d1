package delivery

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

type MockCodeRepository struct {
	mock.Mock
}

func (m *MockCodeRepository) Claim(ctx context.Context, listingID, orderID uuid.UUID) (*domain.DeliveryCode, error) {
	args := m.Called(ctx, listingID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryCode), args.Error(1)
}

func (m *MockCodeRepository) CountUnused(ctx context.Context, listingID uuid.UUID) (int, error) {
	args := m.Called(ctx, listingID)
	return args.Int(0), args.Error(1)
}

func (m *MockCodeRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.DeliveryCode, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryCode), args.Error(1)
}

func (m *MockCodeRepository) BulkInsert(ctx context.Context, codes []*domain.DeliveryCode) error {
	args := m.Called(ctx, codes)
	return args.Error(0)
}

func (m *MockCodeRepository) FindByListing(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]*domain.DeliveryCode, error) {
	args := m.Called(ctx, listingID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DeliveryCode), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
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

// Helpers

func paidAutomaticOrder() *domain.Order {
	return &domain.Order{
		ID:           uuid.New(),
		ListingID:    uuid.New(),
		BuyerID:      uuid.New(),
		SellerID:     uuid.New(),
		Quantity:     1,
		Status:       domain.OrderStatusPaid,
		DeliveryType: domain.DeliveryAutomatic,
		Amount:       decimal.NewFromFloat(9.99),
	}
}

func newTestClaimer(codes *MockCodeRepository, orders *MockOrderRepository, listings *MockListingRepository) *Claimer {
	return NewClaimer(codes, orders, listings, nil, logger.NewNop())
}

// Tests

func TestDeliverClaimsCode(t *testing.T) {
	codes := new(MockCodeRepository)
	orders := new(MockOrderRepository)
	listings := new(MockListingRepository)
	claimer := newTestClaimer(codes, orders, listings)

	o := paidAutomaticOrder()
	code := &domain.DeliveryCode{ID: uuid.New(), ListingID: o.ListingID, CodeText: "AAAA-BBBB"}

	codes.On("FindByOrderID", mock.Anything, o.ID).Return(nil, errors.ErrCodeNotFound)
	codes.On("Claim", mock.Anything, o.ListingID, o.ID).Return(code, nil)
	orders.On("TransitionStatus", mock.Anything, o.ID, domain.OrderStatusPaid, domain.OrderStatusDelivered).Return(true, nil)

	err := claimer.Deliver(context.Background(), o)

	assert.NoError(t, err)
	codes.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestDeliverReplayReturnsRecorded(t *testing.T) {
	codes := new(MockCodeRepository)
	orders := new(MockOrderRepository)
	listings := new(MockListingRepository)
	claimer := newTestClaimer(codes, orders, listings)

	o := paidAutomaticOrder()
	existing := &domain.DeliveryCode{ID: uuid.New(), ListingID: o.ListingID, IsUsed: true}

	codes.On("FindByOrderID", mock.Anything, o.ID).Return(existing, nil)

	err := claimer.Deliver(context.Background(), o)

	assert.ErrorIs(t, err, errors.ErrDeliveryRecorded)
	codes.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverOutOfStockFallsBackToManual(t *testing.T) {
	codes := new(MockCodeRepository)
	orders := new(MockOrderRepository)
	listings := new(MockListingRepository)
	claimer := newTestClaimer(codes, orders, listings)

	o := paidAutomaticOrder()

	codes.On("FindByOrderID", mock.Anything, o.ID).Return(nil, errors.ErrCodeNotFound)
	codes.On("Claim", mock.Anything, o.ListingID, o.ID).Return(nil, errors.ErrOutOfStock)
	orders.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	orders.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.Order) bool {
		return u.DeliveryType == domain.DeliveryManual
	})).Return(nil)

	err := claimer.Deliver(context.Background(), o)

	assert.NoError(t, err)
	orders.AssertExpectations(t)
	orders.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverRefusesManualOrder(t *testing.T) {
	claimer := newTestClaimer(new(MockCodeRepository), new(MockOrderRepository), new(MockListingRepository))

	o := paidAutomaticOrder()
	o.DeliveryType = domain.DeliveryManual

	err := claimer.Deliver(context.Background(), o)

	assert.ErrorIs(t, err, errors.ErrNotAutomatic)
}

func TestDeliverRefusesUnpaidOrder(t *testing.T) {
	claimer := newTestClaimer(new(MockCodeRepository), new(MockOrderRepository), new(MockListingRepository))

	o := paidAutomaticOrder()
	o.Status = domain.OrderStatusPending

	err := claimer.Deliver(context.Background(), o)

	assert.ErrorIs(t, err, errors.ErrOrderNotPaid)
}

func TestUploadCodes(t *testing.T) {
	codes := new(MockCodeRepository)
	orders := new(MockOrderRepository)
	listings := new(MockListingRepository)
	claimer := newTestClaimer(codes, orders, listings)

	sellerID := uuid.New()
	listing := &domain.Listing{
		ID:           uuid.New(),
		SellerID:     sellerID,
		DeliveryType: domain.DeliveryAutomatic,
		Status:       domain.ListingStatusActive,
		CreatedAt:    time.Now(),
	}

	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)
	codes.On("BulkInsert", mock.Anything, mock.MatchedBy(func(batch []*domain.DeliveryCode) bool {
		return len(batch) == 2 && batch[0].ListingID == listing.ID
	})).Return(nil)

	n, err := claimer.UploadCodes(context.Background(), &UploadCodesRequest{
		ListingID: listing.ID,
		SellerID:  sellerID,
		Codes:     []string{"AAAA-1111", "BBBB-2222"},
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	codes.AssertExpectations(t)
}

func TestUploadCodesWrongSeller(t *testing.T) {
	codes := new(MockCodeRepository)
	orders := new(MockOrderRepository)
	listings := new(MockListingRepository)
	claimer := newTestClaimer(codes, orders, listings)

	listing := &domain.Listing{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		DeliveryType: domain.DeliveryAutomatic,
	}

	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := claimer.UploadCodes(context.Background(), &UploadCodesRequest{
		ListingID: listing.ID,
		SellerID:  uuid.New(),
		Codes:     []string{"AAAA-1111"},
	})

	assert.ErrorIs(t, err, errors.ErrListingNotFound)
	codes.AssertNotCalled(t, "BulkInsert", mock.Anything, mock.Anything)
}

func TestUploadCodesManualListing(t *testing.T) {
	codes := new(MockCodeRepository)
	orders := new(MockOrderRepository)
	listings := new(MockListingRepository)
	claimer := newTestClaimer(codes, orders, listings)

	sellerID := uuid.New()
	listing := &domain.Listing{
		ID:           uuid.New(),
		SellerID:     sellerID,
		DeliveryType: domain.DeliveryManual,
	}

	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)

	_, err := claimer.UploadCodes(context.Background(), &UploadCodesRequest{
		ListingID: listing.ID,
		SellerID:  sellerID,
		Codes:     []string{"AAAA-1111"},
	})

	assert.ErrorIs(t, err, errors.ErrNotAutomatic)
}

func TestCodeForOrderBuyerOnly(t *testing.T) {
	codes := new(MockCodeRepository)
	orders := new(MockOrderRepository)
	listings := new(MockListingRepository)
	claimer := newTestClaimer(codes, orders, listings)

	o := paidAutomaticOrder()
	orders.On("FindByID", mock.Anything, o.ID).Return(o, nil)

	_, err := claimer.CodeForOrder(context.Background(), o.ID, uuid.New())

	assert.ErrorIs(t, err, errors.ErrOrderNotFound)
	codes.AssertNotCalled(t, "FindByOrderID", mock.Anything, mock.Anything)
}
