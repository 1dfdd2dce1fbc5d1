package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/order"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/config"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// Orders is the slice of the order lifecycle the reconciler drives.
type Orders interface {
	Create(ctx context.Context, req *order.CreateOrderRequest) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// OrderLookup resolves provider references back to orders.
type OrderLookup interface {
	FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error)
}

// Reconciler turns provider outcomes into order state transitions. It is the
// only component allowed to declare an order paid.
type Reconciler struct {
	checkout CheckoutProvider
	crypto   CryptoProvider
	orders   Orders
	lookup   OrderLookup
	cfg      config.PaymentConfig
	logger   logger.Logger
}

func NewReconciler(
	checkout CheckoutProvider,
	crypto CryptoProvider,
	orders Orders,
	lookup OrderLookup,
	cfg config.PaymentConfig,
	log logger.Logger,
) *Reconciler {
	return &Reconciler{
		checkout: checkout,
		crypto:   crypto,
		orders:   orders,
		lookup:   lookup,
		cfg:      cfg,
		logger:   log,
	}
}

type CardCheckoutRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	BuyerID   uuid.UUID `json:"buyer_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
	SessionID string    `json:"session_id" validate:"required"`
}

// OpenCardCheckout records a pending order against the provider's checkout
// session. The session id doubles as the payment reference, which is what
// makes a replayed request land on the same order.
func (r *Reconciler) OpenCardCheckout(ctx context.Context, req *CardCheckoutRequest) (*domain.Order, error) {
	return r.orders.Create(ctx, &order.CreateOrderRequest{
		ListingID:        req.ListingID,
		BuyerID:          req.BuyerID,
		Quantity:         req.Quantity,
		PaymentMethod:    domain.PaymentMethodCard,
		PaymentReference: req.SessionID,
	})
}

// CaptureCard captures the checkout session and, on a COMPLETED capture,
// marks the order paid. The capture deadline is a soft timeout: when it
// fires the buyer gets ErrCaptureTimeout while the provider may still settle
// later, to be picked up by a replayed capture.
func (r *Reconciler) CaptureCard(ctx context.Context, sessionID string) (*domain.Order, error) {
	o, err := r.lookup.FindByPaymentReference(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	captureCtx, cancel := context.WithTimeout(ctx, r.cfg.CaptureTimeout)
	defer cancel()

	result, err := r.checkout.Capture(captureCtx, sessionID)
	if err != nil {
		r.logger.Warn("Card capture failed", map[string]interface{}{
			"order_id":   o.ID,
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, err
	}

	if result.Status != StatusCompleted {
		r.logger.Warn("Capture returned non-completed status", map[string]interface{}{
			"order_id": o.ID,
			"status":   result.Status,
		})
		return nil, errors.ErrCaptureNotCompleted
	}

	r.logger.Info("Card capture completed", map[string]interface{}{
		"order_id":   o.ID,
		"session_id": sessionID,
	})

	return r.orders.MarkPaid(ctx, o.ID)
}

type CryptoCheckoutRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	BuyerID   uuid.UUID `json:"buyer_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
	Currency  string    `json:"currency" validate:"required,oneof=BTC ETH LTC USDT"`
}

type CryptoCheckoutResponse struct {
	Order   *domain.Order `json:"order"`
	Invoice *Invoice      `json:"invoice"`
}

// OpenCryptoCheckout creates the processor invoice first, then the pending
// order keyed on the invoice id. An invoice that never gets paid leaves a
// pending order for the stale sweep.
func (r *Reconciler) OpenCryptoCheckout(ctx context.Context, req *CryptoCheckoutRequest) (*CryptoCheckoutResponse, error) {
	reference := uuid.New().String()

	// Amount comes from the listing inside Create; the invoice needs it up
	// front, so resolve the order first with a provisional reference and
	// invoice against its amount.
	o, err := r.orders.Create(ctx, &order.CreateOrderRequest{
		ListingID:        req.ListingID,
		BuyerID:          req.BuyerID,
		Quantity:         req.Quantity,
		PaymentMethod:    domain.PaymentMethodCrypto,
		PaymentReference: reference,
	})
	if err != nil {
		return nil, err
	}

	inv, err := r.crypto.CreateInvoice(ctx, o.Amount, req.Currency, reference)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Crypto invoice created", map[string]interface{}{
		"order_id":   o.ID,
		"invoice_id": inv.ID,
		"currency":   req.Currency,
	})

	return &CryptoCheckoutResponse{Order: o, Invoice: inv}, nil
}

// ConfirmCrypto handles the processor's payment callback. The invoice status
// is re-fetched from the processor rather than trusted from the webhook
// body.
func (r *Reconciler) ConfirmCrypto(ctx context.Context, invoiceID string) (*domain.Order, error) {
	inv, err := r.crypto.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if inv.Status != "paid" && inv.Status != "confirmed" {
		return nil, errors.ErrCaptureNotCompleted
	}

	o, err := r.lookup.FindByPaymentReference(ctx, invoiceReference(inv))
	if err != nil {
		return nil, err
	}

	r.logger.Info("Crypto payment confirmed", map[string]interface{}{
		"order_id":   o.ID,
		"invoice_id": inv.ID,
	})

	return r.orders.MarkPaid(ctx, o.ID)
}

// invoiceReference digs our order reference out of the invoice. The create
// call sets it; processors echo it in the pay URL query.
func invoiceReference(inv *Invoice) string {
	const key = "reference="
	if i := strings.Index(inv.PayURL, key); i >= 0 {
		ref := inv.PayURL[i+len(key):]
		if j := strings.Index(ref, "&"); j >= 0 {
			ref = ref[:j]
		}
		if ref != "" {
			return ref
		}
	}
	return inv.ID
}

// Fee computes the platform's cut of an order amount.
func (r *Reconciler) Fee(o *domain.Order) decimal.Decimal {
	rate := r.cfg.PlatformFeeRate
	if rate <= 0 {
		return decimal.Zero
	}
	return o.Amount.Mul(decimal.NewFromFloat(rate)).Round(2)
}
