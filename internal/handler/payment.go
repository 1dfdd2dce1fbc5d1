package handler

import (
	"net/http"

	"github.com/darkosells/gaming-marketplace-sub001/internal/middleware"
	"github.com/darkosells/gaming-marketplace-sub001/internal/payment"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/validator"
)

// PaymentHandler manages checkout and capture endpoints.
type PaymentHandler struct {
	reconciler *payment.Reconciler
	validator  *validator.Validator
	logger     logger.Logger
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(reconciler *payment.Reconciler, val *validator.Validator, log logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciler: reconciler,
		validator:  val,
		logger:     log,
	}
}

type cardCheckoutBody struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	SessionID string `json:"session_id" validate:"required"`
}

// OpenCardCheckout opens a pending order for a client-side checkout session.
func (h *PaymentHandler) OpenCardCheckout(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body cardCheckoutBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	listingID, err := parseUUID(body.ListingID)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid listing id")
		return
	}

	o, err := h.reconciler.OpenCardCheckout(r.Context(), &payment.CardCheckoutRequest{
		ListingID: listingID,
		BuyerID:   buyerID,
		Quantity:  body.Quantity,
		SessionID: body.SessionID,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, o)
}

type captureBody struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CaptureCard captures the provider session and confirms the order.
func (h *PaymentHandler) CaptureCard(w http.ResponseWriter, r *http.Request) {
	var body captureBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	o, err := h.reconciler.CaptureCard(r.Context(), body.SessionID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, o)
}

type cryptoCheckoutBody struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Currency  string `json:"currency" validate:"required,oneof=BTC ETH LTC USDT"`
}

// OpenCryptoCheckout creates an invoice with the crypto processor and a
// matching pending order.
func (h *PaymentHandler) OpenCryptoCheckout(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body cryptoCheckoutBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	listingID, err := parseUUID(body.ListingID)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid listing id")
		return
	}

	resp, err := h.reconciler.OpenCryptoCheckout(r.Context(), &payment.CryptoCheckoutRequest{
		ListingID: listingID,
		BuyerID:   buyerID,
		Quantity:  body.Quantity,
		Currency:  body.Currency,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, resp)
}

type cryptoWebhookBody struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
	Event     string `json:"event"`
}

// CryptoWebhook handles the processor's payment callback. The invoice state
// is verified against the processor, so a forged body cannot mark an order
// paid.
func (h *PaymentHandler) CryptoWebhook(w http.ResponseWriter, r *http.Request) {
	var body cryptoWebhookBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	o, err := h.reconciler.ConfirmCrypto(r.Context(), body.InvoiceID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"order_id": o.ID,
		"status":   o.Status,
	})
}
