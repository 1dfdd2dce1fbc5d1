package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/darkosells/gaming-marketplace-sub001/internal/delivery"
	"github.com/darkosells/gaming-marketplace-sub001/internal/middleware"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/validator"
)

// DeliveryHandler manages code provisioning and retrieval endpoints.
type DeliveryHandler struct {
	claimer   *delivery.Claimer
	validator *validator.Validator
	logger    logger.Logger
}

// NewDeliveryHandler creates a DeliveryHandler.
func NewDeliveryHandler(claimer *delivery.Claimer, val *validator.Validator, log logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		claimer:   claimer,
		validator: val,
		logger:    log,
	}
}

type uploadCodesBody struct {
	Codes []string `json:"codes" validate:"required,min=1,max=500,dive,required,max=512"`
}

// UploadCodes provisions a batch of codes for the caller's listing.
func (h *DeliveryHandler) UploadCodes(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid listing id")
		return
	}

	sellerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body uploadCodesBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	count, err := h.claimer.UploadCodes(r.Context(), &delivery.UploadCodesRequest{
		ListingID: listingID,
		SellerID:  sellerID,
		Codes:     body.Codes,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, map[string]interface{}{"uploaded": count})
}

// Stock reports remaining unused codes for a listing.
func (h *DeliveryHandler) Stock(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid listing id")
		return
	}

	count, err := h.claimer.Stock(r.Context(), listingID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"listing_id": listingID,
		"stock":      count,
	})
}

// CodeForOrder returns the delivered code to the buyer.
func (h *DeliveryHandler) CodeForOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid order id")
		return
	}

	buyerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	code, err := h.claimer.CodeForOrder(r.Context(), orderID, buyerID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, code)
}

// ListCodes returns the code audit trail to the listing's seller.
func (h *DeliveryHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid listing id")
		return
	}

	sellerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, offset := pagination(r)
	codes, err := h.claimer.ListCodes(r.Context(), listingID, sellerID, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"codes": codes})
}
