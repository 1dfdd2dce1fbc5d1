package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/middleware"
	"github.com/darkosells/gaming-marketplace-sub001/internal/order"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/validator"
)

// OrderHandler manages order lifecycle endpoints.
type OrderHandler struct {
	service   *order.Service
	validator *validator.Validator
	logger    logger.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(service *order.Service, val *validator.Validator, log logger.Logger) *OrderHandler {
	return &OrderHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// Get returns one order, visible to its parties and admins.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid order id")
		return
	}

	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}
	role, _ := middleware.RoleFromContext(r.Context())
	isAdmin := role == domain.UserRoleAdmin || role == domain.UserRoleSuperAdmin

	o, err := h.service.Get(r.Context(), orderID, actorID, isAdmin)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, o)
}

// ListPurchases returns the caller's orders as a buyer.
func (h *OrderHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, offset := pagination(r)
	orders, err := h.service.ListByBuyer(r.Context(), actorID, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"orders": orders})
}

// ListSales returns the caller's orders as a seller.
func (h *OrderHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, offset := pagination(r)
	orders, err := h.service.ListBySeller(r.Context(), actorID, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"orders": orders})
}

// Cancel abandons a pending order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid order id")
		return
	}

	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	o, err := h.service.Cancel(r.Context(), orderID, actorID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, o)
}

// MarkDelivered records a manual fulfillment by the seller.
func (h *OrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid order id")
		return
	}

	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	o, err := h.service.MarkDelivered(r.Context(), orderID, actorID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, o)
}

// Complete lets the buyer confirm receipt.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid order id")
		return
	}

	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	o, err := h.service.Complete(r.Context(), orderID, actorID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, o)
}

type openDisputeRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=2000"`
}

// OpenDispute freezes a paid or delivered order pending moderation.
func (h *OrderHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid order id")
		return
	}

	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req openDisputeRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&req); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	o, err := h.service.OpenDispute(r.Context(), orderID, actorID, req.Reason)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, o)
}

// decodeBody decodes a JSON request body, responding on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, log logger.Logger, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			respondError(w, log, http.StatusBadRequest, "Request body is required")
			return false
		}
		respondError(w, log, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
