package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/middleware"
	"github.com/darkosells/gaming-marketplace-sub001/internal/moderation"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/validator"
)

// ModerationHandler manages the admin review endpoints.
type ModerationHandler struct {
	service   *moderation.Service
	validator *validator.Validator
	logger    logger.Logger
}

// NewModerationHandler creates a ModerationHandler.
func NewModerationHandler(service *moderation.Service, val *validator.Validator, log logger.Logger) *ModerationHandler {
	return &ModerationHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// ListFlags pages the flag review queue. Defaults to active flags.
func (h *ModerationHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	status := domain.FlagStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.FlagStatusActive
	}

	limit, offset := pagination(r)
	flags, total, err := h.service.ListFlags(r.Context(), actorID, status, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"flags": flags,
		"total": total,
	})
}

// UserFlags returns one user's full flag history.
func (h *ModerationHandler) UserFlags(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid user id")
		return
	}

	limit, offset := pagination(r)
	flags, err := h.service.UserFlags(r.Context(), actorID, userID, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"flags": flags})
}

type reviewFlagBody struct {
	Status string `json:"status" validate:"required,oneof=reviewed resolved false_positive"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// ReviewFlag moves an active flag into a terminal review state.
func (h *ModerationHandler) ReviewFlag(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	flagID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid flag id")
		return
	}

	var body reviewFlagBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	flag, err := h.service.ReviewFlag(r.Context(), &moderation.ReviewFlagRequest{
		FlagID:  flagID,
		ActorID: actorID,
		Status:  domain.FlagStatus(body.Status),
		Notes:   body.Notes,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, flag)
}

type manualFlagBody struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	Type        string `json:"type" validate:"required"`
	Severity    string `json:"severity" validate:"required,oneof=low medium high critical"`
	Description string `json:"description" validate:"required,min=10,max=2000"`
}

// CreateManualFlag raises a flag by hand.
func (h *ModerationHandler) CreateManualFlag(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body manualFlagBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	userID, err := parseUUID(body.UserID)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid user id")
		return
	}

	flag, err := h.service.CreateManualFlag(r.Context(), &moderation.ManualFlagRequest{
		ActorID:     actorID,
		UserID:      userID,
		Type:        domain.FraudFlagType(body.Type),
		Severity:    domain.FlagSeverity(body.Severity),
		Description: body.Description,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, flag)
}

type resolveDisputeBody struct {
	Side  string `json:"side" validate:"required,oneof=buyer seller"`
	Notes string `json:"notes" validate:"max=2000"`
}

// ResolveDispute closes a disputed order for one side.
func (h *ModerationHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body resolveDisputeBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	o, err := h.service.ResolveDispute(r.Context(), &moderation.ResolveDisputeRequest{
		OrderID: orderID,
		ActorID: actorID,
		Side:    moderation.ResolutionSide(body.Side),
		Notes:   body.Notes,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, o)
}
