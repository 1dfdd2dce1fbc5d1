package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/darkosells/gaming-marketplace-sub001/internal/blacklist"
	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/middleware"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/validator"
)

// BlacklistHandler manages the exclusion list endpoints.
type BlacklistHandler struct {
	service   *blacklist.Service
	validator *validator.Validator
	logger    logger.Logger
}

// NewBlacklistHandler creates a BlacklistHandler.
func NewBlacklistHandler(service *blacklist.Service, val *validator.Validator, log logger.Logger) *BlacklistHandler {
	return &BlacklistHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

type addBlacklistBody struct {
	Type   string `json:"type" validate:"required,oneof=ip email_domain device_fingerprint"`
	Value  string `json:"value" validate:"required,max=512"`
	Reason string `json:"reason" validate:"max=2000"`
}

// Add inserts a normalized entry.
func (h *BlacklistHandler) Add(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body addBlacklistBody
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if valErrs := h.validator.ValidateStructured(&body); valErrs != nil {
		respondValidationErrors(w, h.logger, valErrs)
		return
	}

	entry, err := h.service.Add(r.Context(), &blacklist.AddRequest{
		ActorID: actorID,
		Type:    domain.BlacklistType(body.Type),
		Value:   body.Value,
		Reason:  body.Reason,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, entry)
}

// Remove deletes an entry by id.
func (h *BlacklistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	entryID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid entry id")
		return
	}

	if err := h.service.Remove(r.Context(), actorID, entryID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]string{"status": "removed"})
}

// List pages entries, optionally filtered by type.
func (h *BlacklistHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entryType := domain.BlacklistType(r.URL.Query().Get("type"))

	entries, err := h.service.List(r.Context(), entryType, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"entries": entries})
}
