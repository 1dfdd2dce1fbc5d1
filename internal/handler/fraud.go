package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/fraud"
	"github.com/darkosells/gaming-marketplace-sub001/internal/middleware"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// ScanRunReader pages the scan audit trail.
type ScanRunReader interface {
	FindRecent(ctx context.Context, limit int) ([]*domain.ScanRun, error)
}

// FraudHandler manages the scanner's admin endpoints.
type FraudHandler struct {
	scanner *fraud.Scanner
	runs    ScanRunReader
	logger  logger.Logger
}

// NewFraudHandler creates a FraudHandler.
func NewFraudHandler(scanner *fraud.Scanner, runs ScanRunReader, log logger.Logger) *FraudHandler {
	return &FraudHandler{
		scanner: scanner,
		runs:    runs,
		logger:  log,
	}
}

// TriggerScan starts a full-population fraud scan and blocks until it
// finishes, returning the aggregate result.
func (h *FraudHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	result, err := h.scanner.Scan(r.Context(), actorID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// ListScanRuns returns the most recent scan runs.
func (h *FraudHandler) ListScanRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := h.runs.FindRecent(r.Context(), limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"runs": runs})
}
