// Package handler provides HTTP handlers for the marketplace services.
package handler

import (
	"encoding/json"
	goerrors "errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

func respondJSON(w http.ResponseWriter, log logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("json encode failed", map[string]interface{}{"error": err.Error()})
		_, _ = w.Write([]byte(`{"error":"response encoding failed"}`))
	}
}

func respondError(w http.ResponseWriter, log logger.Logger, status int, message string) {
	respondJSON(w, log, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, log logger.Logger, errs map[string]string) {
	respondJSON(w, log, http.StatusBadRequest, map[string]interface{}{
		"error":             "Validation failed",
		"validation_errors": errs,
	})
}

type errorMapping struct {
	sentinel error
	status   int
	message  string // empty means use the sentinel's text
}

// errorMap translates domain sentinels onto HTTP statuses so every handler
// speaks the same error dialect. Payment entries carry the user-facing
// message category for their provider failure.
var errorMap = []errorMapping{
	{errors.ErrOrderNotFound, http.StatusNotFound, ""},
	{errors.ErrListingNotFound, http.StatusNotFound, ""},
	{errors.ErrCodeNotFound, http.StatusNotFound, ""},
	{errors.ErrFlagNotFound, http.StatusNotFound, ""},
	{errors.ErrBlacklistNotFound, http.StatusNotFound, ""},
	{errors.ErrUserNotFound, http.StatusNotFound, ""},
	{errors.ErrScanRunNotFound, http.StatusNotFound, ""},

	{errors.ErrIllegalTransition, http.StatusConflict, ""},
	{errors.ErrOrderNotCancellable, http.StatusConflict, ""},
	{errors.ErrOrderNotPaid, http.StatusConflict, ""},
	{errors.ErrOrderNotDisputed, http.StatusConflict, ""},
	{errors.ErrDisputeAlreadyResolved, http.StatusConflict, ""},
	{errors.ErrDisputeAlreadyOpen, http.StatusConflict, ""},
	{errors.ErrFlagNotActive, http.StatusConflict, ""},
	{errors.ErrFlagAlreadyActive, http.StatusConflict, ""},
	{errors.ErrDeliveryRecorded, http.StatusConflict, ""},
	{errors.ErrNotAutomatic, http.StatusConflict, ""},
	{errors.ErrScanInProgress, http.StatusConflict, ""},
	{errors.ErrBlacklistDuplicate, http.StatusConflict, ""},
	{errors.ErrOutOfStock, http.StatusConflict, "listing is out of stock"},

	{errors.ErrSelfPurchase, http.StatusBadRequest, ""},
	{errors.ErrInvalidBlacklistType, http.StatusBadRequest, ""},

	{errors.ErrSuperAdminRequired, http.StatusForbidden, ""},

	{errors.ErrPaymentDeclined, http.StatusPaymentRequired, "Your payment was declined. Please try another payment method."},
	{errors.ErrPayerActionRequired, http.StatusPaymentRequired, "Your payment needs additional confirmation. Please return to checkout."},
	{errors.ErrPaymentPermission, http.StatusBadGateway, "The payment could not be processed. Please contact support."},
	{errors.ErrInvalidSession, http.StatusBadRequest, "Your checkout session is invalid or expired. Please start again."},
	{errors.ErrPaymentTransport, http.StatusBadGateway, "The payment provider is unreachable. Please retry shortly."},
	{errors.ErrCaptureTimeout, http.StatusAccepted, "Your payment is taking longer than expected. Do not retry; we will update your order."},
	{errors.ErrCaptureNotCompleted, http.StatusPaymentRequired, "The payment did not complete. Please retry."},
	{errors.ErrInvoiceCreationFailed, http.StatusBadGateway, "Could not create a crypto invoice. Please retry."},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMap {
		if goerrors.Is(err, m.sentinel) {
			message := m.message
			if message == "" {
				message = m.sentinel.Error()
			}
			return m.status, message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

func respondServiceError(w http.ResponseWriter, log logger.Logger, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", map[string]interface{}{"error": err.Error()})
	}
	respondError(w, log, status, message)
}
