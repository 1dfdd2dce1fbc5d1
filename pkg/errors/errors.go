// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Order errors
	ErrOrderNotFound          = errors.New("order not found")
	ErrListingNotFound        = errors.New("listing not found")
	ErrIllegalTransition      = errors.New("illegal order status transition")
	ErrDuplicatePayment       = errors.New("payment reference already recorded")
	ErrDisputeAlreadyResolved = errors.New("dispute already resolved")
	ErrOrderNotDisputed       = errors.New("order is not in dispute")
	ErrOrderNotCancellable    = errors.New("only pending orders can be cancelled")
	ErrDisputeAlreadyOpen     = errors.New("a dispute is already open on this order")
	ErrSelfPurchase           = errors.New("buyer cannot purchase their own listing")

	// Delivery code errors
	ErrOutOfStock       = errors.New("no unused delivery codes remain for listing")
	ErrCodeNotFound     = errors.New("delivery code not found")
	ErrCodeAlreadyUsed  = errors.New("delivery code already claimed")
	ErrNotAutomatic     = errors.New("listing is not automatic delivery")
	ErrOrderNotPaid     = errors.New("order is not in paid status")
	ErrDeliveryRecorded = errors.New("order already has a delivered code")

	// Fraud / moderation errors
	ErrFlagNotFound      = errors.New("fraud flag not found")
	ErrFlagNotActive     = errors.New("fraud flag is not active")
	ErrFlagAlreadyActive = errors.New("active fraud flag already exists for user and type")
	ErrScanRunNotFound   = errors.New("scan run not found")
	ErrScanInProgress    = errors.New("a fraud scan is already running")
	ErrSuperAdminRequired = errors.New("super admin privilege required")

	// Blacklist errors
	ErrBlacklistNotFound  = errors.New("blacklist entry not found")
	ErrBlacklistDuplicate = errors.New("blacklist entry already exists")
	ErrInvalidBlacklistType = errors.New("invalid blacklist entry type")

	// Payment provider errors. Each maps to a distinct user-facing
	// message category; all are recoverable by client retry.
	ErrPaymentDeclined       = errors.New("payment was declined by the provider")
	ErrPayerActionRequired   = errors.New("additional payer action is required")
	ErrPaymentPermission     = errors.New("payment provider rejected the caller's permissions")
	ErrInvalidSession        = errors.New("checkout session is malformed or expired")
	ErrPaymentTransport      = errors.New("payment provider is unreachable")
	ErrCaptureTimeout        = errors.New("payment capture is taking longer than expected")
	ErrCaptureNotCompleted   = errors.New("payment capture did not complete")
	ErrInvoiceCreationFailed = errors.New("crypto invoice creation failed")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
