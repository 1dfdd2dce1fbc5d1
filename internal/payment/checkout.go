// Package payment talks to the card and crypto payment rails and reconciles
// their outcomes onto orders.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

// CaptureResult is the provider's view of a finished capture attempt.
type CaptureResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PayerEmail string `json:"payer_email,omitempty"`
	Raw        json.RawMessage
}

// CheckoutProvider is the card rail as consumed by the reconciler.
type CheckoutProvider interface {
	Capture(ctx context.Context, sessionID string) (*CaptureResult, error)
}

// CheckoutClient captures card checkout sessions over the provider's REST
// API.
type CheckoutClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCheckoutClient(baseURL, apiKey string) *CheckoutClient {
	return &CheckoutClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type captureErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

// Capture finalizes a checkout session. Provider failures are folded into
// the error taxonomy so handlers can pick a user-facing message without
// parsing provider payloads.
func (c *CheckoutClient) Capture(ctx context.Context, sessionID string) (*CaptureResult, error) {
	url := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", c.baseURL, sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create capture request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrCaptureTimeout
		}
		return nil, errors.ErrPaymentTransport
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ErrPaymentTransport
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var result CaptureResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode capture response")
		}
		result.Raw = body
		return &result, nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.ErrPaymentPermission

	case http.StatusNotFound:
		return nil, errors.ErrInvalidSession

	case http.StatusUnprocessableEntity:
		var errBody captureErrorBody
		_ = json.Unmarshal(body, &errBody)
		for _, d := range errBody.Details {
			switch d.Issue {
			case "INSTRUMENT_DECLINED", "TRANSACTION_REFUSED":
				return nil, errors.ErrPaymentDeclined
			case "PAYER_ACTION_REQUIRED":
				return nil, errors.ErrPayerActionRequired
			case "ORDER_ALREADY_CAPTURED":
				// Treat a replayed capture as the completed original.
				return &CaptureResult{ID: sessionID, Status: StatusCompleted, Raw: body}, nil
			}
		}
		return nil, errors.ErrPaymentDeclined

	case http.StatusBadRequest:
		return nil, errors.ErrInvalidSession

	default:
		return nil, errors.Wrap(fmt.Errorf("provider returned status %d", resp.StatusCode), "capture failed")
	}
}

// StatusCompleted is the only provider status that counts as money in the
// door. Everything else (PENDING, APPROVED, DECLINED, VOIDED) is not a
// payment.
const StatusCompleted = "COMPLETED"
