package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestCaptureCompleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/checkout/orders/sess-1/capture", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"sess-1","status":"COMPLETED","payer_email":"buyer@example.com"}`))
	}))
	defer server.Close()

	client := NewCheckoutClient(server.URL, "test-key")
	result, err := client.Capture(context.Background(), "sess-1")

	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "buyer@example.com", result.PayerEmail)
}

func TestCaptureDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`))
	}))
	defer server.Close()

	client := NewCheckoutClient(server.URL, "test-key")
	_, err := client.Capture(context.Background(), "sess-2")

	assert.ErrorIs(t, err, errors.ErrPaymentDeclined)
}

func TestCapturePayerActionRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"PAYER_ACTION_REQUIRED"}]}`))
	}))
	defer server.Close()

	client := NewCheckoutClient(server.URL, "test-key")
	_, err := client.Capture(context.Background(), "sess-3")

	assert.ErrorIs(t, err, errors.ErrPayerActionRequired)
}

func TestCaptureAlreadyCapturedTreatedAsCompleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`))
	}))
	defer server.Close()

	client := NewCheckoutClient(server.URL, "test-key")
	result, err := client.Capture(context.Background(), "sess-4")

	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestCapturePermissionDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewCheckoutClient(server.URL, "test-key")
	_, err := client.Capture(context.Background(), "sess-5")

	assert.ErrorIs(t, err, errors.ErrPaymentPermission)
}

func TestCaptureUnknownSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewCheckoutClient(server.URL, "test-key")
	_, err := client.Capture(context.Background(), "sess-6")

	assert.ErrorIs(t, err, errors.ErrInvalidSession)
}

func TestCaptureTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewCheckoutClient(server.URL, "test-key")
	_, err := client.Capture(context.Background(), "sess-7")

	assert.ErrorIs(t, err, errors.ErrPaymentTransport)
}
