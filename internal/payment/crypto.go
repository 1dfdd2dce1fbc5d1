package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

// Invoice is a crypto payment request created with the processor. The buyer
// pays the address; the processor calls back when the chain confirms.
type Invoice struct {
	ID        string          `json:"invoice_id"`
	Address   string          `json:"address"`
	PayURL    string          `json:"pay_url"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CryptoProvider is the crypto rail as consumed by the reconciler.
type CryptoProvider interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, reference string) (*Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
}

// CryptoClient creates and polls invoices with the crypto processor.
type CryptoClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCryptoClient(baseURL, apiKey string) *CryptoClient {
	return &CryptoClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *CryptoClient) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, reference string) (*Invoice, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"amount":    amount.String(),
		"currency":  currency,
		"reference": reference,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode invoice request")
	}

	url := fmt.Sprintf("%s/api/v1/invoices", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create invoice request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.ErrPaymentTransport
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ErrPaymentTransport
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.ErrInvoiceCreationFailed
	}

	var inv Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, errors.Wrap(err, "failed to decode invoice response")
	}
	return &inv, nil
}

func (c *CryptoClient) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	url := fmt.Sprintf("%s/api/v1/invoices/%s", c.baseURL, invoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create invoice lookup")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.ErrPaymentTransport
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.ErrInvalidSession
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ErrPaymentTransport
	}

	var inv Invoice
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return nil, errors.Wrap(err, "failed to decode invoice")
	}
	return &inv, nil
}
