// Package yookassa is a minimal client for the YooKassa payments API.
package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// Client authenticates with the shop ID and secret key.
type Client struct {
	shopID     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(shopID, secretKey, baseURL string) (*Client, error) {
	if strings.TrimSpace(shopID) == "" || strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("YOOKASSA_SHOP_ID and YOOKASSA_SECRET_KEY are required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// CreateRequest is the body of POST /payments.
type CreateRequest struct {
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Payment is the subset of the payment object this service reads.
type Payment struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Paid         bool          `json:"paid"`
	Amount       Amount        `json:"amount"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreatePayment creates a payment. The idempotence key makes retries safe.
func (c *Client) CreatePayment(ctx context.Context, req CreateRequest, idempotenceKey string) (Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Payment{}, err
	}
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/payments", body, idempotenceKey, &out); err != nil {
		return Payment{}, err
	}
	return out, nil
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, "", &out); err != nil {
		return Payment{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, idempotenceKey string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("yookassa %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("yookassa read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Description != "" {
			return fmt.Errorf("yookassa status %d: %s (%s)", resp.StatusCode, apiErr.Description, apiErr.Code)
		}
		return fmt.Errorf("yookassa status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("yookassa response parse: %w", err)
	}
	return nil
}
