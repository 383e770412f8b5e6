package yookassa

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentSendsAuthAndIdempotenceKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "key-1", r.Header.Get("Idempotence-Key"))
		assert.Equal(t, "/payments", r.URL.Path)

		var req CreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "299.00", req.Amount.Value)
		assert.Equal(t, "redirect", req.Confirmation.Type)
		assert.True(t, req.Capture)

		_, _ = w.Write([]byte(`{"id":"pay-1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://pay.test/1"}}`))
	}))
	defer srv.Close()

	c, err := NewClient("shop", "secret", srv.URL)
	require.NoError(t, err)
	p, err := c.CreatePayment(t.Context(), CreateRequest{
		Amount:       Amount{Value: "299.00", Currency: "RUB"},
		Confirmation: Confirmation{Type: "redirect", ReturnURL: "https://site/ok"},
		Capture:      true,
	}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.ID)
	assert.Equal(t, "https://pay.test/1", p.Confirmation.ConfirmationURL)
}

func TestErrorStatusCarriesDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","code":"invalid_request","description":"amount is too small"}`))
	}))
	defer srv.Close()

	c, err := NewClient("shop", "secret", srv.URL)
	require.NoError(t, err)
	_, err = c.GetPayment(t.Context(), "pay-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount is too small")
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("", "secret", "")
	assert.Error(t, err)
}
