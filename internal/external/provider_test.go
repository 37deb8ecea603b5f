package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	errs "tixgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *ProviderClient {
	return NewProviderClient(ProviderConfig{
		BaseURL:      baseURL,
		MerchantSlug: "tixgate-test",
		Password:     "secret",
	})
}

func TestCreatePaymentSendsSignedRequest(t *testing.T) {
	var captured PaymentInitRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/PaymentInit/init", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(PaymentInitResponse{
			Success:    true,
			PaymentID:  "ext-1",
			OrderID:    captured.OrderID,
			Status:     ProviderStatusNew,
			Amount:     captured.Amount,
			Currency:   captured.Currency,
			PaymentURL: "https://gateway.test/checkout/ext-1",
			ExpiresAt:  "2026-01-02T15:04:05Z",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.CreatePayment(context.Background(), 20050, "order-1", "KZT",
		"2 x GA", "http://app/success", "http://app/fail", "http://app/notify",
		map[string]string{"tier_id": "tier-1"})
	require.NoError(t, err)

	assert.Equal(t, "ext-1", resp.PaymentID)
	assert.Equal(t, "https://gateway.test/checkout/ext-1", resp.PaymentURL)
	assert.Equal(t, "tixgate-test", captured.MerchantSlug)
	assert.Equal(t, map[string]string{"tier_id": "tier-1"}, captured.Metadata)

	// Token is SHA-256 over the alphabetically ordered parameter values.
	sum := sha256.Sum256([]byte("20050" + "KZT" + "tixgate-test" + "order-1" + "secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), captured.Token)
}

func TestCreatePaymentRejectedByProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PaymentInitResponse{Success: false})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreatePayment(context.Background(), 100, "order-1", "KZT",
		"", "", "", "", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrProviderUnavailable)
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPayment(context.Background(), "ext-1")
	assert.ErrorIs(t, err, errs.ErrProviderUnavailable)
}

func TestConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening

	client := newTestClient(server.URL)
	_, err := client.GetPayment(context.Background(), "ext-1")
	assert.ErrorIs(t, err, errs.ErrProviderUnavailable)
}

func TestGetPaymentUnknownToProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PaymentCheckResponse{Success: true, Payments: nil})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPayment(context.Background(), "ext-404")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGetPaymentReturnsAuthoritativeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/PaymentCheck/check", r.URL.Path)
		json.NewEncoder(w).Encode(PaymentCheckResponse{
			Success: true,
			Payments: []PaymentDetails{{
				PaymentID: "ext-1",
				Status:    ProviderStatusConfirmed,
				Amount:    20050,
			}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	details, err := client.GetPayment(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatusConfirmed, details.Status)
	assert.Equal(t, int64(20050), details.Amount)
}

func TestFindByOrderID(t *testing.T) {
	var captured PaymentCheckRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(PaymentCheckResponse{
			Success:  true,
			Payments: []PaymentDetails{{PaymentID: "ext-1", OrderID: captured.OrderID, Status: ProviderStatusNew}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	details, err := client.FindByOrderID(context.Background(), "order-7")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", details.PaymentID)
	assert.Equal(t, "order-7", captured.OrderID)
	assert.Empty(t, captured.PaymentID)
}

func TestCancelPayment(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/PaymentCancel/cancel", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.CancelPayment(context.Background(), "ext-1", "canceled by buyer"))
	assert.Equal(t, "ext-1", body["paymentId"])
	assert.Equal(t, "canceled by buyer", body["reason"])
}
