package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	errs "tixgate/internal/errors"
)

// Provider-side payment statuses.
const (
	ProviderStatusNew       = "NEW"
	ProviderStatusConfirmed = "CONFIRMED"
	ProviderStatusRejected  = "REJECTED"
	ProviderStatusExpired   = "EXPIRED"
	ProviderStatusCancelled = "CANCELLED"
)

type ProviderClient struct {
	baseURL      string
	merchantSlug string
	password     string
	httpClient   *http.Client
}

type ProviderConfig struct {
	BaseURL      string
	MerchantSlug string
	Password     string
	Timeout      time.Duration
}

type PaymentInitRequest struct {
	MerchantSlug    string            `json:"merchantSlug"`
	Token           string            `json:"token"`
	Amount          int64             `json:"amount"`
	OrderID         string            `json:"orderId"`
	Currency        string            `json:"currency"`
	Description     string            `json:"description,omitempty"`
	SuccessURL      string            `json:"successURL,omitempty"`
	FailURL         string            `json:"failURL,omitempty"`
	NotificationURL string            `json:"notificationURL,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type PaymentInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	PaymentURL string `json:"paymentURL"`
	ExpiresAt  string `json:"expiresAt"`
	CreatedAt  string `json:"createdAt"`
}

type PaymentCheckRequest struct {
	MerchantSlug string `json:"merchantSlug"`
	Token        string `json:"token"`
	PaymentID    string `json:"paymentId,omitempty"`
	OrderID      string `json:"orderId,omitempty"`
}

type PaymentCheckResponse struct {
	Success  bool             `json:"success"`
	Payments []PaymentDetails `json:"payments"`
}

type PaymentDetails struct {
	PaymentID   string            `json:"paymentId"`
	OrderID     string            `json:"orderId"`
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
	ExpiresAt   string            `json:"expiresAt"`
	PaidAt      string            `json:"paidAt,omitempty"`
	CanceledAt  string            `json:"canceledAt,omitempty"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func NewProviderClient(cfg ProviderConfig) *ProviderClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &ProviderClient{
		baseURL:      cfg.BaseURL,
		merchantSlug: cfg.MerchantSlug,
		password:     cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// generateToken signs a request: SHA-256 over the alphabetically sorted
// parameter values plus merchant slug and password.
func (pc *ProviderClient) generateToken(params map[string]string) string {
	params["MerchantSlug"] = pc.merchantSlug
	params["Password"] = pc.password

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tokenString string
	for _, key := range keys {
		tokenString += params[key]
	}

	hash := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(hash[:])
}

func (pc *ProviderClient) post(ctx context.Context, path string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		// Transport failure or timeout: outcome on the provider side is
		// unknown, callers must not assume the payment was rejected.
		return fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", errs.ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreatePayment registers a payment with the gateway and returns the
// checkout URL the buyer is redirected to. The metadata round-trips through
// the gateway so the webhook path can re-derive purchase context.
func (pc *ProviderClient) CreatePayment(ctx context.Context, amount int64, orderID, currency, description, successURL, failURL, notificationURL string, metadata map[string]string) (*PaymentInitResponse, error) {
	params := map[string]string{
		"Amount":   strconv.FormatInt(amount, 10),
		"Currency": currency,
		"OrderId":  orderID,
	}
	token := pc.generateToken(params)

	req := PaymentInitRequest{
		MerchantSlug:    pc.merchantSlug,
		Token:           token,
		Amount:          amount,
		OrderID:         orderID,
		Currency:        currency,
		Description:     description,
		SuccessURL:      successURL,
		FailURL:         failURL,
		NotificationURL: notificationURL,
		Metadata:        metadata,
	}

	var result PaymentInitResponse
	if err := pc.post(ctx, "/api/v1/PaymentInit/init", req, &result); err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("payment init rejected by provider")
	}

	return &result, nil
}

// GetPayment fetches the authoritative current state of a payment. This is
// the only trusted status source for reconciliation.
func (pc *ProviderClient) GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	params := map[string]string{
		"PaymentId": paymentID,
	}
	token := pc.generateToken(params)

	req := PaymentCheckRequest{
		MerchantSlug: pc.merchantSlug,
		Token:        token,
		PaymentID:    paymentID,
	}

	var result PaymentCheckResponse
	if err := pc.post(ctx, "/api/v1/PaymentCheck/check", req, &result); err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}

	if !result.Success || len(result.Payments) == 0 {
		return nil, fmt.Errorf("%w: provider has no payment %s", errs.ErrNotFound, paymentID)
	}

	return &result.Payments[0], nil
}

// FindByOrderID looks a payment up by the order id this system generated.
// Used to resolve a create call whose outcome is unknown: a timed-out init
// may or may not have registered a payment on the provider side.
func (pc *ProviderClient) FindByOrderID(ctx context.Context, orderID string) (*PaymentDetails, error) {
	params := map[string]string{
		"OrderId": orderID,
	}
	token := pc.generateToken(params)

	req := PaymentCheckRequest{
		MerchantSlug: pc.merchantSlug,
		Token:        token,
		OrderID:      orderID,
	}

	var result PaymentCheckResponse
	if err := pc.post(ctx, "/api/v1/PaymentCheck/check", req, &result); err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}

	if !result.Success || len(result.Payments) == 0 {
		return nil, fmt.Errorf("%w: provider has no payment for order %s", errs.ErrNotFound, orderID)
	}

	return &result.Payments[0], nil
}

func (pc *ProviderClient) CancelPayment(ctx context.Context, paymentID, reason string) error {
	params := map[string]string{
		"PaymentId": paymentID,
	}
	token := pc.generateToken(params)

	reqData := map[string]interface{}{
		"merchantSlug": pc.merchantSlug,
		"token":        token,
		"paymentId":    paymentID,
		"reason":       reason,
	}

	if err := pc.post(ctx, "/api/v1/PaymentCancel/cancel", reqData, nil); err != nil {
		return fmt.Errorf("failed to cancel payment: %w", err)
	}
	return nil
}
