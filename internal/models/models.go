package models

import "github.com/shopspring/decimal"

// CreateTierRequest - request body for creating a ticket tier
type CreateTierRequest struct {
	EventID  int64  `json:"event_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Capacity int    `json:"capacity" binding:"required,gt=0"`
}

// CreateTierResponse - response for tier creation
type CreateTierResponse struct {
	ID string `json:"id"`
}

// TierAvailabilityResponse - availability view of a tier
type TierAvailabilityResponse struct {
	ID            string          `json:"id"`
	EventID       int64           `json:"event_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Capacity      int             `json:"capacity"`
	CommittedSold int             `json:"committed_sold"`
	Available     int             `json:"available"`
}

// CreatePaymentRequest - request body for a purchase
type CreatePaymentRequest struct {
	TierID      string            `json:"tier_id" binding:"required"`
	Quantity    int               `json:"quantity" binding:"required,gt=0"`
	RedirectURL string            `json:"redirect_url"`
	Metadata    map[string]string `json:"metadata"`
}

// CreatePaymentResponse - response for a purchase
type CreatePaymentResponse struct {
	PaymentID   string        `json:"payment_id"`
	CheckoutURL string        `json:"checkout_url"`
	Status      PaymentStatus `json:"status"`
}

// CancelPaymentRequest - request body for canceling a pending payment
type CancelPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// PaymentNotificationPayload - webhook body from the payment gateway. Only
// the payment id is ever used; status and data are untrusted and the real
// state is re-fetched from the gateway.
type PaymentNotificationPayload struct {
	PaymentID string                 `json:"paymentId"`
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}
