package models

import "time"

// NATS Event Types
const (
	EventPaymentCreated  = "payment.created"
	EventPaymentSettled  = "payment.settled"
	EventPaymentFailed   = "payment.failed"
	EventPaymentExpired  = "payment.expired"
	EventPaymentCanceled = "payment.canceled"
)

// PaymentCreatedEvent is published after a PENDING payment row is durable.
type PaymentCreatedEvent struct {
	PaymentID   string    `json:"payment_id"`
	ExternalRef string    `json:"external_ref"`
	TierID      string    `json:"tier_id"`
	BuyerID     string    `json:"buyer_id"`
	Quantity    int       `json:"quantity"`
	Amount      string    `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// PaymentSettledEvent is published after a payment reaches PAID.
type PaymentSettledEvent struct {
	PaymentID   string    `json:"payment_id"`
	ExternalRef string    `json:"external_ref"`
	TierID      string    `json:"tier_id"`
	BuyerID     string    `json:"buyer_id"`
	Amount      string    `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// PaymentClosedEvent is published for the non-PAID terminal outcomes
// (FAILED, EXPIRED, CANCELED) after the reserved capacity is back on the
// tier.
type PaymentClosedEvent struct {
	PaymentID        string        `json:"payment_id"`
	ExternalRef      string        `json:"external_ref"`
	TierID           string        `json:"tier_id"`
	Status           PaymentStatus `json:"status"`
	QuantityReleased int           `json:"quantity_released"`
	Timestamp        time.Time     `json:"timestamp"`
}
