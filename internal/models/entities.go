package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentExpired  PaymentStatus = "EXPIRED"
	PaymentCanceled PaymentStatus = "CANCELED"
)

// Terminal reports whether no further transition is allowed from s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentFailed, PaymentExpired, PaymentCanceled:
		return true
	}
	return false
}

// ReleasesCapacity reports whether reaching s hands the reserved quantity
// back to the tier. PAID keeps the reservation, everything else terminal
// returns it.
func (s PaymentStatus) ReleasesCapacity() bool {
	return s.Terminal() && s != PaymentPaid
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s.Terminal()
}

// TicketTier represents a priced, capacity-bounded class of tickets for one
// event. committed_sold only moves through the inventory service's atomic
// reserve/release operations.
type TicketTier struct {
	ID            string          `json:"id" db:"id"`
	EventID       int64           `json:"event_id" db:"event_id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Capacity      int             `json:"capacity" db:"capacity"`
	CommittedSold int             `json:"committed_sold" db:"committed_sold"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Available returns the quantity still purchasable.
func (t *TicketTier) Available() int {
	return t.Capacity - t.CommittedSold
}

// Payment represents one payment attempt against a tier. Amount and quantity
// are fixed at creation; status moves monotonically from PENDING to exactly
// one terminal state. Rows are never deleted.
type Payment struct {
	ID          string          `json:"id" db:"id"`
	ExternalRef string          `json:"external_ref" db:"external_ref"`
	TierID      string          `json:"tier_id" db:"tier_id"`
	BuyerID     string          `json:"buyer_id" db:"buyer_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Status      PaymentStatus   `json:"status" db:"status"`
	CheckoutURL string          `json:"checkout_url" db:"checkout_url"`
	// CapacityReleased guards against double-decrementing the tier counter
	// when the same terminal notification is delivered more than once.
	CapacityReleased bool       `json:"-" db:"capacity_released"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty" db:"canceled_at"`
}
