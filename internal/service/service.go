package service

import (
	"context"
	"time"

	"tixgate/internal/external"
	"tixgate/internal/models"
)

// TierStore is the durable ticket-tier record. ReserveCapacity and
// ReleaseCapacity are the only operations that may move committed_sold.
type TierStore interface {
	Create(ctx context.Context, tier *models.TicketTier) error
	GetByID(ctx context.Context, id string) (*models.TicketTier, error)
	GetByEventID(ctx context.Context, eventID int64) ([]models.TicketTier, error)
	ReserveCapacity(ctx context.Context, tierID string, quantity int) error
	ReleaseCapacity(ctx context.Context, tierID string, quantity int) error
}

// PaymentStore is the durable payment-attempt record. Settle applies a
// terminal transition and its inventory side effect atomically and reports
// whether this call was the one that applied it.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*models.Payment, error)
	ListPendingExpired(ctx context.Context, before time.Time, limit int) ([]models.Payment, error)
	Settle(ctx context.Context, id string, status models.PaymentStatus, at time.Time) (bool, error)
}

// ProviderGateway is the external payment provider boundary.
type ProviderGateway interface {
	CreatePayment(ctx context.Context, amount int64, orderID, currency, description, successURL, failURL, notificationURL string, metadata map[string]string) (*external.PaymentInitResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*external.PaymentDetails, error)
	FindByOrderID(ctx context.Context, orderID string) (*external.PaymentDetails, error)
	CancelPayment(ctx context.Context, paymentID, reason string) error
}

// Publisher dispatches domain events after the core transition is durable.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

type Services struct {
	Inventory *InventoryService
	Payments  *PaymentService
	Reconcile *ReconcileService
}

type Config struct {
	Currency        string
	SuccessURL      string
	FailURL         string
	NotificationURL string
	SweepBatchSize  int
}

func NewServices(tiers TierStore, payments PaymentStore, provider ProviderGateway, publisher Publisher, cfg Config) *Services {
	inventory := NewInventoryService(tiers)
	paymentService := NewPaymentService(tiers, payments, provider, inventory, publisher, cfg)
	reconcile := NewReconcileService(payments, provider, publisher, cfg)

	return &Services{
		Inventory: inventory,
		Payments:  paymentService,
		Reconcile: reconcile,
	}
}
