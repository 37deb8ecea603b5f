package consumers

import (
	"encoding/json"
	"log/slog"

	"tixgate/internal/models"

	"github.com/nats-io/stan.go"
)

// Handlers dispatch organizer/admin notifications for settlement outcomes.
// Events are published only after the core transition is durable, so a
// handler can act on them without re-checking payment state. Messages are
// acked only after dispatch; a crash mid-dispatch redelivers.
type Handlers struct {
	notifier Notifier
}

// Notifier is the outbound notification collaborator. Fire-and-forget from
// the core's perspective; the concrete implementation (email, chat, push)
// lives outside this system.
type Notifier interface {
	NotifyPaymentSettled(event models.PaymentSettledEvent) error
	NotifyPaymentClosed(event models.PaymentClosedEvent) error
}

func NewHandlers(notifier Notifier) *Handlers {
	return &Handlers{notifier: notifier}
}

func (h *Handlers) HandlePaymentSettled(m *stan.Msg) {
	var event models.PaymentSettledEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal payment settled event", "error", err)
		m.Ack()
		return
	}

	slog.Info("Processing payment settled event",
		"payment_id", event.PaymentID, "amount", event.Amount)

	if err := h.notifier.NotifyPaymentSettled(event); err != nil {
		slog.Error("Failed to dispatch settlement notification",
			"error", err, "payment_id", event.PaymentID)
		// No ack: redeliver after the ack wait.
		return
	}

	m.Ack()
}

func (h *Handlers) HandlePaymentClosed(m *stan.Msg) {
	var event models.PaymentClosedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal payment closed event", "error", err)
		m.Ack()
		return
	}

	slog.Info("Processing payment closed event",
		"payment_id", event.PaymentID,
		"status", event.Status,
		"quantity_released", event.QuantityReleased)

	if err := h.notifier.NotifyPaymentClosed(event); err != nil {
		slog.Error("Failed to dispatch closure notification",
			"error", err, "payment_id", event.PaymentID)
		return
	}

	m.Ack()
}

// LogNotifier is the default Notifier: it records the dispatch. Deployments
// with a real notification channel swap in their own implementation.
type LogNotifier struct{}

func (LogNotifier) NotifyPaymentSettled(event models.PaymentSettledEvent) error {
	slog.Info("Organizer notification: payment settled",
		"payment_id", event.PaymentID,
		"tier_id", event.TierID,
		"buyer_id", event.BuyerID,
		"amount", event.Amount)
	return nil
}

func (LogNotifier) NotifyPaymentClosed(event models.PaymentClosedEvent) error {
	slog.Info("Organizer notification: payment closed",
		"payment_id", event.PaymentID,
		"tier_id", event.TierID,
		"status", event.Status)
	return nil
}
