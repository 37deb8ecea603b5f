package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "tixgate/internal/errors"
	"tixgate/internal/external"
	"tixgate/internal/logger"
	"tixgate/internal/models"
	"tixgate/internal/monitoring"
)

// ReconcileService folds asynchronous provider outcomes back into the
// payment state machine and tier inventory. The webhook path and the
// background sweep share the same transition logic, so both are safe under
// at-least-once delivery and arbitrary replays.
type ReconcileService struct {
	payments  PaymentStore
	provider  ProviderGateway
	publisher Publisher
	cfg       Config
}

func NewReconcileService(payments PaymentStore, provider ProviderGateway, publisher Publisher, cfg Config) *ReconcileService {
	return &ReconcileService{
		payments:  payments,
		provider:  provider,
		publisher: publisher,
		cfg:       cfg,
	}
}

// HandleNotification processes one provider webhook. The payload is only an
// identifier; the authoritative status is always re-fetched from the
// provider so a forged or stale webhook cannot corrupt state. A returned
// error means nothing was changed and the provider should redeliver.
func (s *ReconcileService) HandleNotification(ctx context.Context, externalRef string) error {
	details, err := s.provider.GetPayment(ctx, externalRef)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// The provider itself does not know this payment: foreign
			// notification, discard.
			monitoring.TrackWebhook("unknown")
			logger.WithContext(ctx).Warn("Discarding notification for payment unknown to provider",
				"external_ref", externalRef)
			return nil
		}
		monitoring.TrackWebhook("provider_error")
		return fmt.Errorf("failed to fetch provider status: %w", err)
	}

	return s.reconcile(ctx, externalRef, details.Status)
}

// reconcile applies the transition for the fetched provider status to the
// local payment. Every path through here is a no-op when re-run.
func (s *ReconcileService) reconcile(ctx context.Context, externalRef, providerStatus string) error {
	payment, err := s.payments.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return fmt.Errorf("failed to look up payment: %w", err)
	}
	if payment == nil {
		// Unknown locally: not an error for this system, log and discard.
		monitoring.TrackWebhook("unknown")
		logger.WithContext(ctx).Warn("Discarding notification for unknown payment",
			"external_ref", externalRef, "reason", errs.ErrUnknownNotification.Error())
		return nil
	}

	if payment.Status.Terminal() {
		monitoring.TrackWebhook("replay")
		return nil
	}

	target, ok := statusFromProvider(providerStatus)
	if !ok {
		// Still pending on the provider side, or a status we do not map.
		// Leave the payment alone; a later notification or the sweep will
		// close it.
		monitoring.TrackWebhook("pending")
		return nil
	}

	now := time.Now()
	applied, err := s.payments.Settle(ctx, payment.ID, target, now)
	if err != nil {
		monitoring.TrackWebhook("settle_error")
		return fmt.Errorf("failed to settle payment %s: %w", payment.ID, err)
	}
	if !applied {
		// A concurrent delivery won the race; state is already terminal.
		monitoring.TrackWebhook("replay")
		return nil
	}

	monitoring.TrackWebhook("applied")
	monitoring.TrackSettlement(string(target))
	s.publishOutcome(ctx, payment, target, now)

	logger.WithContext(ctx).Info("Reconciled payment",
		"payment_id", payment.ID,
		"external_ref", externalRef,
		"status", target)
	return nil
}

func (s *ReconcileService) publishOutcome(ctx context.Context, payment *models.Payment, status models.PaymentStatus, at time.Time) {
	var subject string
	var event any

	if status == models.PaymentPaid {
		subject = models.EventPaymentSettled
		event = models.PaymentSettledEvent{
			PaymentID:   payment.ID,
			ExternalRef: payment.ExternalRef,
			TierID:      payment.TierID,
			BuyerID:     payment.BuyerID,
			Amount:      payment.Amount.String(),
			Timestamp:   at,
		}
	} else {
		switch status {
		case models.PaymentFailed:
			subject = models.EventPaymentFailed
		case models.PaymentExpired:
			subject = models.EventPaymentExpired
		default:
			subject = models.EventPaymentCanceled
		}
		event = models.PaymentClosedEvent{
			PaymentID:        payment.ID,
			ExternalRef:      payment.ExternalRef,
			TierID:           payment.TierID,
			Status:           status,
			QuantityReleased: payment.Quantity,
			Timestamp:        at,
		}
	}

	if err := s.publisher.Publish(subject, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish settlement event",
			"error", err,
			"payment_id", payment.ID,
			"event_type", subject)
	}
}

// SweepPending closes PENDING payments whose provider-side expiry has
// passed and that never received a webhook. It re-fetches the authoritative
// status and reuses the webhook transition logic, so running it concurrently
// with webhook deliveries is safe.
func (s *ReconcileService) SweepPending(ctx context.Context) error {
	batch := s.cfg.SweepBatchSize
	if batch <= 0 {
		batch = 100
	}

	stale, err := s.payments.ListPendingExpired(ctx, time.Now(), batch)
	if err != nil {
		return fmt.Errorf("failed to list expired pending payments: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	logger.WithContext(ctx).Info("Sweeping expired pending payments", "count", len(stale))

	for i := range stale {
		payment := &stale[i]

		details, err := s.provider.GetPayment(ctx, payment.ExternalRef)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				// The provider dropped an expired payment entirely; it can
				// never complete, close it out.
				if err := s.reconcile(ctx, payment.ExternalRef, external.ProviderStatusExpired); err != nil {
					logger.WithContext(ctx).Error("Failed to expire dropped payment",
						"payment_id", payment.ID, "error", err)
				}
				continue
			}
			// Transient: leave for the next pass.
			logger.WithContext(ctx).Error("Sweep could not fetch provider status",
				"payment_id", payment.ID, "external_ref", payment.ExternalRef, "error", err)
			continue
		}

		if err := s.reconcile(ctx, payment.ExternalRef, details.Status); err != nil {
			logger.WithContext(ctx).Error("Sweep failed to reconcile payment",
				"payment_id", payment.ID, "error", err)
		}
	}

	return nil
}

// statusFromProvider maps the provider's vocabulary onto the local state
// machine. Unmapped statuses (NEW and anything unexpected) report ok=false
// and leave the payment PENDING.
func statusFromProvider(providerStatus string) (models.PaymentStatus, bool) {
	switch providerStatus {
	case external.ProviderStatusConfirmed:
		return models.PaymentPaid, true
	case external.ProviderStatusRejected:
		return models.PaymentFailed, true
	case external.ProviderStatusExpired:
		return models.PaymentExpired, true
	case external.ProviderStatusCancelled:
		return models.PaymentCanceled, true
	}
	return "", false
}
