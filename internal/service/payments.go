package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	errs "tixgate/internal/errors"
	"tixgate/internal/logger"
	"tixgate/internal/models"
	"tixgate/internal/monitoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService validates purchase requests, creates the provider-side
// payment and persists the PENDING row. Capacity is reserved before the
// provider is contacted and released again if the provider call fails.
type PaymentService struct {
	tiers     TierStore
	payments  PaymentStore
	provider  ProviderGateway
	inventory *InventoryService
	publisher Publisher
	cfg       Config
}

func NewPaymentService(tiers TierStore, payments PaymentStore, provider ProviderGateway, inventory *InventoryService, publisher Publisher, cfg Config) *PaymentService {
	return &PaymentService{
		tiers:     tiers,
		payments:  payments,
		provider:  provider,
		inventory: inventory,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *PaymentService) Create(ctx context.Context, buyerID string, req *models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	tier, err := s.tiers.GetByID(ctx, req.TierID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	if tier == nil {
		return nil, fmt.Errorf("tier %s: %w", req.TierID, errs.ErrNotFound)
	}

	// Reserve before any provider call. A rejected purchase must never have
	// touched the provider.
	if err := s.inventory.Reserve(ctx, req.TierID, req.Quantity); err != nil {
		return nil, err
	}

	amount := tier.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
	orderID := uuid.New().String()

	successURL := req.RedirectURL
	if successURL == "" {
		successURL = s.cfg.SuccessURL
	}

	// The webhook payload carries only an opaque payment id; tier, buyer and
	// quantity ride along as provider metadata so the full purchase context
	// survives the round trip.
	metadata := map[string]string{
		"tier_id":  req.TierID,
		"buyer_id": buyerID,
		"quantity": strconv.Itoa(req.Quantity),
	}
	for k, v := range req.Metadata {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}

	description := fmt.Sprintf("%d x %s", req.Quantity, tier.Name)

	initResp, err := s.provider.CreatePayment(ctx,
		amount.Shift(2).IntPart(), // provider speaks minor units
		orderID,
		s.cfg.Currency,
		description,
		successURL,
		s.cfg.FailURL,
		s.cfg.NotificationURL,
		metadata,
	)
	if err != nil {
		if errors.Is(err, errs.ErrProviderUnavailable) {
			// Unknown outcome: a timed-out init may still have registered a
			// payment on the provider side. Releasing now could hand out
			// capacity the provider lets a buyer pay for, so the reservation
			// stays until the order is confirmed absent (or canceled).
			go s.resolveUnknownCreate(context.WithoutCancel(ctx), orderID, req.TierID, req.Quantity)
			return nil, fmt.Errorf("failed to create provider payment: %w", err)
		}
		// Definite rejection: the reservation must not outlive it.
		s.inventory.Release(ctx, req.TierID, req.Quantity)
		return nil, fmt.Errorf("failed to create provider payment: %w", err)
	}

	payment := &models.Payment{
		ExternalRef: initResp.PaymentID,
		TierID:      req.TierID,
		BuyerID:     buyerID,
		Quantity:    req.Quantity,
		Amount:      amount,
		Status:      models.PaymentPending,
		CheckoutURL: initResp.PaymentURL,
		ExpiresAt:   parseProviderTime(initResp.ExpiresAt),
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		// The provider payment exists but we failed to record it. Cancel it
		// so a buyer cannot pay for a purchase we have no row for, then hand
		// the capacity back.
		if cancelErr := s.provider.CancelPayment(ctx, initResp.PaymentID, "local persistence failure"); cancelErr != nil {
			logger.WithContext(ctx).Error("Failed to cancel orphaned provider payment",
				"external_ref", initResp.PaymentID, "error", cancelErr)
		}
		s.inventory.Release(ctx, req.TierID, req.Quantity)
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}

	monitoring.TrackPaymentCreated()

	event := models.PaymentCreatedEvent{
		PaymentID:   payment.ID,
		ExternalRef: payment.ExternalRef,
		TierID:      payment.TierID,
		BuyerID:     payment.BuyerID,
		Quantity:    payment.Quantity,
		Amount:      payment.Amount.String(),
		Timestamp:   time.Now(),
	}
	if err := s.publisher.Publish(models.EventPaymentCreated, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment created event",
			"error", err,
			"payment_id", payment.ID,
			"event_type", models.EventPaymentCreated)
	}

	return &models.CreatePaymentResponse{
		PaymentID:   payment.ID,
		CheckoutURL: payment.CheckoutURL,
		Status:      payment.Status,
	}, nil
}

func (s *PaymentService) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", id, errs.ErrNotFound)
	}
	return payment, nil
}

// Cancel moves a PENDING payment to CANCELED and releases its reservation.
// Canceling a PAID payment is rejected; canceling an already closed one is a
// no-op returning the current row.
func (s *PaymentService) Cancel(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", id, errs.ErrNotFound)
	}

	if payment.Status == models.PaymentPaid {
		return nil, fmt.Errorf("cannot cancel a paid payment: %w", errs.ErrInvalidState)
	}
	if payment.Status.Terminal() {
		return payment, nil
	}

	// Provider first: on failure nothing local has changed and the caller
	// can safely retry.
	if err := s.provider.CancelPayment(ctx, payment.ExternalRef, "canceled by buyer"); err != nil {
		if errors.Is(err, errs.ErrProviderUnavailable) {
			return nil, err
		}
		// A permanent provider rejection usually means the payment already
		// closed on their side; the webhook or sweep will reconcile it.
		logger.WithContext(ctx).Error("Provider rejected cancel, leaving payment to reconciliation",
			"payment_id", payment.ID, "external_ref", payment.ExternalRef, "error", err)
		return nil, err
	}

	now := time.Now()
	applied, err := s.payments.Settle(ctx, payment.ID, models.PaymentCanceled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to settle cancellation: %w", err)
	}

	if applied {
		monitoring.TrackSettlement(string(models.PaymentCanceled))

		event := models.PaymentClosedEvent{
			PaymentID:        payment.ID,
			ExternalRef:      payment.ExternalRef,
			TierID:           payment.TierID,
			Status:           models.PaymentCanceled,
			QuantityReleased: payment.Quantity,
			Timestamp:        now,
		}
		if err := s.publisher.Publish(models.EventPaymentCanceled, event); err != nil {
			logger.WithContext(ctx).Error("Failed to publish payment canceled event",
				"error", err,
				"payment_id", payment.ID,
				"event_type", models.EventPaymentCanceled)
		}
	}

	updated, err := s.payments.GetByID(ctx, payment.ID)
	if err != nil || updated == nil {
		return payment, nil
	}
	return updated, nil
}

// resolveUnknownCreate settles the fate of a reservation whose provider
// init call timed out. It polls the provider by order id: confirmed absent
// means the init never landed and the capacity goes back; an orphaned
// payment that did land is canceled first, since no local row exists for a
// buyer to ever complete it against.
func (s *PaymentService) resolveUnknownCreate(ctx context.Context, orderID, tierID string, quantity int) {
	backoff := time.Second
	for {
		time.Sleep(backoff)

		details, err := s.provider.FindByOrderID(ctx, orderID)
		if err == nil {
			logger.Get().Warn("Canceling orphaned provider payment from timed-out init",
				"order_id", orderID, "external_ref", details.PaymentID)
			if cancelErr := s.provider.CancelPayment(ctx, details.PaymentID, "init timed out locally"); cancelErr != nil {
				if errors.Is(cancelErr, errs.ErrProviderUnavailable) {
					backoff = nextBackoff(backoff)
					continue
				}
				// Permanent rejection: the payment already closed on the
				// provider side, safe to reclaim the capacity.
				logger.Get().Error("Provider rejected cancel of orphaned payment",
					"order_id", orderID, "external_ref", details.PaymentID, "error", cancelErr)
			}
			s.inventory.Release(ctx, tierID, quantity)
			return
		}
		if errors.Is(err, errs.ErrNotFound) {
			// The init never landed; the reservation can be returned.
			s.inventory.Release(ctx, tierID, quantity)
			return
		}

		logger.Get().Error("Provider still unreachable while resolving timed-out init",
			"order_id", orderID, "error", err, "next_attempt_in", backoff.String())
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current < 30*time.Second {
		return current * 2
	}
	return current
}

// parseProviderTime tolerates an absent or malformed provider timestamp;
// payments without one are simply never swept.
func parseProviderTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
