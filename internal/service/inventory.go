package service

import (
	"context"
	"errors"
	"time"

	errs "tixgate/internal/errors"
	"tixgate/internal/logger"
	"tixgate/internal/monitoring"
)

// InventoryService is the sole entry point for moving a tier's
// committed_sold counter. The store performs the capacity check and the
// increment as one conditional write, so the service stays correct under
// arbitrary concurrent callers.
type InventoryService struct {
	tiers TierStore
}

func NewInventoryService(tiers TierStore) *InventoryService {
	return &InventoryService{tiers: tiers}
}

// Reserve counts quantity against the tier's capacity. Reservation and
// commitment are the same eager increment: a rejected payment hands the
// quantity back through Release, a paid one keeps it.
func (s *InventoryService) Reserve(ctx context.Context, tierID string, quantity int) error {
	err := s.tiers.ReserveCapacity(ctx, tierID, quantity)
	if errors.Is(err, errs.ErrInsufficientCapacity) {
		monitoring.TrackCapacityRejection(tierID)
	}
	return err
}

// Release hands a previously reserved quantity back to the tier and retries
// until the decrement is durable. A lost release permanently shrinks the
// sellable capacity, so giving up is not an option; failures are logged
// loudly for operator follow-up.
func (s *InventoryService) Release(ctx context.Context, tierID string, quantity int) {
	if err := s.tiers.ReleaseCapacity(ctx, tierID, quantity); err == nil {
		return
	} else if errors.Is(err, errs.ErrNotFound) {
		logger.WithContext(ctx).Error("Compensating release hit missing tier, capacity may be lost",
			"tier_id", tierID, "quantity", quantity, "error", err)
		return
	} else {
		logger.WithContext(ctx).Error("Compensating release failed, retrying in background",
			"tier_id", tierID, "quantity", quantity, "error", err)
	}

	// Detach from the request: the reservation leaked and must be recovered
	// even after the caller has gone away.
	go s.retryRelease(context.WithoutCancel(ctx), tierID, quantity)
}

func (s *InventoryService) retryRelease(ctx context.Context, tierID string, quantity int) {
	backoff := time.Second
	for {
		time.Sleep(backoff)

		err := s.tiers.ReleaseCapacity(ctx, tierID, quantity)
		if err == nil {
			logger.Get().Info("Compensating release succeeded after retry",
				"tier_id", tierID, "quantity", quantity)
			return
		}
		if errors.Is(err, errs.ErrNotFound) {
			logger.Get().Error("Compensating release hit missing tier, capacity may be lost",
				"tier_id", tierID, "quantity", quantity, "error", err)
			return
		}

		logger.Get().Error("Compensating release still failing",
			"tier_id", tierID, "quantity", quantity, "error", err, "next_attempt_in", backoff.String())

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
