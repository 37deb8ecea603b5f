package jobs

import (
	"context"
	"log/slog"
	"time"

	"tixgate/internal/monitoring"
	"tixgate/internal/service"
)

// PaymentSweepJob periodically reconciles PENDING payments whose
// provider-side expiry has passed and that never received a webhook. It is
// the system's only timeout-driven state change and reuses the webhook
// transition logic, so overlapping with live deliveries is safe.
type PaymentSweepJob struct {
	reconcile *service.ReconcileService
	interval  time.Duration
	ticker    *time.Ticker
	done      chan bool
}

func NewPaymentSweepJob(reconcile *service.ReconcileService, interval time.Duration) *PaymentSweepJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PaymentSweepJob{
		reconcile: reconcile,
		interval:  interval,
		done:      make(chan bool),
	}
}

// Start begins the background loop.
func (j *PaymentSweepJob) Start(ctx context.Context) {
	slog.Info("Starting payment sweep job", "interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	// Run initial pass immediately
	go j.run(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.run(ctx)
			case <-j.done:
				slog.Info("Payment sweep job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *PaymentSweepJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *PaymentSweepJob) run(ctx context.Context) {
	start := time.Now()

	if err := j.reconcile.SweepPending(ctx); err != nil {
		slog.Error("Payment sweep pass failed", "error", err)
		return
	}

	monitoring.TrackSweepDuration(time.Since(start).Seconds())
}
