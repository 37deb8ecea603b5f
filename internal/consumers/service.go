package consumers

import (
	"context"
	"log/slog"

	"tixgate/internal/config"
	"tixgate/internal/messaging"
	"tixgate/internal/models"
)

type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	handlers := NewHandlers(LogNotifier{})

	return &ConsumerService{
		nats:     natsClient,
		handlers: handlers,
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	_, err := cs.nats.SubscribeQueue(models.EventPaymentSettled, "notifications", cs.handlers.HandlePaymentSettled)
	if err != nil {
		return err
	}

	for _, subject := range []string{
		models.EventPaymentFailed,
		models.EventPaymentExpired,
		models.EventPaymentCanceled,
	} {
		if _, err := cs.nats.SubscribeQueue(subject, "notifications", cs.handlers.HandlePaymentClosed); err != nil {
			return err
		}
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
			return err
		}
	}

	return nil
}
