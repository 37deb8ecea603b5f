package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tixgate/internal/config"
	"tixgate/internal/consumers"
	"tixgate/internal/database"
	"tixgate/internal/external"
	"tixgate/internal/jobs"
	"tixgate/internal/logger"
	"tixgate/internal/messaging"
	"tixgate/internal/repository"
	"tixgate/internal/service"
)

// The reconciler process runs the pending-payment sweep and the settlement
// notification consumers. It is the redelivery path of last resort: webhooks
// that never arrived are closed out here.
func main() {
	log.Println("Starting reconciler service...")

	cfg := config.Load()
	cfg.NATS.ClientID = "tixgate-reconciler"

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	providerClient := external.NewProviderClient(cfg.Provider)
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos.Tiers, repos.Payments, providerClient, natsClient, cfg.Service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := jobs.NewPaymentSweepJob(services.Reconcile, cfg.SweepInterval)
	sweep.Start(ctx)

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		log.Fatalf("Failed to create consumer service: %v", err)
	}
	if err := consumerService.Start(); err != nil {
		log.Fatalf("Failed to start consumers: %v", err)
	}

	log.Println("Reconciler service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down reconciler service...")

	sweep.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	if err := natsClient.Close(); err != nil {
		log.Printf("Error closing NATS connection: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Reconciler service stopped")
}
