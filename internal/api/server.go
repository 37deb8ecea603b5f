package api

import (
	"fmt"
	"log/slog"

	"tixgate/internal/cache"
	"tixgate/internal/config"
	"tixgate/internal/database"
	"tixgate/internal/external"
	"tixgate/internal/handlers"
	"tixgate/internal/messaging"
	"tixgate/internal/middleware"
	"tixgate/internal/repository"
	"tixgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"

	"tixgate/internal/logger"
)

// Server is the HTTP API process. All collaborators are wired explicitly
// through constructors; nothing reaches for ambient global state.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
}

func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	var valkeyClient *cache.ValkeyClient
	if cfg.ValkeyEnabled {
		valkeyClient, err = cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			// Cache is an optimization, not a dependency.
			slog.Warn("Valkey unavailable, availability reads go to the database", "error", err)
			valkeyClient = nil
		}
	}

	providerClient := external.NewProviderClient(cfg.Provider)

	repos := repository.NewRepositories(db)

	services := service.NewServices(repos.Tiers, repos.Payments, providerClient, natsClient, cfg.Service)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		services: services,
		repos:    repos,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, s.repos.Tiers, s.valkey)

	api := s.router.Group("/api")
	{
		tiers := api.Group("/tiers")
		{
			tiers.POST("", h.CreateTier)
			tiers.GET("", h.ListTiers)
			tiers.GET("/:id", h.GetTier)
		}

		payments := api.Group("/payments")
		{
			// Purchase and cancel need a caller identity; webhook and
			// redirect endpoints are hit by the provider and the buyer's
			// browser.
			payments.POST("", middleware.BuyerIdentity(), h.CreatePayment)
			payments.PATCH("/cancel", middleware.BuyerIdentity(), h.CancelPayment)
			payments.GET("/:id", h.GetPayment)
			payments.POST("/notifications", h.OnPaymentUpdates)
			payments.GET("/success", h.NotifyPaymentCompleted)
			payments.GET("/fail", h.NotifyPaymentFailed)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "tixgate-api",
		"version": "1.0.0",
	})
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes the server's connections
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
