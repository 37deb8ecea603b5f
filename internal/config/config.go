package config

import (
	"os"
	"strconv"
	"time"

	"tixgate/internal/cache"
	"tixgate/internal/database"
	"tixgate/internal/external"
	"tixgate/internal/messaging"
	"tixgate/internal/service"
)

// Config holds the application configuration
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Background reconciliation sweep
	SweepInterval time.Duration

	ValkeyEnabled bool

	Database database.Config
	NATS     messaging.Config
	Provider external.ProviderConfig
	Valkey   cache.Config
	Service  service.Config
}

// Load reads the configuration from environment variables
func Load() *Config {
	publicURL := getEnv("PUBLIC_BASE_URL", "http://localhost:8080")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 30)) * time.Second,

		ValkeyEnabled: getEnv("VALKEY_ENABLED", "false") == "true",

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "tixgate"),
			Password:           getEnv("DB_PASSWORD", "tixgate123"),
			DBName:             getEnv("DB_NAME", "tixgate"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "tixgate"),
			ClientID:  getEnv("NATS_CLIENT_ID", "tixgate-api"),
		},

		Provider: external.ProviderConfig{
			BaseURL:      getEnv("PAYMENT_GATEWAY_URL", "https://gateway.example.com/payment-provider"),
			MerchantSlug: getEnv("PAYMENT_MERCHANT_SLUG", ""),
			Password:     getEnv("PAYMENT_PASSWORD", ""),
			Timeout:      time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Valkey: cache.Config{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			TTLSec:   getEnvInt("VALKEY_TTL_SEC", 5),
		},

		Service: service.Config{
			Currency:        getEnv("PAYMENT_CURRENCY", "KZT"),
			SuccessURL:      publicURL + "/api/payments/success",
			FailURL:         publicURL + "/api/payments/fail",
			NotificationURL: publicURL + "/api/payments/notifications",
			SweepBatchSize:  getEnvInt("SWEEP_BATCH_SIZE", 100),
		},
	}
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable value or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
