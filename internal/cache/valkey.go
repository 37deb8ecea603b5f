package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ValkeyClient caches tier availability reads. It is optional end to end:
// a nil client or any cache failure falls back to the database.
type ValkeyClient struct {
	client *redis.Client
	ttl    time.Duration
}

type Config struct {
	Addr     string
	Password string
	TTLSec   int
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ttl := time.Duration(cfg.TTLSec) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &ValkeyClient{client: rdb, ttl: ttl}, nil
}

func availabilityKey(eventID int64) string {
	return fmt.Sprintf("tiers:availability:%d", eventID)
}

// GetTierAvailabilityRaw returns the cached availability payload for an
// event as raw JSON, avoiding an unmarshal/marshal round trip on the hot
// read path.
func (v *ValkeyClient) GetTierAvailabilityRaw(ctx context.Context, eventID int64) ([]byte, error) {
	data, err := v.client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("availability not cached for event %d", eventID)
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, nil
}

func (v *ValkeyClient) SetTierAvailability(ctx context.Context, eventID int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	// Short TTL: the committed_sold counter moves with every sale, staleness
	// is bounded rather than invalidated.
	v.client.Set(ctx, availabilityKey(eventID), data, v.ttl)
}

func (v *ValkeyClient) InvalidateTierAvailability(ctx context.Context, eventID int64) {
	v.client.Del(ctx, availabilityKey(eventID))
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
