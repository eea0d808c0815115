// Package cache remembers delivery estimates per (platform, pincode) in
// Redis, so sessions whose ETA capture step fails can still report a recent
// value for the same location.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

type EtaCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewEtaCache(addr string, db int, ttl time.Duration) (*EtaCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &EtaCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "eta_cache"),
	}, nil
}

func etaKey(platform models.Platform, pincode string) string {
	return fmt.Sprintf("eta:%s:%s", platform, pincode)
}

// LastETA returns the most recent estimate stored for the location.
func (c *EtaCache) LastETA(ctx context.Context, platform models.Platform, pincode string) (string, bool) {
	val, err := c.client.Get(ctx, etaKey(platform, pincode)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn("eta lookup failed", "error", err)
		return "", false
	}
	return val, true
}

// StoreETA refreshes the estimate. Best effort; the value is advisory
// output, never a control input.
func (c *EtaCache) StoreETA(ctx context.Context, platform models.Platform, pincode, eta string) {
	if err := c.client.Set(ctx, etaKey(platform, pincode), eta, c.ttl).Err(); err != nil {
		c.logger.Warn("eta store failed", "error", err)
	}
}

func (c *EtaCache) Close() error {
	return c.client.Close()
}
