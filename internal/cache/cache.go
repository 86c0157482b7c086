package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// ErrCacheMiss is returned when no cached value exists for a key.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "elifhoca:analysis:"

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// AnalysisCache stores validated analysis results keyed by the SHA-256 of the uploaded file.
// A nil client turns every lookup into a miss and every store into a no-op.
type AnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnalysisCache constructs a cache. client may be nil.
func NewAnalysisCache(client *redis.Client, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client is configured.
func (c *AnalysisCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached result for fileHash or ErrCacheMiss.
func (c *AnalysisCache) Get(ctx context.Context, fileHash string) (*model.AnalysisResult, error) {
	if !c.Enabled() {
		return nil, ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, keyPrefix+fileHash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", fileHash, err)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cached analysis %s: %w", fileHash, err)
	}
	return &result, nil
}

// Set stores result under fileHash with the configured TTL (0 keeps it forever).
func (c *AnalysisCache) Set(ctx context.Context, fileHash string, result *model.AnalysisResult) error {
	if !c.Enabled() || result == nil {
		return nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis %s: %w", fileHash, err)
	}
	if err := c.client.Set(ctx, keyPrefix+fileHash, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", fileHash, err)
	}
	return nil
}

// Ping checks the Redis connection; a disabled cache is always healthy.
func (c *AnalysisCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection if present.
func (c *AnalysisCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
