// Package redis provides a shared revocation list and trust-score cache on
// Redis. Deployments running several verifier processes use it so a
// revocation committed by one process is visible to the next check anywhere.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentauth/agentauth-core/pkg/trust"
)

const (
	credentialRevocationSet = "agentauth:revoked:credentials"
	scoreKeyPrefix          = "agentauth:score:"
)

// Cache is a go-redis backed revocation list and score cache.
type Cache struct {
	client   *redis.Client
	scoreTTL time.Duration
}

// Config holds cache configuration.
type Config struct {
	// Addr is the Redis address, e.g. "localhost:6379".
	Addr     string
	Password string
	DB       int

	// ScoreTTL bounds cached trust scores. Defaults to one minute.
	ScoreTTL time.Duration
}

// New connects a Cache to Redis.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	ttl := cfg.ScoreTTL
	if ttl == 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, scoreTTL: ttl}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, scoreTTL time.Duration) *Cache {
	if scoreTTL == 0 {
		scoreTTL = time.Minute
	}
	return &Cache{client: client, scoreTTL: scoreTTL}
}

// Close releases the connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// AddRevocation records a revoked credential id.
func (c *Cache) AddRevocation(ctx context.Context, credentialID string) error {
	return c.client.SAdd(ctx, credentialRevocationSet, credentialID).Err()
}

// IsRevoked reports whether a credential id is on the shared list.
func (c *Cache) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	return c.client.SIsMember(ctx, credentialRevocationSet, credentialID).Result()
}

// UpsertScore caches the agent's score with the configured TTL.
func (c *Cache) UpsertScore(ctx context.Context, score *trust.Score) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}
	return c.client.Set(ctx, scoreKeyPrefix+score.AgentDID, data, c.scoreTTL).Err()
}

// GetScore returns the cached score, or nil when absent or expired.
func (c *Cache) GetScore(ctx context.Context, agentDID string) (*trust.Score, error) {
	data, err := c.client.Get(ctx, scoreKeyPrefix+agentDID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var score trust.Score
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score: %w", err)
	}
	return &score, nil
}
