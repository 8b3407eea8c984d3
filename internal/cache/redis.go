package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/feedbacklens/feedback-api/internal/models"
)

// DefaultSummaryTTL is how long a cached sentiment summary stays valid.
// Summaries are cheap to recompute, so staleness is bounded tightly.
const DefaultSummaryTTL = 30 * time.Second

// ErrMiss is returned when the requested entry is absent or expired.
var ErrMiss = errors.New("cache miss")

// SummaryCache caches per-user sentiment summaries in Redis.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache connects to Redis and verifies the connection.
func NewSummaryCache(redisURL string) (*SummaryCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &SummaryCache{client: client, ttl: DefaultSummaryTTL}, nil
}

func summaryKey(userID uuid.UUID) string {
	return "summary:" + userID.String()
}

// Get returns the cached summary for the user, or ErrMiss.
func (c *SummaryCache) Get(ctx context.Context, userID uuid.UUID) (*models.SentimentSummary, error) {
	raw, err := c.client.Get(ctx, summaryKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary from cache: %w", err)
	}

	summary := &models.SentimentSummary{}
	if err := json.Unmarshal(raw, summary); err != nil {
		// Treat a corrupt entry as a miss; it will be overwritten.
		return nil, ErrMiss
	}
	return summary, nil
}

// Set stores the summary for the user with the configured TTL.
func (c *SummaryCache) Set(ctx context.Context, userID uuid.UUID, summary *models.SentimentSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write summary to cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary for the user. Called after a new
// analysis is stored so the next summary read is fresh.
func (c *SummaryCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, summaryKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate summary: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *SummaryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *SummaryCache) Close() error {
	return c.client.Close()
}
