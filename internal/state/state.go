package state

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateManager tracks when the last listing went out and lifetime counters,
// persisted so pacing and stats survive a restart.
type StateManager interface {
	LastPostedAt(ctx context.Context) (time.Time, error)
	SetLastPostedAt(ctx context.Context, t time.Time) error
	IncrPosted(ctx context.Context) error
	IncrFailed(ctx context.Context) error
	Stats(ctx context.Context) (posted, failed int64, err error)
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "autoposter:state:",
	}
}

func (s *redisStateManager) LastPostedAt(ctx context.Context) (time.Time, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+"last_posted_at").Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil // Nothing posted yet
		}
		return time.Time{}, fmt.Errorf("failed to get last posted timestamp: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last posted timestamp: %w", err)
	}
	return t, nil
}

func (s *redisStateManager) SetLastPostedAt(ctx context.Context, t time.Time) error {
	err := s.redisClient.Set(ctx, s.keyPrefix+"last_posted_at", t.Format(time.RFC3339Nano), 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to set last posted timestamp: %w", err)
	}
	return nil
}

func (s *redisStateManager) IncrPosted(ctx context.Context) error {
	return s.incr(ctx, "posted_total")
}

func (s *redisStateManager) IncrFailed(ctx context.Context) error {
	return s.incr(ctx, "failed_total")
}

func (s *redisStateManager) incr(ctx context.Context, counter string) error {
	if err := s.redisClient.Incr(ctx, s.keyPrefix+counter).Err(); err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return nil
}

// Stats returns the lifetime posted and failed counters.
func (s *redisStateManager) Stats(ctx context.Context) (int64, int64, error) {
	posted, err := s.counter(ctx, "posted_total")
	if err != nil {
		return 0, 0, err
	}
	failed, err := s.counter(ctx, "failed_total")
	if err != nil {
		return 0, 0, err
	}
	return posted, failed, nil
}

func (s *redisStateManager) counter(ctx context.Context, counter string) (int64, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+counter).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s: %w", counter, err)
	}
	return val, nil
}
