package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink keeps alerts in one Redis list per user (newest first).
// A SETNX marker per dedupe key makes repeated suggestions within the same
// qualifying minute persist once, across processes sharing the Redis.
type RedisSink struct {
	client     *redis.Client
	prefix     string
	maxPerUser int
	dedupeTTL  time.Duration
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithPrefix sets the key prefix. Default is "presence".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisSink) {
		s.prefix = prefix
	}
}

// WithMaxPerUser caps each user's list. 0 keeps everything.
func WithMaxPerUser(n int) RedisOption {
	return func(s *RedisSink) {
		s.maxPerUser = n
	}
}

// WithDedupeTTL sets how long a dedupe marker lives. Default is 2 minutes.
func WithDedupeTTL(ttl time.Duration) RedisOption {
	return func(s *RedisSink) {
		s.dedupeTTL = ttl
	}
}

// NewRedisSink creates a Redis-backed alert sink.
func NewRedisSink(client *redis.Client, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		client:     client,
		prefix:     "presence",
		maxPerUser: 100,
		dedupeTTL:  2 * time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RedisSink) listKey(userID string) string {
	return fmt.Sprintf("%s:alerts:%s", s.prefix, userID)
}

func (s *RedisSink) dedupeKey(a Alert) string {
	return fmt.Sprintf("%s:alert-seen:%s", s.prefix, a.DedupeKey())
}

// Record pushes a onto the user's list unless an identical alert was recorded recently.
func (s *RedisSink) Record(ctx context.Context, a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	marker := s.dedupeKey(a)
	fresh, err := s.client.SetNX(ctx, marker, a.ID, s.dedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !fresh {
		return nil
	}

	key := s.listKey(a.UserID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	if s.maxPerUser > 0 {
		pipe.LTrim(ctx, key, 0, int64(s.maxPerUser-1))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		// The marker must not outlive a failed write, or retries are deduped away.
		if delErr := s.client.Del(context.WithoutCancel(ctx), marker).Err(); delErr != nil {
			return fmt.Errorf("redis pipeline failed: %w (dedupe marker left: %v)", err, delErr)
		}
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// List returns up to limit alerts for userID, newest first (limit <= 0 returns all).
func (s *RedisSink) List(ctx context.Context, userID string, limit int) ([]Alert, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	items, err := s.client.LRange(ctx, s.listKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}

	alerts := make([]Alert, 0, len(items))
	for _, item := range items {
		var a Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, nil
}
