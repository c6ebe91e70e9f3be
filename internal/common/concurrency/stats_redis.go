package concurrency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsEvent is one admission decision.
type StatsEvent struct {
	At    time.Time
	Rate  int
	Level int
	Route string
}

// StatsStore persists admission decisions. Implementations are best effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// RedisStatsStore keeps a cumulative total plus per-minute buckets so several
// gateway replicas can be observed together.
type RedisStatsStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "gateway:admission",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record increments the arrival counters and stores the latest level and
// rate in the minute bucket.
func (s *RedisStatsStore) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	totalKey := s.prefix + ":total"
	bucketKey := MinuteBucketKey(s.prefix, at)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, "arrivals", 1)
	pipe.HIncrBy(ctx, bucketKey, "arrivals", 1)
	pipe.HSet(ctx, bucketKey, "level", ev.Level, "rate", ev.Rate)
	if ev.Route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", ev.Route, 1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// MinuteBucketKey returns <prefix>:minute:YYYYMMDDhhmm in UTC.
func MinuteBucketKey(prefix string, at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", strings.Trim(prefix, ":"), at.UTC().Format("200601021504"))
}
