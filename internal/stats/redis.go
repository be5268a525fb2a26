package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore records admission stats into Redis hashes: a cumulative
// total, an optional per-minute series, per-route counters, and
// (opt-in) per-key counters. TTL applies to the time series and
// per-key hashes only; the total is cumulative.
type RedisStore struct {
	rdb *redis.Client

	prefix    string
	ttl       time.Duration
	bucket    string // "minute" or "none"
	trackKeys bool
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

func WithBucket(bucket string) RedisOption {
	return func(s *RedisStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithRedisTrackKeys(track bool) RedisOption {
	return func(s *RedisStore) { s.trackKeys = track }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "quotagate:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if route := strings.TrimSpace(ev.Method + " " + ev.Path); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(ev.Key); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
