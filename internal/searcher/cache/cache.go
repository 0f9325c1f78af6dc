// Package cache memoises query answers in Redis. Keys embed the snapshot
// generation, so an answer computed against one snapshot is never served
// for another. A circuit breaker takes a failing Redis out of the request
// path; the cache then degrades to computing every answer.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/resilience"
)

const keyPrefix = "pa:"

// Store is the key-value backend; *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. A nil store disables caching but keeps
// concurrent identical requests de-duplicated. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("query-cache", resilience.BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		Harmless:         pkgredis.IsNilError,
		OnStateChange: func(name string, state resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
			}
		},
	})
	return c
}

// SearchKey is the cache key of a search against generation gen.
func SearchKey(gen uint64, plan *parser.QueryPlan, limit int) string {
	return buildKey("search", gen, fmt.Sprintf("%s:limit=%d", plan.Key(), limit))
}

// NeighborsKey is the cache key of a similarity lookup against generation
// gen.
func NeighborsKey(gen uint64, speaker string, k int) string {
	return buildKey("similar", gen, fmt.Sprintf("%s:k=%d", speaker, k))
}

func buildKey(kind string, gen uint64, raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%s:%x", keyPrefix, kind, strconv.FormatUint(gen, 10), hash[:16])
}

func (c *QueryCache) get(ctx context.Context, key string, out any) bool {
	if c.store == nil {
		return false
	}
	var data []byte
	err := c.breaker.Do(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil || data == nil {
		if err != nil && !pkgredis.IsNilError(err) && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return false
	}
	c.hit()
	return true
}

func (c *QueryCache) set(ctx context.Context, key string, value any) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// GetOrCompute returns the cached value under key, or computes, stores and
// returns it. Concurrent callers with the same key share one computation.
// The boolean reports a cache hit.
func GetOrCompute[T any](ctx context.Context, c *QueryCache, key string, compute func() (T, error)) (T, bool, error) {
	var cached T
	if c.get(ctx, key, &cached) {
		return cached, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops every cached answer.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Enabled reports whether answers are stored at all.
func (c *QueryCache) Enabled() bool { return c.store != nil }

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState returns the state of the cache's circuit breaker.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.State()
}
