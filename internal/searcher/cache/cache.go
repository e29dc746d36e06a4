// Package cache memoises search responses in Redis. The cache is invisible
// to the search contract: a key covers every input that can change a
// response, and any Redis failure degrades to a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/executor"
	"github.com/nepal-guide-hub/discovery/internal/searcher/filter"
	"github.com/nepal-guide-hub/discovery/internal/searcher/tokenizer"
	"github.com/nepal-guide-hub/discovery/pkg/config"
	"github.com/nepal-guide-hub/discovery/pkg/metrics"
	pkgredis "github.com/nepal-guide-hub/discovery/pkg/redis"
	"github.com/nepal-guide-hub/discovery/pkg/resilience"
)

const keyPrefix = "discovery:search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
	Circuit string  `json:"circuit"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

// New returns a cache over store. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
		now:     time.Now,
	}
	c.breaker = resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

func (c *QueryCache) Get(ctx context.Context, req executor.Request) (*executor.Response, bool) {
	return c.get(ctx, Key(req, c.now()), req.Query)
}

func (c *QueryCache) get(ctx context.Context, key, query string) (*executor.Response, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.fail("get", key, err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var resp executor.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, req executor.Request, resp *executor.Response) {
	c.set(ctx, Key(req, c.now()), resp)
}

func (c *QueryCache) set(ctx context.Context, key string, resp *executor.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.fail("set", key, err)
	}
}

// GetOrCompute returns the cached response for req or computes, stores and
// returns it. Concurrent misses for the same key share one computation. The
// boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req executor.Request,
	computeFn func(ctx context.Context) (*executor.Response, error),
) (*executor.Response, bool, error) {
	key := Key(req, c.now())
	if resp, ok := c.get(ctx, key, req.Query); ok {
		return resp, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := computeFn(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.Response), false, nil
}

// Invalidate drops every cached search response.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Circuit: c.breaker.GetState().String(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) fail(op, key string, err error) {
	c.errors.Add(1)
	if c.metrics != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	}
	c.logger.Warn("cache "+op+" failed", "key", key, "error", err)
}

// Key derives the cache key for req from the kind selector, the normalised
// query phrase, the non-blank filters in canonical form and the sort key.
// Filters relative to the current date also key on now's year.
func Key(req executor.Request, now time.Time) string {
	names := make([]string, 0, len(req.Filters))
	for name, value := range req.Filters {
		if strings.TrimSpace(value) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("kind=")
	sb.WriteString(string(catalog.ParseSelector(string(req.Kind))))
	sb.WriteString("\x00q=")
	sb.WriteString(tokenizer.Parse(req.Query).Phrase)
	sb.WriteString("\x00sort=")
	sb.WriteString(strings.ToLower(strings.TrimSpace(req.Sort)))
	dated := false
	for _, name := range names {
		value, d := filter.Canonical(name, req.Filters[name])
		dated = dated || d
		sb.WriteString("\x00")
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(value)
	}
	if dated {
		fmt.Fprintf(&sb, "\x00year=%d", now.Year())
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
