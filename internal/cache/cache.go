// Package cache implements the query result cache: a Redis-backed cache of
// QueryExecutor results keyed by a normalized feature vector and limit,
// with singleflight collapsing of concurrent identical queries so a cache
// stampede never drives more than one execution of the same query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/corvid-labs/eventindex/internal/engine"
	"github.com/corvid-labs/eventindex/pkg/config"
	pkgredis "github.com/corvid-labs/eventindex/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "query:"

// QueryCache caches QueryExecutor results in Redis, keyed by a normalized
// query feature vector and limit.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache backed by client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached results for (features, limit), if present.
func (c *QueryCache) Get(ctx context.Context, features []engine.QueryFeature, limit int) ([]engine.ScoredDoc, bool) {
	key := c.buildKey(features, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var results []engine.ScoredDoc
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return results, true
}

// Set stores results for (features, limit).
func (c *QueryCache) Set(ctx context.Context, features []engine.QueryFeature, limit int, results []engine.ScoredDoc) {
	key := c.buildKey(features, limit)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached results for (features, limit) if present,
// otherwise calls computeFn exactly once even under concurrent callers for
// the same key, caching and returning its result.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	features []engine.QueryFeature,
	limit int,
	computeFn func() ([]engine.ScoredDoc, error),
) ([]engine.ScoredDoc, bool, error) {
	if results, ok := c.Get(ctx, features, limit); ok {
		return results, true, nil
	}
	key := c.buildKey(features, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.Get(ctx, features, limit); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, features, limit, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]engine.ScoredDoc), false, nil
}

// Invalidate drops every cached query result. No route in this service
// calls it: entries cached before an admin snapshot restore are dropped
// only when their TTL lapses.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Stats returns cumulative hit/miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey normalizes features (sorted by TermId, duplicates summed) so
// that two queries with the same effective feature vector but different
// submission order share a cache entry.
func (c *QueryCache) buildKey(features []engine.QueryFeature, limit int) string {
	normalized := normalizeFeatures(features)
	raw := fmt.Sprintf("%v:limit=%d", normalized, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func normalizeFeatures(features []engine.QueryFeature) []engine.QueryFeature {
	byTerm := make(map[engine.TermId]float64, len(features))
	for _, f := range features {
		byTerm[f.Term] += f.Weight
	}
	out := make([]engine.QueryFeature, 0, len(byTerm))
	for term, weight := range byTerm {
		out = append(out, engine.QueryFeature{Term: term, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}
