package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-labs/eventindex/pkg/kafka"
)

// AggregatedStats summarizes analytics events consumed since the
// aggregator started.
type AggregatedStats struct {
	TotalFeeds       int64   `json:"total_feeds"`
	TotalQueries     int64   `json:"total_queries"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	TotalExpired     int64   `json:"total_expired"`
	AvgQueryLatency  float64 `json:"avg_query_latency_ms"`
	P95QueryLatency  int64   `json:"p95_query_latency_ms"`
	QueriesPerMinute float64 `json:"queries_per_minute"`
}

// Aggregator consumes analytics events from Kafka and maintains running
// summary statistics, grounded on the same consumer-driven accumulation
// shape as the platform's other background stats processors.
type Aggregator struct {
	mu            sync.RWMutex
	totalFeeds    atomic.Int64
	totalQueries  atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	totalExpired  atomic.Int64
	latenciesMs   []int64
	startTime     time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator consuming through consumer.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latenciesMs: make([]int64, 0, 1024),
		startTime:   time.Now(),
		consumer:    consumer,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start begins consuming. Blocks until the consumer's context is canceled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns a kafka.MessageHandler that decodes and records
// whichever event type a message carries.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		switch string(key) {
		case "feed":
			event, err := kafka.DecodeJSON[FeedEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode feed event", "error", err)
				return nil
			}
			agg.recordFeed(event)
		case "query":
			event, err := kafka.DecodeJSON[QueryEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode query event", "error", err)
				return nil
			}
			agg.recordQuery(event)
		case "expire":
			event, err := kafka.DecodeJSON[ExpireEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode expire event", "error", err)
				return nil
			}
			agg.recordExpire(event)
		}
		return nil
	}
}

func (a *Aggregator) recordFeed(event FeedEvent) {
	a.totalFeeds.Add(1)
}

func (a *Aggregator) recordQuery(event QueryEvent) {
	a.totalQueries.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	a.mu.Lock()
	a.latenciesMs = append(a.latenciesMs, event.LatencyMs)
	a.mu.Unlock()
}

func (a *Aggregator) recordExpire(event ExpireEvent) {
	a.totalExpired.Add(int64(event.Expired))
}

// Stats returns a snapshot of current aggregated statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalFeeds:   a.totalFeeds.Load(),
		TotalQueries: a.totalQueries.Load(),
		CacheHits:    a.cacheHits.Load(),
		CacheMisses:  a.cacheMisses.Load(),
		TotalExpired: a.totalExpired.Load(),
	}
	if len(a.latenciesMs) > 0 {
		sorted := make([]int64, len(a.latenciesMs))
		copy(sorted, a.latenciesMs)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgQueryLatency = float64(sum) / float64(len(sorted))
		stats.P95QueryLatency = percentile(sorted, 95)
	}
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
