// Package analytics buffers feed, query, and maintenance events behind a
// bounded channel and flushes them to Kafka in batches on a background
// goroutine, dropping events rather than blocking the caller when the
// buffer is full.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/corvid-labs/eventindex/pkg/kafka"
	"github.com/corvid-labs/eventindex/pkg/resilience"
)

const (
	collectorBatchSize     = 200
	collectorFlushInterval = 2 * time.Second
)

// Collector buffers analytics events and flushes them to Kafka in batches,
// either when a batch fills up or on a fixed interval, whichever comes
// first.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector publishing through producer, buffering
// up to bufferSize events before it starts dropping new ones.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the background batching/publish loop. It returns
// immediately; publishing continues until ctx is canceled or Close is
// called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		batch := make([]kafka.Event, 0, collectorBatchSize)
		ticker := time.NewTicker(collectorFlushInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.publishBatch(context.Background(), batch)
					return
				}
				batch = append(batch, kafka.Event{Key: topicFor(event), Value: event})
				if len(batch) >= collectorBatchSize {
					c.publishBatch(ctx, batch)
					batch = make([]kafka.Event, 0, collectorBatchSize)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					c.publishBatch(ctx, batch)
					batch = make([]kafka.Event, 0, collectorBatchSize)
				}
			case <-ctx.Done():
				c.publishBatch(context.Background(), batch)
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh), "batch_size", collectorBatchSize)
}

// Track enqueues event for publication, dropping it if the buffer is full.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting new events and waits for the flush loop to exit.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publishBatch(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	err := resilience.Retry(ctx, "analytics.publish", resilience.RetryConfig{MaxAttempts: 2}, func() error {
		return c.producer.PublishBatch(ctx, batch)
	})
	if err != nil {
		c.logger.Error("failed to publish analytics batch", "size", len(batch), "error", err)
	}
}

func (c *Collector) drainRemaining() {
	batch := make([]kafka.Event, 0, collectorBatchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.publishBatch(context.Background(), batch)
				return
			}
			batch = append(batch, kafka.Event{Key: topicFor(event), Value: event})
		default:
			c.publishBatch(context.Background(), batch)
			return
		}
	}
}

func topicFor(event any) string {
	switch event.(type) {
	case FeedEvent:
		return "feed"
	case QueryEvent:
		return "query"
	case ExpireEvent:
		return "expire"
	default:
		return "unknown"
	}
}
