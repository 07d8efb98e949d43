// Package registry persists a durable record of every fed document to
// PostgreSQL, independent of the in-memory index's own lifetime. The
// registry is advisory only: the core engine never consults it, and a
// registry write failure never fails a feed call.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corvid-labs/eventindex/internal/engine"
	"github.com/corvid-labs/eventindex/pkg/postgres"
	"github.com/corvid-labs/eventindex/pkg/resilience"
)

// Registry records feed events for auditing and analytics
// queries that outlive any single in-memory index's uptime.
type Registry struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Registry backed by db.
func New(db *postgres.Client) *Registry {
	return &Registry{
		db:     db,
		logger: slog.Default().With("component", "document-registry"),
	}
}

// RecordFeed upserts a row describing doc's most recent feed: its TTL,
// feature count, and computed expiry. Errors are logged, not returned to
// the feed caller — the registry is observability, not a durability
// guarantee for the index itself.
func (r *Registry) RecordFeed(ctx context.Context, doc engine.DocId, ttl time.Duration, featureCount int) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	err := resilience.Retry(ctx, "registry.record_feed", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		_, err := r.db.DB.ExecContext(ctx,
			`INSERT INTO fed_documents (doc_id, ttl_seconds, feature_count, ingested_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (doc_id) DO UPDATE SET
			   ttl_seconds = EXCLUDED.ttl_seconds,
			   feature_count = EXCLUDED.feature_count,
			   ingested_at = EXCLUDED.ingested_at,
			   expires_at = EXCLUDED.expires_at`,
			int64(doc), int64(ttl.Seconds()), featureCount, now, expiresAt,
		)
		return err
	})
	if err != nil {
		r.logger.Error("recording fed document failed", "doc_id", doc, "error", err)
	}
}

// FeedRecord is a single registry row, returned by Lookup for diagnostics.
type FeedRecord struct {
	Doc          engine.DocId
	TTLSeconds   int64
	FeatureCount int
	IngestedAt   time.Time
	ExpiresAt    time.Time
}

// Lookup returns the most recent feed record for doc, if any.
func (r *Registry) Lookup(ctx context.Context, doc engine.DocId) (*FeedRecord, error) {
	var rec FeedRecord
	var docID int64
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT doc_id, ttl_seconds, feature_count, ingested_at, expires_at
		 FROM fed_documents WHERE doc_id = $1`, int64(doc),
	).Scan(&docID, &rec.TTLSeconds, &rec.FeatureCount, &rec.IngestedAt, &rec.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("looking up doc %d: %w", doc, err)
	}
	rec.Doc = engine.DocId(docID)
	return &rec, nil
}
