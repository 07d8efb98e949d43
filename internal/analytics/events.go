package analytics

import "time"

// EventType identifies the kind of analytics event produced by the
// engine's feed, query, and maintenance paths.
type EventType string

const (
	EventFeed   EventType = "feed"
	EventQuery  EventType = "query"
	EventExpire EventType = "expire"
)

// FeedEvent records the outcome of a single Feed call.
type FeedEvent struct {
	Type         EventType `json:"type"`
	DocID        uint64    `json:"doc_id"`
	FeatureCount int       `json:"feature_count"`
	TTLSeconds   int64     `json:"ttl_seconds"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
}

// QueryEvent records the outcome of a single query execution.
type QueryEvent struct {
	Type       EventType `json:"type"`
	TermCount  int       `json:"term_count"`
	ResultCount int      `json:"result_count"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// ExpireEvent records a maintenance pass's expiration batch.
type ExpireEvent struct {
	Type       EventType `json:"type"`
	Applied    int       `json:"applied"`
	Expired    int       `json:"expired"`
	QueueDepth int       `json:"queue_depth"`
	Timestamp  time.Time `json:"timestamp"`
}
