// Package httpapi implements the service's HTTP surface: JSON decode,
// validate, call into the engine/ranking/cache packages, JSON encode.
// Grounded on the teacher's ingestion and gateway handlers' writeJSON /
// writeError shape.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/corvid-labs/eventindex/internal/analytics"
	"github.com/corvid-labs/eventindex/internal/auth/apikey"
	"github.com/corvid-labs/eventindex/internal/cache"
	"github.com/corvid-labs/eventindex/internal/engine"
	"github.com/corvid-labs/eventindex/internal/ranking"
	"github.com/corvid-labs/eventindex/internal/registry"
	apperrors "github.com/corvid-labs/eventindex/pkg/errors"
	"github.com/corvid-labs/eventindex/pkg/logger"
	"github.com/corvid-labs/eventindex/pkg/tracing"
)

// Handler implements the event index's feed, query, stats, and admin
// endpoints.
type Handler struct {
	view      *engine.IndexView
	executor  *engine.QueryExecutor
	manager   *engine.Manager
	models    *ranking.ModelManager
	cache     *cache.QueryCache
	registry  *registry.Registry
	collector *analytics.Collector
	queueFn   func() int
	maxLimit  int
	defLimit  int
	snapshotPrefix string
	logger    *slog.Logger
}

// Deps bundles every collaborator a Handler needs. Registry and Collector
// are optional: a nil value simply skips that side-effect.
type Deps struct {
	View         *engine.IndexView
	Executor     *engine.QueryExecutor
	Manager      *engine.Manager
	Models       *ranking.ModelManager
	Cache        *cache.QueryCache
	Registry     *registry.Registry
	Collector    *analytics.Collector
	QueueDepthFn func() int
	MaxLimit     int
	DefaultLimit int
	SnapshotPrefix string
}

// New creates a Handler from deps.
func New(deps Deps) *Handler {
	return &Handler{
		view:      deps.View,
		executor:  deps.Executor,
		manager:   deps.Manager,
		models:    deps.Models,
		cache:     deps.Cache,
		registry:  deps.Registry,
		collector: deps.Collector,
		queueFn:   deps.QueueDepthFn,
		maxLimit:  deps.MaxLimit,
		defLimit:  deps.DefaultLimit,
		snapshotPrefix: deps.SnapshotPrefix,
		logger:    slog.Default().With("component", "httpapi-handler"),
	}
}

// ---------- request/response shapes ----------

type feedFeatureJSON struct {
	TermID uint64  `json:"term_id"`
	Weight float64 `json:"weight"`
}

type feedRequest struct {
	DocID      uint64            `json:"doc_id"`
	TTLSeconds int64             `json:"ttl_seconds"`
	Features   []feedFeatureJSON `json:"features"`
}

type feedResponse struct {
	Status string `json:"status"`
}

type queryFeatureJSON struct {
	TermID uint64  `json:"term_id"`
	Weight float64 `json:"weight"`
}

type queryRequest struct {
	Features []queryFeatureJSON `json:"features"`
	Limit    int                `json:"limit"`
}

type scoredDocJSON struct {
	DocID uint64  `json:"doc_id"`
	Score float64 `json:"score"`
}

type queryResponse struct {
	Results []scoredDocJSON `json:"results"`
}

// ---------- feed ----------

// Feed handles POST /v1/feed.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req feedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Features) == 0 {
		h.writeError(w, http.StatusBadRequest, "features must not be empty")
		return
	}

	features := make([]engine.FeedFeature, len(req.Features))
	for i, f := range req.Features {
		features[i] = engine.FeedFeature{Term: engine.TermId(f.TermID), Weight: engine.TermWeight(f.Weight)}
	}
	doc := engine.DocumentDescriptor{
		Doc:      engine.DocId(req.DocID),
		TTL:      time.Duration(req.TTLSeconds) * time.Second,
		Features: features,
	}

	status, err := h.view.Feed(doc)
	outcome := feedOutcome(status)
	if h.collector != nil {
		h.collector.Track(analytics.FeedEvent{
			Type:         analytics.EventFeed,
			DocID:        req.DocID,
			FeatureCount: len(req.Features),
			TTLSeconds:   req.TTLSeconds,
			Status:       outcome,
			Timestamp:    time.Now().UTC(),
		})
	}
	if err != nil {
		statusCode := feedStatusCode(status)
		log.Warn("feed rejected", "doc_id", req.DocID, "status", outcome, "error", err)
		h.writeError(w, statusCode, err.Error())
		return
	}

	if h.registry != nil {
		ttl := doc.TTL
		if ttl <= 0 {
			ttl = time.Duration(req.TTLSeconds) * time.Second
		}
		h.registry.RecordFeed(ctx, doc.Doc, ttl, len(req.Features))
	}

	h.writeJSON(w, http.StatusAccepted, feedResponse{Status: outcome})
}

func feedOutcome(status engine.FeedStatus) string {
	switch status {
	case engine.FeedAccepted:
		return "accepted"
	case engine.FeedRejectedQueueFull:
		return "rejected_queue_full"
	case engine.FeedRejectedStopped:
		return "rejected_stopped"
	default:
		return "rejected_invalid"
	}
}

func feedStatusCode(status engine.FeedStatus) int {
	switch status {
	case engine.FeedRejectedQueueFull:
		return apperrors.HTTPStatusCode(apperrors.ErrQueueFull)
	case engine.FeedRejectedStopped:
		return apperrors.HTTPStatusCode(apperrors.ErrStopped)
	default:
		return apperrors.HTTPStatusCode(apperrors.ErrInvalidInput)
	}
}

// ---------- query ----------

// Query handles POST /v1/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	start := time.Now()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Features) == 0 {
		h.writeError(w, http.StatusBadRequest, "features must not be empty")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = h.defLimit
	}
	if h.maxLimit > 0 && limit > h.maxLimit {
		limit = h.maxLimit
	}

	features := make([]engine.QueryFeature, len(req.Features))
	for i, f := range req.Features {
		features[i] = engine.QueryFeature{Term: engine.TermId(f.TermID), Weight: f.Weight}
	}

	ranker, modelName := h.models.Active()
	if ranker == nil {
		h.writeError(w, http.StatusInternalServerError, "no ranking model active")
		return
	}

	results, cacheHit, err := h.cache.GetOrCompute(ctx, features, limit, func() ([]engine.ScoredDoc, error) {
		_, execSpan := tracing.StartChildSpan(ctx, "query.execute")
		defer execSpan.End()
		execSpan.SetAttr("term_count", len(features))
		execSpan.SetAttr("limit", limit)
		return h.executor.Execute(features, limit, ranker), nil
	})
	if err != nil {
		log.Error("query execution failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	latency := time.Since(start)
	if h.collector != nil {
		h.collector.Track(analytics.QueryEvent{
			Type:        analytics.EventQuery,
			TermCount:   len(req.Features),
			ResultCount: len(results),
			LatencyMs:   latency.Milliseconds(),
			CacheHit:    cacheHit,
			Timestamp:   time.Now().UTC(),
		})
	}
	log.Debug("query executed", "model", modelName, "term_count", len(req.Features), "result_count", len(results), "cache_hit", cacheHit)

	resp := queryResponse{Results: make([]scoredDocJSON, len(results))}
	for i, r := range results {
		resp.Results[i] = scoredDocJSON{DocID: uint64(r.Doc), Score: r.Score}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ---------- stats ----------

type statsResponse struct {
	PostingCount    int   `json:"posting_count"`
	ExpireTableSize int   `json:"expire_table_size"`
	UpdatesApplied  uint64 `json:"updates_applied"`
	UpdatesExpired  uint64 `json:"updates_expired"`
	QueueDepth      int   `json:"queue_depth"`
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	ActiveModel     string `json:"active_model"`
}

// Stats handles GET /v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	queueDepth := 0
	if h.queueFn != nil {
		queueDepth = h.queueFn()
	}
	s := h.manager.Stats(queueDepth)
	hits, misses := h.cache.Stats()
	_, modelName := h.models.Active()

	h.writeJSON(w, http.StatusOK, statsResponse{
		PostingCount:    s.PostingCount,
		ExpireTableSize: s.ExpireTableSize,
		UpdatesApplied:  s.UpdatesApplied,
		UpdatesExpired:  s.UpdatesExpired,
		QueueDepth:      s.QueueDepth,
		CacheHits:       hits,
		CacheMisses:     misses,
		ActiveModel:     modelName,
	})
}

// ---------- admin ----------

// SnapshotDump handles POST /v1/admin/snapshot/dump.
func (h *Handler) SnapshotDump(w http.ResponseWriter, r *http.Request) {
	prefix := h.snapshotPrefix
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "no snapshot prefix configured")
		return
	}
	if err := h.manager.Dump(prefix); err != nil {
		h.logger.Error("admin snapshot dump failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "snapshot dump failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "dumped", "prefix": prefix})
}

// SnapshotRestore handles POST /v1/admin/snapshot/restore.
func (h *Handler) SnapshotRestore(w http.ResponseWriter, r *http.Request) {
	prefix := h.snapshotPrefix
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "no snapshot prefix configured")
		return
	}
	if err := h.manager.Restore(prefix); err != nil {
		h.logger.Error("admin snapshot restore failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "snapshot restore failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "prefix": prefix})
}

// ActivateModel handles POST /v1/admin/models/{name}/activate.
func (h *Handler) ActivateModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "model name is required")
		return
	}
	if err := h.models.Activate(name); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "activated", "model": name})
}

// CreateAPIKey handles POST /v1/admin/keys.
func (h *Handler) CreateAPIKey(keyValidator *apikey.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name      string `json:"name"`
			RateLimit int    `json:"rate_limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" {
			h.writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		key, err := keyValidator.CreateKey(r.Context(), req.Name, req.RateLimit, nil)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, fmt.Sprintf("creating api key: %v", err))
			return
		}
		h.writeJSON(w, http.StatusCreated, map[string]string{"api_key": key, "name": req.Name})
	}
}

// ---------- helpers ----------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
