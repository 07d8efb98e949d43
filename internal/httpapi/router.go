package httpapi

import (
	"net/http"
	"time"

	"github.com/corvid-labs/eventindex/internal/auth/apikey"
	"github.com/corvid-labs/eventindex/internal/auth/ratelimit"
	"github.com/corvid-labs/eventindex/pkg/health"
	"github.com/corvid-labs/eventindex/pkg/metrics"
	pkgmw "github.com/corvid-labs/eventindex/pkg/middleware"
	"github.com/corvid-labs/eventindex/pkg/tracing"
)

// RouterConfig bundles the middleware collaborators NewRouter wires around
// the route table.
type RouterConfig struct {
	Handler      *Handler
	Health       *health.Checker
	Metrics      *metrics.Metrics
	KeyValidator *apikey.Validator
	Limiter      *ratelimit.Limiter
	RateLimit    int

	// PublicLimiter rate-limits the unauthenticated feed/query routes by
	// remote address, protecting the update pipeline's bounded queue from a
	// single noisy caller. Feed and query themselves never require an API
	// key — that is an external-collaborator concern.
	PublicLimiter   *ratelimit.Limiter
	PublicRateLimit int

	// RequestTimeout bounds how long any single request may run before the
	// server responds with a gateway timeout. Zero disables the middleware.
	RequestTimeout time.Duration

	// AnalyticsStats, if set, is mounted at GET /v1/admin/analytics under
	// the same API-key/rate-limit protection as the rest of the admin
	// subtree.
	AnalyticsStats http.HandlerFunc
}

// NewRouter builds the full event index HTTP handler with all routes and
// the middleware chain (RequestID -> Tracing -> Metrics -> Timeout ->
// [admin: RateLimit -> APIKey] -> mux), grounded on the gateway router's
// outside-in chain construction.
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", cfg.Health.LiveHandler())
	mux.Handle("GET /readyz", cfg.Health.ReadyHandler())

	var feedHandler http.Handler = http.HandlerFunc(h.Feed)
	var queryHandler http.Handler = http.HandlerFunc(h.Query)
	if cfg.PublicLimiter != nil {
		feedHandler = remoteAddrRateLimit(cfg.PublicLimiter, cfg.PublicRateLimit)(feedHandler)
		queryHandler = remoteAddrRateLimit(cfg.PublicLimiter, cfg.PublicRateLimit)(queryHandler)
	}
	mux.Handle("POST /v1/feed", feedHandler)
	mux.Handle("POST /v1/query", queryHandler)
	mux.HandleFunc("GET /v1/stats", h.Stats)

	admin := http.NewServeMux()
	admin.HandleFunc("POST /v1/admin/snapshot/dump", h.SnapshotDump)
	admin.HandleFunc("POST /v1/admin/snapshot/restore", h.SnapshotRestore)
	admin.HandleFunc("POST /v1/admin/models/{name}/activate", h.ActivateModel)
	admin.HandleFunc("POST /v1/admin/keys", h.CreateAPIKey(cfg.KeyValidator))
	if cfg.AnalyticsStats != nil {
		admin.HandleFunc("GET /v1/admin/analytics", cfg.AnalyticsStats)
	}

	var adminChain http.Handler = admin
	adminChain = requireAPIKey(cfg.KeyValidator)(adminChain)
	if cfg.Limiter != nil {
		adminChain = rateLimit(cfg.Limiter, cfg.RateLimit)(adminChain)
	}
	mux.Handle("/v1/admin/", adminChain)

	var chain http.Handler = mux
	if cfg.RequestTimeout > 0 {
		chain = pkgmw.Timeout(cfg.RequestTimeout)(chain)
	}
	if cfg.Metrics != nil {
		chain = pkgmw.Metrics(cfg.Metrics)(chain)
	}
	chain = traceRequest(chain)
	chain = pkgmw.RequestID()(chain)

	return chain
}

// traceRequest opens a root span for the request's lifetime, named after
// the request method and path, and logs the resulting span tree once the
// handler returns. Handlers attach child spans to the context this
// middleware installs.
func traceRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(requestIDHeader)
		if traceID == "" {
			traceID = r.RemoteAddr
		}
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, traceID)
		span.SetAttr("http.method", r.Method)
		span.SetAttr("http.path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
		span.End()
		span.Log()
	})
}

const requestIDHeader = "X-Request-Id"

// requireAPIKey rejects requests lacking a valid X-Api-Key header, grounded
// on the gateway's auth middleware but scoped here to the admin subtree.
func requireAPIKey(validator *apikey.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				next.ServeHTTP(w, r)
				return
			}
			rawKey := r.Header.Get("X-Api-Key")
			if rawKey == "" {
				http.Error(w, `{"error":"missing api key"}`, http.StatusUnauthorized)
				return
			}
			if _, err := validator.Validate(r.Context(), rawKey); err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit applies the shared token-bucket limiter keyed by the raw
// X-Api-Key header value, or by the remote address when the header is absent.
func rateLimit(limiter *ratelimit.Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Api-Key")
			if key == "" {
				key = r.RemoteAddr
			}
			if !limiter.Allow(key, limit) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// remoteAddrRateLimit applies limiter keyed by remote address, for routes
// that never carry an API key.
func remoteAddrRateLimit(limiter *ratelimit.Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.RemoteAddr, limit) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
