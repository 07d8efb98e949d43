package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-labs/eventindex/internal/auth/ratelimit"
	"github.com/corvid-labs/eventindex/pkg/health"
)

func TestRouterHealthEndpointsAreUnauthenticated(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(RouterConfig{
		Handler: h,
		Health:  health.NewChecker(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec2.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want %d", rec2.Code, http.StatusOK)
	}
}

func TestRouterFeedRouteReachable(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(RouterConfig{
		Handler: h,
		Health:  health.NewChecker(),
	})

	body := `{"doc_id":1,"features":[{"term_id":1,"weight":1.0}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/feed", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("feed status = %d, want %d; body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
}

func TestRouterFeedRouteRateLimitedByRemoteAddr(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(RouterConfig{
		Handler:         h,
		Health:          health.NewChecker(),
		PublicLimiter:   ratelimit.New(time.Minute),
		PublicRateLimit: 1,
	})

	body := `{"doc_id":1,"features":[{"term_id":1,"weight":1.0}]}`
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/feed", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:5555"
		return req
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newReq())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first feed status = %d, want %d; body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, newReq())
	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("second feed status = %d, want %d; body=%s", rec2.Code, http.StatusTooManyRequests, rec2.Body.String())
	}
}

func TestRouterAdminRouteWithoutValidatorSkipsAuth(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(RouterConfig{
		Handler: h,
		Health:  health.NewChecker(),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/models/direct/activate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("activate status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
}
