// Package e2e exercises the event index service end to end through its real
// HTTP surface: a live router wired against an in-memory engine, with no
// external Postgres/Redis/Kafka dependency, so it runs in any environment.
package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-labs/eventindex/internal/cache"
	"github.com/corvid-labs/eventindex/internal/engine"
	"github.com/corvid-labs/eventindex/internal/httpapi"
	"github.com/corvid-labs/eventindex/internal/ranking"
	"github.com/corvid-labs/eventindex/pkg/health"
)

// newTestServer wires a full router the way cmd/eventindexd does, minus the
// Postgres/Redis/Kafka collaborators, and returns it wrapped in an
// httptest.Server plus the underlying pipeline for direct manipulation.
func newTestServer(t *testing.T) (*httptest.Server, *engine.Pipeline) {
	t.Helper()
	mgr := engine.NewManager(engine.ManagerConfig{
		InitialBuckets: 16,
		MaxExpireSize:  1024,
		ApplyInterval:  5 * time.Millisecond,
	})
	pipeline := engine.NewPipeline(mgr.Index(), 2, 64, 16)
	t.Cleanup(pipeline.Stop)
	view := engine.NewIndexView(pipeline, time.Minute, time.Hour)
	executor := engine.NewQueryExecutor(mgr.Index().Postings())

	models := ranking.NewModelManager()
	models.Register("direct", ranking.NewDirectModel(nil))

	h := httpapi.New(httpapi.Deps{
		View:         view,
		Executor:     executor,
		Manager:      mgr,
		Models:       models,
		Cache:        &cache.QueryCache{},
		QueueDepthFn: pipeline.QueueDepth,
		MaxLimit:     100,
		DefaultLimit: 20,
	})

	mgr.StartMaintain()
	t.Cleanup(func() { mgr.StopMaintain() })

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler: h,
		Health:  health.NewChecker(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, pipeline
}

// TestFeedThenStatsReflectsPosting feeds a document and polls /v1/stats
// until the maintenance loop has applied the staged update.
func TestFeedThenStatsReflectsPosting(t *testing.T) {
	srv, _ := newTestServer(t)
	client := srv.Client()

	body := `{"doc_id":42,"ttl_seconds":120,"features":[{"term_id":7,"weight":1.0}]}`
	resp, err := client.Post(srv.URL+"/v1/feed", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("feed request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("feed status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		statsResp, err := client.Get(srv.URL + "/v1/stats")
		if err != nil {
			t.Fatalf("stats request failed: %v", err)
		}
		var stats struct {
			PostingCount   int `json:"posting_count"`
			UpdatesApplied int `json:"updates_applied"`
		}
		json.NewDecoder(statsResp.Body).Decode(&stats)
		statsResp.Body.Close()
		if stats.PostingCount > 0 && stats.UpdatesApplied > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("posting never became visible in /v1/stats within the deadline")
}

// TestAdminSnapshotDumpRejectsUnconfiguredPrefix exercises the admin dump
// route when the service was started without a snapshot prefix, mirroring a
// deployment that never enabled snapshotting.
func TestAdminSnapshotDumpRejectsUnconfiguredPrefix(t *testing.T) {
	srv, _ := newTestServer(t)
	client := srv.Client()

	dumpResp, err := client.Post(srv.URL+"/v1/admin/snapshot/dump", "application/json", nil)
	if err != nil {
		t.Fatalf("dump request failed: %v", err)
	}
	defer dumpResp.Body.Close()
	if dumpResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("dump status = %d, want %d (no prefix configured)", dumpResp.StatusCode, http.StatusBadRequest)
	}
}

// TestFeedRejectsOnceQueueFills drives more sequential feeds than the queue
// holds through a
// server with a deliberately tiny pipeline queue and no workers draining it,
// verifying the overload path rejects with 429 once the queue fills rather
// than blocking the caller indefinitely.
func TestFeedRejectsOnceQueueFills(t *testing.T) {
	mgr := engine.NewManager(engine.ManagerConfig{InitialBuckets: 16, MaxExpireSize: 1024, ApplyInterval: time.Hour})
	pipeline := engine.NewPipeline(mgr.Index(), 0, 2, 4)
	t.Cleanup(pipeline.Stop)
	view := engine.NewIndexView(pipeline, time.Minute, time.Hour)
	executor := engine.NewQueryExecutor(mgr.Index().Postings())
	models := ranking.NewModelManager()
	models.Register("direct", ranking.NewDirectModel(nil))

	h := httpapi.New(httpapi.Deps{
		View:         view,
		Executor:     executor,
		Manager:      mgr,
		Models:       models,
		Cache:        &cache.QueryCache{},
		QueueDepthFn: pipeline.QueueDepth,
		MaxLimit:     100,
		DefaultLimit: 20,
	})

	accepted, rejected := 0, 0
	for i := 0; i < 16; i++ {
		body := fmt.Sprintf(`{"doc_id":%d,"features":[{"term_id":1,"weight":1.0}]}`, i)
		req := httptest.NewRequest(http.MethodPost, "/v1/feed", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Feed(rec, req)
		switch rec.Code {
		case http.StatusAccepted:
			accepted++
		case http.StatusTooManyRequests:
			rejected++
		}
	}
	if rejected == 0 {
		t.Error("expected at least one feed to be rejected once the queue filled (no worker is draining it)")
	}
}
