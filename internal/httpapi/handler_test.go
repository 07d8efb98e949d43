package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvid-labs/eventindex/internal/cache"
	"github.com/corvid-labs/eventindex/internal/engine"
	"github.com/corvid-labs/eventindex/internal/ranking"
)

// newTestHandler wires a Handler against a real in-memory engine and
// ranking manager. The query cache is left as a zero-value QueryCache,
// which is safe for Stats() but not for Get/Set (those need a live Redis
// connection) — tests here never exercise the /v1/query route for that
// reason, mirroring the document registry's coverage boundary.
func newTestHandler(t *testing.T) (*Handler, *engine.Manager, *engine.Pipeline) {
	t.Helper()
	mgr := engine.NewManager(engine.ManagerConfig{
		InitialBuckets: 16,
		MaxExpireSize:  1024,
		ApplyInterval:  10 * time.Millisecond,
	})
	pipeline := engine.NewPipeline(mgr.Index(), 1, 16, 8)
	t.Cleanup(pipeline.Stop)
	view := engine.NewIndexView(pipeline, time.Minute, time.Hour)
	executor := engine.NewQueryExecutor(mgr.Index().Postings())

	models := ranking.NewModelManager()
	models.Register("direct", ranking.NewDirectModel(nil))

	h := New(Deps{
		View:         view,
		Executor:     executor,
		Manager:      mgr,
		Models:       models,
		Cache:        &cache.QueryCache{},
		QueueDepthFn: pipeline.QueueDepth,
		MaxLimit:     100,
		DefaultLimit: 20,
	})
	return h, mgr, pipeline
}

func TestFeedAcceptsValidDocument(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := `{"doc_id":1,"ttl_seconds":60,"features":[{"term_id":5,"weight":1.5}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/feed", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.Feed(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	var resp feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "accepted" {
		t.Errorf("status = %q, want accepted", resp.Status)
	}
}

func TestFeedRejectsEmptyFeatures(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/feed", bytes.NewBufferString(`{"doc_id":1,"features":[]}`))
	rec := httptest.NewRecorder()

	h.Feed(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFeedRejectsInvalidJSON(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/feed", bytes.NewBufferString(`not json`))
	rec := httptest.NewRecorder()

	h.Feed(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFeedRejectsInvalidWeight(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := `{"doc_id":1,"features":[{"term_id":1,"weight":-3}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/feed", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.Feed(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestStatsReportsManagerAndCacheCounters(t *testing.T) {
	h, mgr, _ := newTestHandler(t)
	mgr.Index().Update(1, 5, 1.5, engine.ExpireTime(1<<40))
	mgr.Index().Apply(0)
	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()

	h.Stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ActiveModel != "direct" {
		t.Errorf("ActiveModel = %q, want %q", resp.ActiveModel, "direct")
	}
	if resp.PostingCount != 1 || resp.ExpireTableSize != 1 || resp.UpdatesApplied != 1 {
		t.Errorf("manager counters = (postings %d, expire %d, applied %d), want (1, 1, 1)",
			resp.PostingCount, resp.ExpireTableSize, resp.UpdatesApplied)
	}
	if resp.CacheHits != 0 || resp.CacheMisses != 0 {
		t.Errorf("cache counters = (%d, %d), want (0, 0)", resp.CacheHits, resp.CacheMisses)
	}
}

func TestSnapshotDumpAndRestoreRoundTrip(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.snapshotPrefix = filepath.Join(t.TempDir(), "snap")

	dumpReq := httptest.NewRequest(http.MethodPost, "/v1/admin/snapshot/dump", nil)
	dumpRec := httptest.NewRecorder()
	h.SnapshotDump(dumpRec, dumpReq)
	if dumpRec.Code != http.StatusOK {
		t.Fatalf("dump status = %d, want %d; body=%s", dumpRec.Code, http.StatusOK, dumpRec.Body.String())
	}

	restoreReq := httptest.NewRequest(http.MethodPost, "/v1/admin/snapshot/restore", nil)
	restoreRec := httptest.NewRecorder()
	h.SnapshotRestore(restoreRec, restoreReq)
	if restoreRec.Code != http.StatusOK {
		t.Fatalf("restore status = %d, want %d; body=%s", restoreRec.Code, http.StatusOK, restoreRec.Body.String())
	}
}

func TestSnapshotDumpWithoutPrefixConfiguredFails(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/snapshot/dump", nil)
	rec := httptest.NewRecorder()

	h.SnapshotDump(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestActivateModelSwitchesActiveModel(t *testing.T) {
	h, _, _ := newTestHandler(t)
	models := ranking.NewModelManager()
	models.Register("direct", ranking.NewDirectModel(nil))
	models.Register("alt", ranking.NewDirectModel(nil))
	h.models = models

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/models/alt/activate", nil)
	req.SetPathValue("name", "alt")
	rec := httptest.NewRecorder()

	h.ActivateModel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	_, active := models.Active()
	if active != "alt" {
		t.Errorf("active model = %q, want alt", active)
	}
}

func TestActivateModelUnknownNameFails(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/models/ghost/activate", nil)
	req.SetPathValue("name", "ghost")
	rec := httptest.NewRecorder()

	h.ActivateModel(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
