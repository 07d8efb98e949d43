package engine

import (
	"testing"
	"time"
)

func TestIndexViewFeedAcceptsAndEnqueuesAllFeatures(t *testing.T) {
	idx := NewEventIndex(16, 1024)
	p := NewPipeline(idx, 1, 16, 8)
	defer p.Stop()

	view := NewIndexView(p, time.Minute, time.Hour)
	status, err := view.Feed(DocumentDescriptor{
		Doc: 1,
		Features: []FeedFeature{
			{Term: 100, Weight: 1.0},
			{Term: 200, Weight: 2.0},
		},
	})
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if status != FeedAccepted {
		t.Fatalf("Feed() status = %v, want FeedAccepted", status)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		idx.Apply(ExpireTime(time.Now().Unix()))
		if len(idx.Lookup(100)) > 0 && len(idx.Lookup(200)) > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Error("fed document's postings never became visible")
}

func TestIndexViewFeedRejectsNoFeatures(t *testing.T) {
	idx := NewEventIndex(16, 1024)
	p := NewPipeline(idx, 1, 16, 8)
	defer p.Stop()

	view := NewIndexView(p, time.Minute, time.Hour)
	status, err := view.Feed(DocumentDescriptor{Doc: 1})
	if err == nil {
		t.Fatal("Feed() with no features should error")
	}
	if status != FeedRejectedInvalid {
		t.Errorf("Feed() status = %v, want FeedRejectedInvalid", status)
	}
}

func TestIndexViewFeedRejectsTTLAboveMaximum(t *testing.T) {
	idx := NewEventIndex(16, 1024)
	p := NewPipeline(idx, 1, 16, 8)
	defer p.Stop()

	view := NewIndexView(p, time.Minute, time.Hour)
	status, err := view.Feed(DocumentDescriptor{
		Doc:      1,
		TTL:      24 * time.Hour,
		Features: []FeedFeature{{Term: 1, Weight: 1.0}},
	})
	if err == nil {
		t.Fatal("Feed() with an over-maximum TTL should error")
	}
	if status != FeedRejectedInvalid {
		t.Errorf("Feed() status = %v, want FeedRejectedInvalid", status)
	}
}

func TestIndexViewFeedRejectsInvalidWeight(t *testing.T) {
	idx := NewEventIndex(16, 1024)
	p := NewPipeline(idx, 1, 16, 8)
	defer p.Stop()

	view := NewIndexView(p, time.Minute, time.Hour)
	status, err := view.Feed(DocumentDescriptor{
		Doc:      1,
		Features: []FeedFeature{{Term: 1, Weight: -1.0}},
	})
	if err == nil {
		t.Fatal("Feed() with a negative weight should error")
	}
	if status != FeedRejectedInvalid {
		t.Errorf("Feed() status = %v, want FeedRejectedInvalid", status)
	}
}

func TestIndexViewFeedUsesDefaultTTLWhenUnset(t *testing.T) {
	idx := NewEventIndex(16, 1024)
	p := NewPipeline(idx, 1, 16, 8)
	defer p.Stop()

	fixedNow := time.Unix(1_700_000_000, 0)
	view := NewIndexView(p, 30*time.Second, time.Hour)
	view.now = func() time.Time { return fixedNow }

	status, err := view.Feed(DocumentDescriptor{
		Doc:      1,
		Features: []FeedFeature{{Term: 1, Weight: 1.0}},
	})
	if err != nil || status != FeedAccepted {
		t.Fatalf("Feed() = (%v, %v), want (FeedAccepted, nil)", status, err)
	}

	p.Stop()
	want := ExpireTime(fixedNow.Add(30 * time.Second).Unix())
	if got, ok := idx.expire.Contains(ExpireKey{Term: 1, Doc: 1}); !ok || got != want {
		t.Errorf("expire deadline = (%v, %v), want (%v, true)", got, ok, want)
	}
}

func TestIndexViewFeedMapsQueueFullStatus(t *testing.T) {
	idx := NewEventIndex(16, 1024)
	p := &Pipeline{
		index:   idx,
		queue:   make(chan job), // unbuffered, no worker draining it
		stopped: make(chan struct{}),
	}
	view := NewIndexView(p, time.Minute, time.Hour)

	status, err := view.Feed(DocumentDescriptor{
		Doc:      1,
		Features: []FeedFeature{{Term: 1, Weight: 1.0}},
	})
	if err != ErrQueueFull {
		t.Fatalf("Feed() error = %v, want ErrQueueFull", err)
	}
	if status != FeedRejectedQueueFull {
		t.Errorf("Feed() status = %v, want FeedRejectedQueueFull", status)
	}
}
