package analytics

import (
	"log/slog"
	"testing"
)

func TestTopicForDispatchesByEventType(t *testing.T) {
	cases := []struct {
		event any
		want  string
	}{
		{FeedEvent{}, "feed"},
		{QueryEvent{}, "query"},
		{ExpireEvent{}, "expire"},
		{struct{}{}, "unknown"},
	}
	for _, c := range cases {
		if got := topicFor(c.event); got != c.want {
			t.Errorf("topicFor(%T) = %q, want %q", c.event, got, c.want)
		}
	}
}

func TestCollectorTrackDropsWhenBufferFull(t *testing.T) {
	c := &Collector{
		eventCh: make(chan any, 1),
		logger:  slog.Default(),
	}
	c.Track(FeedEvent{DocID: 1})
	c.Track(FeedEvent{DocID: 2})

	if len(c.eventCh) != 1 {
		t.Fatalf("eventCh len = %d, want 1 (second Track should have been dropped)", len(c.eventCh))
	}
	queued := <-c.eventCh
	fe, ok := queued.(FeedEvent)
	if !ok || fe.DocID != 1 {
		t.Errorf("queued event = %+v, want the first tracked event", queued)
	}
}

func TestCollectorDrainRemainingReturnsOnEmptyClosedChannel(t *testing.T) {
	c := &Collector{
		eventCh: make(chan any),
		logger:  slog.Default(),
	}
	close(c.eventCh)

	c.drainRemaining()
}
