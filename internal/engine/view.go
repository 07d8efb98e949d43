package engine

import (
	"fmt"
	"time"
)

// FeedFeature is one (term, weight) pair within a fed document.
type FeedFeature struct {
	Term   TermId
	Weight TermWeight
}

// DocumentDescriptor is the client-visible shape of a document being fed:
// its DocId, an optional TTL override, and its weighted features. The core
// stores no blob for it — only the postings it derives.
type DocumentDescriptor struct {
	Doc      DocId
	TTL      time.Duration
	Features []FeedFeature
}

// FeedStatus reports the outcome of a single Feed call.
type FeedStatus int

const (
	FeedAccepted FeedStatus = iota
	FeedRejectedQueueFull
	FeedRejectedStopped
	FeedRejectedInvalid
)

// IndexView is a thin façade in front of the update pipeline, used by
// ingestion handlers so they never need to know about pipeline jobs or
// expire-time arithmetic.
type IndexView struct {
	pipeline   *Pipeline
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
}

// NewIndexView creates a view that enqueues onto pipeline, resolving a
// missing TTL to defaultTTL and rejecting anything above maxTTL.
func NewIndexView(pipeline *Pipeline, defaultTTL, maxTTL time.Duration) *IndexView {
	return &IndexView{
		pipeline:   pipeline,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        time.Now,
	}
}

// Feed resolves doc's absolute expire-time from now+ttl and enqueues a
// single multi-term job covering every feature, so the whole document is
// staged by exactly one worker batch slot.
func (v *IndexView) Feed(doc DocumentDescriptor) (FeedStatus, error) {
	ttl := doc.TTL
	if ttl <= 0 {
		ttl = v.defaultTTL
	}
	if ttl > v.maxTTL {
		return FeedRejectedInvalid, fmt.Errorf("ttl %s exceeds maximum %s", ttl, v.maxTTL)
	}
	if len(doc.Features) == 0 {
		return FeedRejectedInvalid, fmt.Errorf("document %d has no features", doc.Doc)
	}
	for _, f := range doc.Features {
		if !f.Weight.Valid() {
			return FeedRejectedInvalid, fmt.Errorf("term %d: invalid weight %v", f.Term, f.Weight)
		}
	}

	expireAt := ExpireTime(v.now().Add(ttl).Unix())
	tuples := make([]UpdateTuple, len(doc.Features))
	for i, f := range doc.Features {
		tuples[i] = UpdateTuple{Doc: doc.Doc, Term: f.Term, Weight: f.Weight, ExpireAt: expireAt}
	}

	switch err := v.pipeline.Enqueue(tuples); err {
	case nil:
		return FeedAccepted, nil
	case ErrQueueFull:
		return FeedRejectedQueueFull, err
	case ErrStopped:
		return FeedRejectedStopped, err
	default:
		return FeedRejectedInvalid, err
	}
}
