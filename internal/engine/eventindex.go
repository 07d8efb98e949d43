package engine

import (
	"io"
	"sync"
	"sync/atomic"
)

// UpdateTuple is one caller-supplied edit instruction for batch_update: an
// upsert of (doc, term, weight), expiring at expireAt.
type UpdateTuple struct {
	Doc      DocId
	Term     TermId
	Weight   TermWeight
	ExpireAt ExpireTime
}

// EventIndex binds the posting store (C1) and the expiration table (C2)
// under a single writer-side mutex, the changeset mutex. All staging
// (Update/BatchUpdate) and publication (Apply) happen under that mutex, so
// the two can never interleave with each other; readers never take it.
type EventIndex struct {
	mu        sync.Mutex // the changeset mutex
	postings  *PostingIndex
	expire    *ExpireTable
	changeset Changeset

	appliedCount atomic.Uint64
	expiredCount atomic.Uint64
}

// NewEventIndex creates an empty EventIndex presized for capacityHint terms
// and stress-shedding its expiration table past maxExpireSize pairs.
func NewEventIndex(capacityHint, maxExpireSize int) *EventIndex {
	return &EventIndex{
		postings: NewPostingIndex(capacityHint),
		expire:   NewExpireTable(maxExpireSize),
	}
}

// Update stages an upsert for (doc, term, weight) and refreshes its
// expiration deadline. Both effects are staged under the same mutex
// acquisition, so a subsequent Apply always sees this call's deadline,
// never a stale one.
func (e *EventIndex) Update(doc DocId, term TermId, weight TermWeight, expireAt ExpireTime) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stageLocked(doc, term, weight, expireAt)
}

// BatchUpdate stages every tuple in batch under a single mutex acquisition,
// preserving the batch's own ordering, and returns the number of edits
// staged.
func (e *EventIndex) BatchUpdate(batch []UpdateTuple) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range batch {
		e.stageLocked(t.Doc, t.Term, t.Weight, t.ExpireAt)
	}
	return len(batch)
}

// Remove stages an explicit deletion of (doc, term) and drops its
// expiration tracking outright — it is retired, not expired.
func (e *EventIndex) Remove(doc DocId, term TermId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changeset.Stage(Edit{Op: OpDelete, Term: term, Doc: doc})
	e.expire.Remove(ExpireKey{Term: term, Doc: doc})
}

func (e *EventIndex) stageLocked(doc DocId, term TermId, weight TermWeight, expireAt ExpireTime) {
	e.changeset.Stage(Edit{Op: OpUpsert, Term: term, Doc: doc, Weight: weight})
	e.expire.Update(ExpireKey{Term: term, Doc: doc}, expireAt)
}

// Apply publishes every staged edit, plus any postings whose deadline has
// now passed, in one atomic step. It is the only publication point: no
// reader ever observes a partially-applied batch. Returns the number of
// edits applied (the staged changeset edits plus one delete per expired
// posting) and the number of postings expired.
func (e *EventIndex) Apply(now ExpireTime) (appliedCount, expiredCount int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	expired := e.expire.ExpireWithLimit(now, maxExpirePerApply)
	expireDeletes := make([]Edit, len(expired))
	for i, entry := range expired {
		expireDeletes[i] = Edit{Op: OpDelete, Term: entry.Key.Term, Doc: entry.Key.Doc}
	}

	combined := e.changeset.drain(expireDeletes)
	if len(combined) == 0 {
		return 0, len(expired)
	}

	byTerm := make(map[TermId][]Edit, 8)
	order := make([]TermId, 0, 8)
	for _, ed := range combined {
		if _, seen := byTerm[ed.Term]; !seen {
			order = append(order, ed.Term)
		}
		byTerm[ed.Term] = append(byTerm[ed.Term], ed)
	}

	for _, term := range order {
		list := e.postings.Lookup(term)
		for _, ed := range byTerm[term] {
			switch ed.Op {
			case OpUpsert:
				list = list.withUpsert(ed.Doc, ed.Weight)
			case OpDelete:
				list = list.withRemove(ed.Doc)
			}
		}
		e.postings.publish(term, list)
	}

	e.appliedCount.Add(uint64(len(combined)))
	e.expiredCount.Add(uint64(len(expired)))
	return len(combined), len(expired)
}

// maxExpirePerApply bounds how many expirations a single Apply call will
// drain, so one slow tick can't stall behind an unbounded backlog.
const maxExpirePerApply = 1 << 16

// Lookup returns an immutable snapshot of term's PostingList. It never takes
// the changeset mutex; it takes the posting index's read lock for the map
// lookup, which Apply holds exclusively while it adds a new term.
func (e *EventIndex) Lookup(term TermId) PostingList {
	return e.postings.Lookup(term)
}

// Postings returns the underlying PostingIndex, for constructing a
// QueryExecutor. Reads through it never take the changeset mutex; they take
// only the posting index's read lock, as PostingIndex.Lookup describes.
func (e *EventIndex) Postings() *PostingIndex {
	return e.postings
}

// Dump holds the changeset mutex and writes the posting index to postingsW
// and the expiration table to expireW, in that deterministic order, via the
// snapshot codec.
func (e *EventIndex) Dump(postingsW, expireW io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := WritePostingsSection(postingsW, e.postings); err != nil {
		return err
	}
	return WriteExpireSection(expireW, e.expire)
}

// Load replaces the index's contents by reading a snapshot from postingsR
// and expireR. The posting map is swapped inside the existing PostingIndex,
// so a QueryExecutor built from Postings() earlier reads the restored
// contents. On error the index is left unchanged.
func (e *EventIndex) Load(postingsR, expireR io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	postings, err := ReadPostingsSection(postingsR)
	if err != nil {
		return err
	}
	expireEntries, err := ReadExpireSection(expireR)
	if err != nil {
		return err
	}
	e.postings.mu.Lock()
	e.postings.terms = postings.terms
	e.postings.mu.Unlock()
	e.expire.Load(expireEntries)
	return nil
}

// ExpireTableSize returns the current number of tracked (term, doc) pairs,
// taken under the changeset mutex per the spec's observability contract.
func (e *EventIndex) ExpireTableSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expire.Size()
}

// Compact prunes empty PostingLists left behind by deletions and
// expirations. Writer-exclusive.
func (e *EventIndex) Compact() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.postings.pruneEmpty()
}

// Stats returns cumulative counters since construction.
func (e *EventIndex) Stats() (applied, expired uint64) {
	return e.appliedCount.Load(), e.expiredCount.Load()
}

// PostingCount returns the total number of (term, doc) postings currently
// held by the underlying posting index.
func (e *EventIndex) PostingCount() int {
	return e.postings.PostingCount()
}

// TermCount returns the number of distinct terms tracked.
func (e *EventIndex) TermCount() int {
	return e.postings.TermCount()
}
