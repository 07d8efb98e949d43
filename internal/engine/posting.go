package engine

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Posting is a single (DocId, TermWeight) entry within a PostingList.
type Posting struct {
	Doc    DocId
	Weight TermWeight
}

// PostingList is an ordered, duplicate-free sequence of postings for one
// TermId, sorted ascending by DocId. A PostingList value is never mutated
// in place once published; every edit produces a new slice, so a reference
// handed to a reader stays valid and internally consistent for as long as
// the reader holds it.
type PostingList []Posting

// search returns the index of doc in pl, or the index at which it would be
// inserted, and whether it was found.
func (pl PostingList) search(doc DocId) (int, bool) {
	i := sort.Search(len(pl), func(i int) bool { return pl[i].Doc >= doc })
	if i < len(pl) && pl[i].Doc == doc {
		return i, true
	}
	return i, false
}

// withUpsert returns a new PostingList with doc inserted or, if already
// present, its weight replaced. The receiver is left untouched.
func (pl PostingList) withUpsert(doc DocId, weight TermWeight) PostingList {
	i, found := pl.search(doc)
	out := make(PostingList, len(pl)+boolToInt(!found))
	copy(out, pl[:i])
	if found {
		copy(out[i:], pl[i:])
		out[i] = Posting{Doc: doc, Weight: weight}
		return out
	}
	out[i] = Posting{Doc: doc, Weight: weight}
	copy(out[i+1:], pl[i:])
	return out
}

// withRemove returns a new PostingList with doc absent. If doc was not
// present, it returns the receiver unchanged (no copy made).
func (pl PostingList) withRemove(doc DocId) PostingList {
	i, found := pl.search(doc)
	if !found {
		return pl
	}
	out := make(PostingList, len(pl)-1)
	copy(out, pl[:i])
	copy(out[i:], pl[i+1:])
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PostingIndex maps TermId to its PostingList. Each term's list is held
// behind an atomic pointer, so replacing a known term's list does not touch
// the outer map. The outer map is protected by an RWMutex: every lookup
// takes the read lock, and the writer takes the write lock to add a
// never-before-seen TermId or to prune empty terms.
type PostingIndex struct {
	mu    sync.RWMutex
	terms map[TermId]*atomic.Pointer[PostingList]
}

// NewPostingIndex creates an empty index, presizing its term map to the
// given capacity hint.
func NewPostingIndex(capacityHint int) *PostingIndex {
	return &PostingIndex{
		terms: make(map[TermId]*atomic.Pointer[PostingList], capacityHint),
	}
}

// Lookup returns an immutable snapshot of term's PostingList. Safe to call
// with arbitrary concurrency against writers and never observes a
// partially-published list. It holds the map's read lock for the map
// access, so it waits while a writer holds the write lock.
func (p *PostingIndex) Lookup(term TermId) PostingList {
	p.mu.RLock()
	slot, ok := p.terms[term]
	p.mu.RUnlock()
	if !ok {
		return nil
	}
	ptr := slot.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// slotFor returns the atomic slot for term, creating one under the write
// lock if this is the term's first appearance. Writer-only.
func (p *PostingIndex) slotFor(term TermId) *atomic.Pointer[PostingList] {
	p.mu.RLock()
	slot, ok := p.terms[term]
	p.mu.RUnlock()
	if ok {
		return slot
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot, ok := p.terms[term]; ok {
		return slot
	}
	slot = &atomic.Pointer[PostingList]{}
	p.terms[term] = slot
	return slot
}

// publish atomically swaps term's PostingList to newList. Writer-only:
// callers must serialize calls to publish for the same term (the EventIndex
// changeset mutex provides this).
func (p *PostingIndex) publish(term TermId, newList PostingList) {
	slot := p.slotFor(term)
	slot.Store(&newList)
}

// IterateTerms calls visit once per term currently present in the index,
// each with a consistent snapshot of that term's PostingList, in ascending
// TermId order. Used by the snapshot codec for deterministic dumps.
func (p *PostingIndex) IterateTerms(visit func(TermId, PostingList) bool) {
	p.mu.RLock()
	pairs := make([]struct {
		term TermId
		slot *atomic.Pointer[PostingList]
	}, 0, len(p.terms))
	for t, s := range p.terms {
		pairs = append(pairs, struct {
			term TermId
			slot *atomic.Pointer[PostingList]
		}{t, s})
	}
	p.mu.RUnlock()
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].term < pairs[j].term })

	for _, pr := range pairs {
		ptr := pr.slot.Load()
		var list PostingList
		if ptr != nil {
			list = *ptr
		}
		if !visit(pr.term, list) {
			return
		}
	}
}

// pruneEmpty removes terms whose published list is currently empty. Called
// by the compaction pass; writer-only.
func (p *PostingIndex) pruneEmpty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	pruned := 0
	for term, slot := range p.terms {
		ptr := slot.Load()
		if ptr == nil || len(*ptr) == 0 {
			delete(p.terms, term)
			pruned++
		}
	}
	return pruned
}

// TermCount returns the number of terms currently tracked, including any
// with an empty (not yet compacted) PostingList.
func (p *PostingIndex) TermCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.terms)
}

// PostingCount returns the total number of (term, doc) postings across all
// terms. O(terms); intended for observability counters, not hot paths.
func (p *PostingIndex) PostingCount() int {
	total := 0
	p.IterateTerms(func(_ TermId, list PostingList) bool {
		total += len(list)
		return true
	})
	return total
}
