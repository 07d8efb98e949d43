package engine

import "container/heap"

// Ranker is the opaque scoring capability the query executor calls once per
// candidate document, after accumulating that document's per-feature
// contributions. The engine never inspects a Ranker's internals.
type Ranker interface {
	Score(features map[TermId]float64) float64
}

// QueryFeature is one (term, queryWeight) pair in a query's feature vector.
type QueryFeature struct {
	Term   TermId
	Weight float64
}

// ScoredDoc is a single ranked result.
type ScoredDoc struct {
	Doc   DocId
	Score float64
}

// QueryExecutor walks posting lists for a query's feature set against a
// PostingIndex and returns the top-K candidates by ranker score. It never
// takes the EventIndex's changeset mutex; its lookups take only the posting
// index's read lock, which a writer holds exclusively while adding a new
// term or pruning empty ones.
type QueryExecutor struct {
	postings *PostingIndex
}

// NewQueryExecutor creates an executor reading from postings.
func NewQueryExecutor(postings *PostingIndex) *QueryExecutor {
	return &QueryExecutor{postings: postings}
}

// Execute scores every document that has at least one matching posting
// among features, via a term-at-a-time hash accumulation, then returns the
// top `limit` results sorted descending by score with ascending-DocId
// tie-break.
func (q *QueryExecutor) Execute(features []QueryFeature, limit int, ranker Ranker) []ScoredDoc {
	if len(features) == 0 || limit <= 0 {
		return []ScoredDoc{}
	}

	accum := make(map[DocId]map[TermId]float64)
	for _, f := range features {
		list := q.postings.Lookup(f.Term)
		for _, p := range list {
			docFeatures, ok := accum[p.Doc]
			if !ok {
				docFeatures = make(map[TermId]float64, len(features))
				accum[p.Doc] = docFeatures
			}
			docFeatures[f.Term] += f.Weight * float64(p.Weight)
		}
	}
	if len(accum) == 0 {
		return []ScoredDoc{}
	}

	h := &scoredDocHeap{}
	heap.Init(h)
	for doc, docFeatures := range accum {
		score := ranker.Score(docFeatures)
		heap.Push(h, ScoredDoc{Doc: doc, Score: score})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}

	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

// scoredDocHeap is a bounded min-heap over ScoredDoc ordered by (score asc,
// DocId desc), so the weakest candidate — lowest score, tie-broken toward
// the larger DocId — always sits at the root and is what a capacity-pop
// evicts. Popping it repeatedly therefore yields ascending score order;
// Execute reverses that to produce the final descending, DocId-ascending
// tie-break order the spec requires.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Doc > h[j].Doc
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
