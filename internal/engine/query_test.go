package engine

import "testing"

type sumRanker struct{}

func (sumRanker) Score(features map[TermId]float64) float64 {
	var total float64
	for _, v := range features {
		total += v
	}
	return total
}

func TestQueryExecutorExecuteRanksByScoreDescending(t *testing.T) {
	postings := NewPostingIndex(4)
	postings.publish(1, PostingList{{Doc: 1, Weight: 1.0}, {Doc: 2, Weight: 5.0}, {Doc: 3, Weight: 3.0}})

	exec := NewQueryExecutor(postings)
	results := exec.Execute([]QueryFeature{{Term: 1, Weight: 1.0}}, 10, sumRanker{})

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	want := []DocId{2, 3, 1}
	for i, doc := range want {
		if results[i].Doc != doc {
			t.Errorf("results[%d].Doc = %d, want %d", i, results[i].Doc, doc)
		}
	}
}

func TestQueryExecutorExecuteRespectsLimit(t *testing.T) {
	postings := NewPostingIndex(4)
	var list PostingList
	for i := DocId(0); i < 100; i++ {
		list = list.withUpsert(i, TermWeight(i))
	}
	postings.publish(1, list)

	exec := NewQueryExecutor(postings)
	results := exec.Execute([]QueryFeature{{Term: 1, Weight: 1.0}}, 5, sumRanker{})

	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending by score: %+v", results)
		}
	}
	// the five highest-weighted docs are 95..99.
	if results[0].Doc != 99 {
		t.Errorf("results[0].Doc = %d, want 99 (highest weight)", results[0].Doc)
	}
}

func TestQueryExecutorExecuteAccumulatesAcrossFeatures(t *testing.T) {
	postings := NewPostingIndex(4)
	postings.publish(1, PostingList{{Doc: 1, Weight: 1.0}})
	postings.publish(2, PostingList{{Doc: 1, Weight: 2.0}})

	exec := NewQueryExecutor(postings)
	results := exec.Execute([]QueryFeature{
		{Term: 1, Weight: 1.0},
		{Term: 2, Weight: 1.0},
	}, 10, sumRanker{})

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Score != 3.0 {
		t.Errorf("results[0].Score = %v, want 3.0 (1.0 + 2.0 across both terms)", results[0].Score)
	}
}

func TestQueryExecutorExecuteNoMatchesReturnsEmpty(t *testing.T) {
	postings := NewPostingIndex(4)
	exec := NewQueryExecutor(postings)
	results := exec.Execute([]QueryFeature{{Term: 1, Weight: 1.0}}, 10, sumRanker{})
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestQueryExecutorExecuteTieBreaksByAscendingDocId(t *testing.T) {
	postings := NewPostingIndex(4)
	postings.publish(1, PostingList{{Doc: 5, Weight: 1.0}, {Doc: 2, Weight: 1.0}})

	exec := NewQueryExecutor(postings)
	results := exec.Execute([]QueryFeature{{Term: 1, Weight: 1.0}}, 10, sumRanker{})

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Doc != 2 || results[1].Doc != 5 {
		t.Errorf("results = %+v, want ascending DocId tie-break [2, 5]", results)
	}
}
