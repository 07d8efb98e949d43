// Package ranking implements the pluggable scoring capability the query
// executor treats as opaque: a Model takes the accumulated per-feature
// weights of a candidate document and returns a final score.
package ranking

import "github.com/corvid-labs/eventindex/internal/engine"

// Model scores a candidate document from its accumulated per-feature
// contributions. Implementations must be safe for concurrent use — the
// query executor calls Score from many concurrent query goroutines and
// never mutates a Model's state.
type Model interface {
	Score(features map[engine.TermId]float64) float64
}
