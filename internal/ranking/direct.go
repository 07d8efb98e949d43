package ranking

import "github.com/corvid-labs/eventindex/internal/engine"

// DirectModel scores a candidate as the dot product of its accumulated
// feature weights against a static set of per-feature coefficients. A
// feature with no coefficient contributes its raw accumulated weight, so a
// DirectModel with an empty coefficient map degenerates to a plain linear
// sum ranker.
type DirectModel struct {
	coefficients map[engine.TermId]float64
}

// NewDirectModel creates a DirectModel from a fixed coefficient set. A nil
// or empty map is valid and yields sum-ranker behavior.
func NewDirectModel(coefficients map[engine.TermId]float64) *DirectModel {
	cp := make(map[engine.TermId]float64, len(coefficients))
	for k, v := range coefficients {
		cp[k] = v
	}
	return &DirectModel{coefficients: cp}
}

// Score implements Model.
func (m *DirectModel) Score(features map[engine.TermId]float64) float64 {
	var total float64
	for term, weight := range features {
		if coef, ok := m.coefficients[term]; ok {
			total += coef * weight
			continue
		}
		total += weight
	}
	return total
}
