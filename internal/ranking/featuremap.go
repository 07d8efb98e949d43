package ranking

import "github.com/corvid-labs/eventindex/internal/engine"

// FeatureMappingModel re-keys a candidate's accumulated feature weights
// through a fixed TermId-to-TermId mapping before delegating to a base
// Model, so two raw feature spaces can be folded into one scoring
// namespace without changing how the query executor accumulates weights.
// Weights for features that map to the same target TermId are summed.
type FeatureMappingModel struct {
	base    Model
	mapping map[engine.TermId]engine.TermId
}

// NewFeatureMappingModel wraps base, remapping accumulated features through
// mapping before scoring. A TermId absent from mapping passes through
// unchanged.
func NewFeatureMappingModel(base Model, mapping map[engine.TermId]engine.TermId) *FeatureMappingModel {
	cp := make(map[engine.TermId]engine.TermId, len(mapping))
	for k, v := range mapping {
		cp[k] = v
	}
	return &FeatureMappingModel{base: base, mapping: cp}
}

// Score implements Model.
func (m *FeatureMappingModel) Score(features map[engine.TermId]float64) float64 {
	remapped := make(map[engine.TermId]float64, len(features))
	for term, weight := range features {
		target := term
		if mapped, ok := m.mapping[term]; ok {
			target = mapped
		}
		remapped[target] += weight
	}
	return m.base.Score(remapped)
}
