package ranking

import (
	"testing"

	"github.com/corvid-labs/eventindex/internal/engine"
)

func TestDirectModelScoreAppliesCoefficients(t *testing.T) {
	model := NewDirectModel(map[engine.TermId]float64{1: 2.0, 2: 0.5})
	score := model.Score(map[engine.TermId]float64{1: 10.0, 2: 4.0})

	want := 2.0*10.0 + 0.5*4.0
	if score != want {
		t.Errorf("Score() = %v, want %v", score, want)
	}
}

func TestDirectModelScoreFallsBackToRawWeight(t *testing.T) {
	model := NewDirectModel(nil)
	score := model.Score(map[engine.TermId]float64{1: 3.0, 2: 4.0})

	if score != 7.0 {
		t.Errorf("Score() = %v, want 7.0 (sum of raw weights)", score)
	}
}

func TestDirectModelCoefficientsAreCopiedDefensively(t *testing.T) {
	coefficients := map[engine.TermId]float64{1: 2.0}
	model := NewDirectModel(coefficients)
	coefficients[1] = 99.0

	score := model.Score(map[engine.TermId]float64{1: 1.0})
	if score != 2.0 {
		t.Errorf("Score() = %v, want 2.0 (mutating the caller's map must not affect the model)", score)
	}
}
