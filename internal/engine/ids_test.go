package engine

import (
	"math"
	"testing"
)

func TestTermWeightValid(t *testing.T) {
	cases := []struct {
		name string
		w    TermWeight
		want bool
	}{
		{"zero", 0, true},
		{"positive", 1.5, true},
		{"negative", -0.5, false},
		{"nan", TermWeight(math.NaN()), false},
		{"inf", TermWeight(math.Inf(1)), false},
		{"neg_inf", TermWeight(math.Inf(-1)), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.w.Valid(); got != c.want {
				t.Errorf("TermWeight(%v).Valid() = %v, want %v", c.w, got, c.want)
			}
		})
	}
}
