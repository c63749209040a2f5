// Package chance applies per-instance spawn probabilities to a config.
package chance

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/DrSkyle/gridspawn/pkg/template"
)

// NewSource returns the source used when a caller has no seed preference.
// Runs stay reproducible for a given seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Filter returns a copy of cfg where each template's quantity is replaced
// by the number of accepted Bernoulli trials, one per requested instance.
// Templates with no accepted instance are dropped, and the copy is marked
// Filtered so that an empty result still validates. cfg is not modified and
// src is the only randomness consumed; a nil src behaves as NewSource(0).
func Filter(cfg *template.SpawnConfig, src rand.Source) *template.SpawnConfig {
	if src == nil {
		src = NewSource(0)
	}
	out := cfg.Clone()
	kept := out.Templates[:0]
	for _, t := range out.Templates {
		accepted := Accepted(t.Quantity, t.Chance(), src)
		if accepted == 0 {
			continue
		}
		t.Quantity = accepted
		kept = append(kept, t)
	}
	out.Templates = kept
	out.Filtered = true
	return out
}

// Accepted runs n independent trials with success probability p on src.
// p outside [0, 1] is clamped.
func Accepted(n int, p float64, src rand.Source) int {
	switch {
	case n <= 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	b := distuv.Bernoulli{P: p, Src: src}
	accepted := 0
	for range n {
		if b.Rand() == 1 {
			accepted++
		}
	}
	return accepted
}
