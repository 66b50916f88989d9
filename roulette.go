package epiworld

import "github.com/epiworld-go/epiworld/rng"

// Roulette implements the weighted at-most-one sampler of spec.md S4.5.
// Given independent Bernoulli probabilities probs[0..k), it returns -1
// ("none succeeded") or exactly one index, distributed as P(exactly i
// succeeds | at most one succeeds or none).
//
// scratch, when non-nil, is reused as the qi working buffer instead of
// allocating a new slice; callers on the hot path (the per-day update
// loop) should pass one of the Model's scratch arenas (spec.md S5).
func Roulette(probs []float64, src *rng.Source, scratch []float64) int {
	if len(probs) == 0 {
		return -1
	}

	p0 := 1.0
	var certain []int
	for i, p := range probs {
		if p >= 1-NumericFloor {
			certain = append(certain, i)
			continue
		}
		p0 *= 1 - p
	}

	if len(certain) > 0 {
		if len(certain) == 1 {
			return certain[0]
		}
		return certain[src.Intn(len(certain))]
	}

	if p0 >= 1-NumericFloor {
		return -1
	}

	qs := scratch
	if cap(qs) < len(probs) {
		qs = make([]float64, len(probs))
	} else {
		qs = qs[:len(probs)]
	}

	denom := p0
	for i, p := range probs {
		q := p * p0 / (1 - p)
		qs[i] = q
		denom += q
	}

	u := src.Uniform()
	if u < p0/denom {
		return -1
	}
	cum := p0 / denom
	for i, q := range qs {
		cum += q / denom
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}
