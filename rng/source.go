// Package rng provides the seeded pseudo-random facade consumed by every
// other package in this module (spec.md S4.1). A Source wraps its own
// *rand.Rand instance: no package-level generator is ever touched, so
// replicate-level parallelism (see the runner package) can hand each
// worker goroutine an independent Source without any shared mutable
// state crossing a goroutine boundary.
package rng

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Source is a deterministic draw facade. Identical seeds on identical
// builds yield identical draw sequences, which is what makes replicate
// determinism (spec.md S4.9) possible.
type Source struct {
	r *rand.Rand
}

// New creates a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Seed replaces the underlying generator state, discarding prior draws.
func (s *Source) Seed(seed int64) {
	s.r = rand.New(rand.NewSource(seed))
}

// Uniform draws from Uniform(0,1).
func (s *Source) Uniform() float64 {
	return s.r.Float64()
}

// UniformRange draws from Uniform(a,b).
func (s *Source) UniformRange(a, b float64) float64 {
	return a + (b-a)*s.r.Float64()
}

// Normal draws from Normal(mu, sigma).
func (s *Source) Normal(mu, sigma float64) float64 {
	return s.r.NormFloat64()*sigma + mu
}

// Exponential draws from Exponential(lambda), lambda > 0.
func (s *Source) Exponential(lambda float64) float64 {
	return s.r.ExpFloat64() / lambda
}

// Gamma draws from Gamma(alpha, beta) using Marsaglia-Tsang squeeze
// for alpha >= 1, boosted by a Uniform^(1/alpha) correction for alpha < 1.
func (s *Source) Gamma(alpha, beta float64) float64 {
	if alpha <= 0 || beta <= 0 {
		return 0
	}
	if alpha < 1 {
		u := s.Uniform()
		return s.Gamma(alpha+1, beta) * math.Pow(u, 1/alpha)
	}
	d := alpha - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = s.r.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := s.Uniform()
		if u < 1-0.0331*x*x*x*x {
			return d * v / beta
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v / beta
		}
	}
}

// LogNormal draws from LogNormal(mu, sigma).
func (s *Source) LogNormal(mu, sigma float64) float64 {
	return math.Exp(s.Normal(mu, sigma))
}

// Binomial draws from Binomial(n, p) by summing n Bernoulli trials, the
// same direct approach randomvariate.Binomial takes for moderate n.
func (s *Source) Binomial(n int, p float64) int {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	count := 0
	for i := 0; i < n; i++ {
		if s.Uniform() < p {
			count++
		}
	}
	return count
}

// NegativeBinomial draws the number of failures before the r-th success,
// each trial succeeding with probability p.
func (s *Source) NegativeBinomial(r int, p float64) int {
	if r <= 0 {
		return 0
	}
	failures, successes := 0, 0
	for successes < r {
		if s.Uniform() < p {
			successes++
		} else {
			failures++
		}
	}
	return failures
}

// Geometric draws the number of failures before the first success with
// per-trial probability p, using the inverse-CDF shortcut.
func (s *Source) Geometric(p float64) int {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 0
	}
	u := s.Uniform()
	return int(math.Floor(math.Log(1-u) / math.Log(1-p)))
}

// Poisson draws from Poisson(lambda) using Knuth's multiplicative
// algorithm for small lambda and a normal approximation above 30, the
// same split point randomvariate.Poisson uses.
func (s *Source) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	if lambda > 30 {
		v := int(math.Round(s.Normal(lambda, math.Sqrt(lambda))))
		if v < 0 {
			return 0
		}
		return v
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= s.Uniform()
		if p <= l {
			break
		}
	}
	return k - 1
}

// Perm returns a pseudo-random permutation of [0,n).
func (s *Source) Perm(n int) []int {
	return s.r.Perm(n)
}

// Intn draws a uniform integer in [0,n).
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic(errors.Errorf("rng: Intn called with non-positive n=%d", n))
	}
	return s.r.Intn(n)
}

// Shuffle permutes the first n elements of the slice indexed by swap in
// place, mirroring rand.Rand.Shuffle's Fisher-Yates contract.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}
