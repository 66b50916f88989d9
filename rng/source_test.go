package rng

import (
	"math"
	"testing"
)

func TestSource_Determinism(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 1000; i++ {
		av, bv := a.Uniform(), b.Uniform()
		if av != bv {
			t.Fatalf(UnequalFloatParameterError, "draw", av, bv)
		}
	}
}

const UnequalFloatParameterError = "expected %s %f, instead got %f"

func TestSource_UniformRange(t *testing.T) {
	s := New(1)
	for i := 0; i < 1000; i++ {
		v := s.UniformRange(5, 10)
		if v < 5 || v >= 10 {
			t.Errorf("UniformRange(5,10) produced out-of-range value %f", v)
		}
	}
}

func TestSource_Binomial_Bounds(t *testing.T) {
	s := New(7)
	for i := 0; i < 1000; i++ {
		v := s.Binomial(20, 0.3)
		if v < 0 || v > 20 {
			t.Errorf("Binomial(20,0.3) produced out-of-range value %d", v)
		}
	}
}

func TestSource_Poisson_MeanApprox(t *testing.T) {
	s := New(99)
	lambda := 5.0
	n := 200000
	sum := 0
	for i := 0; i < n; i++ {
		sum += s.Poisson(lambda)
	}
	mean := float64(sum) / float64(n)
	if math.Abs(mean-lambda) > 0.05 {
		t.Errorf("Poisson(%f) mean over %d draws was %f, too far from lambda", lambda, n, mean)
	}
}

func TestSource_Geometric_NonNegative(t *testing.T) {
	s := New(3)
	for i := 0; i < 1000; i++ {
		if v := s.Geometric(0.4); v < 0 {
			t.Errorf("Geometric(0.4) produced negative value %d", v)
		}
	}
}
