package graph

import (
	"testing"

	"github.com/epiworld-go/epiworld/rng"
)

func TestRingLattice_Degree(t *testing.T) {
	g, err := RingLattice(1000, 4, false)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "building ring lattice", err)
	}
	for i := 0; i < g.Size(); i++ {
		if d := g.Degree(i); d != 4 {
			t.Errorf(UnequalIntParameterError, "degree", 4, d)
		}
	}
}

const (
	UnexpectedErrorWhileError = "encountered error while %s: %s"
	UnequalIntParameterError  = "expected %s %d, instead got %d"
)

func TestRewire_PreservesDegree(t *testing.T) {
	g, err := RingLattice(1000, 4, false)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "building ring lattice", err)
	}
	before := DegreeHistogram(g)
	src := rng.New(7)
	if err := Rewire(g, src, 0.5); err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "rewiring", err)
	}
	after := DegreeHistogram(g)
	if len(before) != len(after) {
		t.Fatalf("degree histogram bucket count changed: %d vs %d", len(before), len(after))
	}
	for deg, count := range before {
		if after[deg] != count {
			t.Errorf("degree %d count changed from %d to %d after rewire", deg, count, after[deg])
		}
	}
}

func TestRewire_DisconnectedGraphFails(t *testing.T) {
	g := NewAdjList(10, false)
	src := rng.New(1)
	if err := Rewire(g, src, 0.1); err == nil {
		t.Errorf(ExpectedErrorWhileError, "rewiring a fully disconnected graph")
	}
}

const ExpectedErrorWhileError = "expected an error while %s, instead got none"

func TestBernoulli_NoSelfLoops(t *testing.T) {
	src := rng.New(3)
	g := Bernoulli(200, 0.05, false, src)
	for i := 0; i < g.Size(); i++ {
		for _, n := range g.Neighbors(i) {
			if n == i {
				t.Errorf("node %d has a self loop", i)
			}
		}
	}
}

func TestAddEdge_OutOfRange(t *testing.T) {
	g := NewAdjList(5, true)
	if err := g.AddEdge(0, 10); err == nil {
		t.Errorf(ExpectedErrorWhileError, "adding an out-of-range edge")
	}
}

func TestAdjList_Clone_IsIndependent(t *testing.T) {
	g, err := RingLattice(20, 4, false)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "building ring lattice", err)
	}
	clone := g.Clone()

	src := rng.New(5)
	if err := Rewire(clone, src, 1.0); err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "rewiring the clone", err)
	}

	same := true
	for i := 0; i < g.Size(); i++ {
		orig := g.Neighbors(i)
		rewired := clone.Neighbors(i)
		if len(orig) != len(rewired) {
			same = false
			break
		}
		for j := range orig {
			if orig[j] != rewired[j] {
				same = false
			}
		}
	}
	if same {
		t.Error("rewiring a clone changed the original graph's neighbor lists")
	}
}
