package epiworld

import (
	"testing"

	"github.com/epiworld-go/epiworld/graph"
)

func TestEvent_AddRemoveVirus_QueueMaskRoundTrips(t *testing.T) {
	n := 10
	g, err := graph.RingLattice(n, 2, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building ring lattice", err)
	}
	cfg := &ModelConfig{NStates: 2, Updaters: make([]UpdateFunc, 2)}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	if err := m.reset(1); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "resetting model", err)
	}

	vdef := NewVirusDef("v")
	vdef.StateOnAttach = 1
	vdef.QueueOnAttach = Everyone
	vdef.StateOnClear = 0
	vdef.QueueOnClear = -Everyone

	a := m.Agent(0)
	if err := a.SetVirus(NewVirusInstance(vdef), nil, nil); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "enqueueing add-virus", err)
	}
	if err := m.flush(); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "flushing", err)
	}
	if a.State() != 1 {
		t.Errorf(unequalIntParameterError, "agent 0 state", 1, a.State())
	}
	for _, nb := range a.Neighbors() {
		if m.queueMask[nb] != 1 {
			t.Errorf(unequalIntParameterError, "neighbor queue mask", 1, m.queueMask[nb])
		}
	}
	if m.queueMask[a.ID()] != 1 {
		t.Errorf(unequalIntParameterError, "self queue mask", 1, m.queueMask[a.ID()])
	}

	if err := a.RemoveVirus(nil, nil); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "enqueueing remove-virus", err)
	}
	if err := m.flush(); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "flushing", err)
	}
	if a.State() != 0 {
		t.Errorf(unequalIntParameterError, "agent 0 state after clear", 0, a.State())
	}
	for i, v := range m.queueMask {
		if v != 0 {
			t.Errorf("queue mask at agent %d is %d after full round trip, want 0", i, v)
		}
	}
}

func TestEvent_SameDaySecondChange_DiagonalLawHolds(t *testing.T) {
	n := 5
	g, err := graph.RingLattice(n, 2, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building ring lattice", err)
	}
	cfg := &ModelConfig{NStates: 3, Updaters: make([]UpdateFunc, 3)}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	if err := m.reset(1); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "resetting model", err)
	}

	a := m.Agent(0)
	s1, s2 := 1, 2
	if err := a.ChangeState(s1, nil); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "enqueueing first change", err)
	}
	if err := a.ChangeState(s2, nil); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "enqueueing second change", err)
	}
	if err := m.flush(); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "flushing", err)
	}

	m.db.Record(0)
	if err := m.db.VerifyInvariants(n); err != nil {
		t.Errorf(unexpectedErrorWhileError, "verifying invariants after same-day double move", err)
	}
	if a.State() != s2 {
		t.Errorf(unequalIntParameterError, "final state", s2, a.State())
	}
}

func TestEntity_AddRemove_BackIndexSymmetry(t *testing.T) {
	n := 4
	g := graph.NewAdjList(n, false)
	cfg := &ModelConfig{NStates: 1, Updaters: make([]UpdateFunc, 1)}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	if err := m.reset(1); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "resetting model", err)
	}
	e := m.AddEntity("household")

	for i := 0; i < n; i++ {
		if err := m.Agent(i).AddEntity(e); err != nil {
			t.Fatalf(unexpectedErrorWhileError, "enqueueing add-entity", err)
		}
	}
	if err := m.flush(); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "flushing", err)
	}
	if got := m.entities[e].Size(); got != n {
		t.Errorf(unequalIntParameterError, "entity size", n, got)
	}

	if err := m.Agent(1).RemoveEntity(e); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "enqueueing remove-entity", err)
	}
	if err := m.flush(); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "flushing", err)
	}
	if got := m.entities[e].Size(); got != n-1 {
		t.Errorf(unequalIntParameterError, "entity size after removal", n-1, got)
	}
	for _, memberID := range m.entities[e].Members() {
		member := m.Agent(memberID)
		found := false
		for _, id := range member.Entities() {
			if id == e {
				found = true
			}
		}
		if !found {
			t.Errorf("agent %d is a member of entity %d but its entity list disagrees", memberID, e)
		}
	}
}
