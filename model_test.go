package epiworld

import (
	"reflect"
	"testing"

	"github.com/epiworld-go/epiworld/graph"
	"github.com/epiworld-go/epiworld/rng"
)

const (
	unexpectedErrorWhileError = "encountered error while %s: %s"
	unequalIntParameterError  = "expected %s %d, instead got %d"
)

const (
	stateSusceptible = 0
	stateInfected    = 1
	stateRecovered   = 2
)

func newSIRConfig(virusDef *VirusDef) *ModelConfig {
	susceptibleUpdater := func(a *Agent, m *Model) {
		var probs []float64
		var sources []*Agent
		for _, nbID := range a.Neighbors() {
			nb := m.Agent(nbID)
			if nb.State() != stateInfected || !nb.HasVirus() {
				continue
			}
			probs = append(probs, nb.Virus().ProbInfecting(nb, m))
			sources = append(sources, nb)
		}
		if len(probs) == 0 {
			return
		}
		idx := Roulette(probs, m.RNG(), m.ScratchFloats())
		if idx < 0 {
			return
		}
		src := sources[idx]
		newState := stateInfected
		inst := NewVirusInstance(virusDef)
		if err := a.SetVirus(inst, &newState, nil); err != nil {
			return
		}
		m.db.RecordTransmission(m.Today(), src.ID(), a.ID(), 0, src.Virus().DateAcquired())
	}

	infectedUpdater := func(a *Agent, m *Model) {
		p := a.Virus().ProbRecovery(a, m)
		if m.RNG().Uniform() < p {
			newState := stateRecovered
			qNone := QueueEffect(-Everyone)
			_ = a.RemoveVirus(&newState, &qNone)
		}
	}

	updaters := make([]UpdateFunc, 3)
	updaters[stateSusceptible] = susceptibleUpdater
	updaters[stateInfected] = infectedUpdater

	return &ModelConfig{
		NStates:     3,
		StateLabels: []string{"susceptible", "infected", "recovered"},
		Updaters:    updaters,
		InitialViruses: []*VirusPlacement{
			{
				Def: virusDef,
				Distribute: func(m *Model) {
					newState := stateInfected
					q := QueueEffect(Everyone)
					_ = m.Agent(0).SetVirus(NewVirusInstance(virusDef), &newState, &q)
				},
			},
		},
	}
}

func TestModel_SIRSmallWorldInvariants(t *testing.T) {
	n := 500
	vdef := NewVirusDef("flu")
	vdef.ProbInfecting = Constant(0.3)
	vdef.ProbRecovery = Constant(0.2)
	vdef.StateOnAttach = stateInfected
	vdef.QueueOnAttach = Everyone
	vdef.StateOnClear = stateRecovered
	vdef.QueueOnClear = -Everyone

	cfg := newSIRConfig(vdef)
	g, err := graph.SmallWorld(n, 4, 0.1, false, rng.New(21))
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building small-world graph", err)
	}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	m.Debug = true

	if err := m.Run(60, 42); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running model", err)
	}

	if err := m.DB().VerifyInvariants(n); err != nil {
		t.Errorf(unexpectedErrorWhileError, "verifying invariants", err)
	}
}

func TestModel_Determinism(t *testing.T) {
	n := 200
	build := func() (*Model, error) {
		g, err := graph.SmallWorld(n, 4, 0.1, false, rng.New(21))
		if err != nil {
			return nil, err
		}
		vdef := NewVirusDef("flu")
		vdef.ProbInfecting = Constant(0.3)
		vdef.ProbRecovery = Constant(0.2)
		vdef.StateOnAttach = stateInfected
		vdef.QueueOnAttach = Everyone
		vdef.StateOnClear = stateRecovered
		vdef.QueueOnClear = -Everyone
		cfg := newSIRConfig(vdef)
		return NewModel(cfg, g, n)
	}

	m1, err := build()
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model 1", err)
	}
	m2, err := build()
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model 2", err)
	}

	if err := m1.Run(30, 7); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running model 1", err)
	}
	if err := m2.Run(30, 7); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running model 2", err)
	}

	h1, h2 := m1.DB().StateHistory(), m2.DB().StateHistory()
	if !reflect.DeepEqual(h1, h2) {
		t.Errorf("two identically-seeded runs produced different state histories")
	}
}

func TestModel_EmptyRunHoldsPopulation(t *testing.T) {
	n := 50
	g, err := graph.RingLattice(n, 2, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building ring lattice", err)
	}
	cfg := &ModelConfig{NStates: 2, Updaters: make([]UpdateFunc, 2)}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	m.Debug = true
	if err := m.Run(10, 1); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running model", err)
	}
	total := m.DB().TodayTotal()
	if total[0] != n {
		t.Errorf(unequalIntParameterError, "state-0 population", n, total[0])
	}
}

func TestModel_RunMultiple_Parallel(t *testing.T) {
	n := 100
	build := func() (*Model, error) {
		g, err := graph.SmallWorld(n, 4, 0.1, false, rng.New(21))
		if err != nil {
			return nil, err
		}
		vdef := NewVirusDef("flu")
		vdef.ProbInfecting = Constant(0.4)
		vdef.ProbRecovery = Constant(0.3)
		vdef.StateOnAttach = stateInfected
		vdef.QueueOnAttach = Everyone
		vdef.StateOnClear = stateRecovered
		vdef.QueueOnClear = -Everyone
		cfg := newSIRConfig(vdef)
		return NewModel(cfg, g, n)
	}

	base, err := build()
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing base model", err)
	}

	results := make([]ReplicateResult, 0, 4)
	err = base.RunMultiple(20, 4, 99, true, func(r ReplicateResult) {
		results = append(results, r)
	})
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running replicates", err)
	}
	if len(results) != 4 {
		t.Errorf(unequalIntParameterError, "replicate count", 4, len(results))
	}
	for _, r := range results {
		if err := r.Model.DB().VerifyInvariants(n); err != nil {
			t.Errorf(unexpectedErrorWhileError, "verifying replicate invariants", err)
		}
	}
}

func TestModel_RewirePolicy_UpdatesAgentNeighbors(t *testing.T) {
	n := 200
	g, err := graph.RingLattice(n, 4, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building ring lattice", err)
	}
	cfg := &ModelConfig{
		NStates:      1,
		Updaters:     make([]UpdateFunc, 1),
		RewirePolicy: &RewirePolicy{Proportion: 1.0},
	}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}

	before := make([][]int, n)
	for i, a := range m.Agents() {
		before[i] = append([]int(nil), a.Neighbors()...)
	}

	if err := m.Run(1, 11); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running model", err)
	}

	changed := false
	for i, a := range m.Agents() {
		after := a.Neighbors()
		if len(after) != len(before[i]) {
			changed = true
			break
		}
		for j := range after {
			if after[j] != before[i][j] {
				changed = true
			}
		}
	}
	if !changed {
		t.Error("RewirePolicy ran but Agent.Neighbors() is unchanged from construction-time topology")
	}
}

func TestModel_Clone_DoesNotShareGraph(t *testing.T) {
	n := 50
	g, err := graph.RingLattice(n, 4, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building ring lattice", err)
	}
	cfg := &ModelConfig{
		NStates:      1,
		Updaters:     make([]UpdateFunc, 1),
		RewirePolicy: &RewirePolicy{Proportion: 1.0},
	}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	clone := m.Clone()
	if clone.graph == m.graph {
		t.Fatal("Clone shares the same *graph.AdjList pointer as its source")
	}

	before := make([][]int, n)
	for i := 0; i < n; i++ {
		before[i] = append([]int(nil), m.graph.Neighbors(i)...)
	}

	if err := clone.Run(5, 3); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running clone", err)
	}

	// The source model's own graph must be untouched by the clone's rewiring.
	for i := 0; i < n; i++ {
		after := m.graph.Neighbors(i)
		if len(after) != len(before[i]) {
			t.Fatalf("source graph's neighbor count at node %d changed after running an unrelated clone", i)
		}
		for j := range after {
			if after[j] != before[i][j] {
				t.Errorf("source graph's neighbor list at node %d changed after running an unrelated clone", i)
			}
		}
	}
}

func TestModel_Step_QueueMaskGatesUpdatersUnlessDisabled(t *testing.T) {
	n := 10
	g, err := graph.RingLattice(n, 2, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building graph", err)
	}

	calls := 0
	updaters := make([]UpdateFunc, 1)
	updaters[0] = func(a *Agent, m *Model) { calls++ }

	cfg := &ModelConfig{NStates: 1, Updaters: updaters}
	m, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	// No InitialViruses/InitialTools ever touch the queue mask, so with
	// queueing on (the default) no agent's updater should ever run.
	if err := m.Run(3, 1); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running model", err)
	}
	if calls != 0 {
		t.Errorf(unequalIntParameterError, "updater invocations with queueing on", 0, calls)
	}

	cfg.DisableQueueing = true
	m2, err := NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	if err := m2.Run(3, 1); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running model", err)
	}
	want := n * 3
	if calls != want {
		t.Errorf(unequalIntParameterError, "updater invocations with queueing disabled", want, calls)
	}
}
