// Package epiworld is the core of a general-purpose agent-based
// epidemiological simulation engine: a closed population of agents
// connected by a static contact graph, carrying at most one active
// virus and any number of protective tools, advanced in integer
// day-steps under a pluggable set of per-state updaters.
package epiworld

import (
	"time"

	"github.com/pkg/errors"

	"github.com/epiworld-go/epiworld/db"
	"github.com/epiworld-go/epiworld/graph"
	"github.com/epiworld-go/epiworld/rng"
)

// UpdateFunc advances one agent's state for the current day. It is
// invoked only when the agent's activation-mask entry is positive
// (spec.md S4.7), unless ModelConfig.DisableQueueing is set. reset()
// and the distribute() pass never call updaters.
type UpdateFunc func(a *Agent, m *Model)

// HookFunc runs once per scheduled day against the whole model (global
// hooks, e.g. periodic vaccination campaigns or policy changes).
type HookFunc struct {
	Name string
	Day  int // -1 means "every day"
	Run  func(m *Model)
}

// RewirePolicy rewires proportion of the graph's edges once per day,
// preserving every node's degree (spec.md S4.9 step 2d).
type RewirePolicy struct {
	Proportion float64
}

// ModelConfig is the declarative description of one epidemiological
// model: its states, updaters, global hooks, mixer, and initial-virus
// placement (spec.md S9 redesign flag: one concrete Model plus a
// ModelConfig descriptor, instead of a Model subclass per disease).
type ModelConfig struct {
	NStates      int
	StateLabels  []string
	Updaters     []UpdateFunc // indexed by state id; nil entries have no updater
	GlobalHooks  []HookFunc
	Mixer        Mixer
	SamplingFreq int
	RewirePolicy *RewirePolicy

	// DisableQueueing makes step invoke every agent's updater
	// unconditionally, ignoring the activation mask (spec.md invariant
	// Q2's "off" half). Leave false for the normal queued behavior, where
	// an updater only runs where QueueMask()[i] > 0.
	DisableQueueing bool

	// InitialViruses and InitialTools are distributed during reset(),
	// each via its Distribute callback, in registration order.
	InitialViruses []*VirusPlacement
	InitialTools   []*ToolPlacement

	// PlaceInitialStates runs after virus/tool distribution, for models
	// that assign states directly rather than through a virus attach.
	PlaceInitialStates func(m *Model)
}

// VirusPlacement pairs a VirusDef with the closure that seeds its
// initial prevalence across the population.
type VirusPlacement struct {
	Def       *VirusDef
	Distribute func(m *Model)
}

// ToolPlacement pairs a ToolDef with its initial-prevalence closure.
type ToolPlacement struct {
	Def       *ToolDef
	Distribute func(m *Model)
}

// Model is the single concrete simulation driver (spec.md S4.9). All
// state belongs to exactly one Model; replicate-level parallelism clones
// a Model per worker rather than sharing one across goroutines.
type Model struct {
	config *ModelConfig

	agents   []*Agent
	graph    *graph.AdjList
	entities []*Entity
	params   *ParamTable
	db       *db.Database

	queueMask []int
	events    eventQueue

	rngSrc *rng.Source
	today  int

	nstates int
	mixer   Mixer

	// Debug gates the invariant checks named in spec.md S7/S8; release
	// runs should leave it false for speed.
	Debug bool

	// Scratch arenas reused across steps (spec.md S5); resized only in
	// reset().
	scratchFloats  []float64
	scratchViruses []*VirusInstance
	scratchInts    []int
}

// NewModel wires a population of n agents onto g using cfg as the
// behavioral descriptor. g.Size() must equal n.
func NewModel(cfg *ModelConfig, g *graph.AdjList, n int) (*Model, error) {
	if g.Size() != n {
		return nil, errors.Wrapf(ErrInvalidArgument, "graph has %d nodes, want %d", g.Size(), n)
	}
	if cfg.NStates <= 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "nstates must be positive")
	}
	mixer := cfg.Mixer
	if mixer == nil {
		mixer = DefaultMixer
	}
	samplingFreq := cfg.SamplingFreq
	if samplingFreq <= 0 {
		samplingFreq = 1
	}

	m := &Model{
		config:  cfg,
		graph:   g,
		params:  NewParamTable(),
		nstates: cfg.NStates,
		mixer:   mixer,
	}

	m.agents = make([]*Agent, n)
	for i := 0; i < n; i++ {
		a := NewAgent()
		a.id = i
		a.model = m
		m.agents[i] = a
	}
	m.syncAgentNeighbors()

	m.db = db.New(cfg.NStates, n, samplingFreq)
	m.queueMask = make([]int, n)
	return m, nil
}

// syncAgentNeighbors rebuilds every agent's neighbors/neighborBack slices
// from the current state of m.graph. Called once during construction and
// again after every graph.Rewire pass, so a mutated AdjList is never left
// stale against the adjacency agents/updaters actually read through
// Agent.Neighbors (spec.md S4.2/S4.9 step 2d: rewiring must be visible to
// the agents it reconnects, not just to the underlying graph).
func (m *Model) syncAgentNeighbors() {
	for _, a := range m.agents {
		a.neighbors = a.neighbors[:0]
		a.neighborBack = a.neighborBack[:0]
	}
	for i := 0; i < len(m.agents); i++ {
		for _, nb := range m.graph.Neighbors(i) {
			backSlot := -1
			for s, x := range m.graph.Neighbors(nb) {
				if x == i {
					backSlot = s
					break
				}
			}
			m.agents[i].addNeighbor(nb, backSlot)
		}
	}
}

// AddEntity registers a new, initially empty entity and returns its id.
func (m *Model) AddEntity(name string) int {
	e := NewEntity(name)
	e.id = len(m.entities)
	m.entities = append(m.entities, e)
	return e.id
}

// Params returns the model's global parameter table, used by Param-kind
// probability channels.
func (m *Model) Params() *ParamTable { return m.params }

// DB returns the model's transition-matrix database.
func (m *Model) DB() *db.Database { return m.db }

// Agents returns the population in index order. The returned slice must
// not be mutated by the caller.
func (m *Model) Agents() []*Agent { return m.agents }

// Agent returns the i-th agent.
func (m *Model) Agent(i int) *Agent { return m.agents[i] }

// NumAgents returns the population size.
func (m *Model) NumAgents() int { return len(m.agents) }

// NumStates returns the configured number of states.
func (m *Model) NumStates() int { return m.nstates }

// Today returns the current simulation day.
func (m *Model) Today() int { return m.today }

// RNG returns the model's private RNG source. Every draw that affects
// the trajectory (roulette selection, distribute(), rewiring) must go
// through this Source so replicate determinism holds.
func (m *Model) RNG() *rng.Source { return m.rngSrc }

// QueueMask returns the current activation mask. The returned slice
// must not be mutated by the caller.
func (m *Model) QueueMask() []int { return m.queueMask }

// Mixer returns the model's configured tool-combination rule (DefaultMixer
// unless ModelConfig.Mixer was set), for updaters that need to fold a
// host's carried tools into a virus's raw probability channels.
func (m *Model) Mixer() Mixer { return m.mixer }

// ScratchFloats returns a float64 scratch arena of at least n capacity,
// sized for the current population by reset().
func (m *Model) ScratchFloats() []float64 { return m.scratchFloats }

// ScratchViruses returns the virus-handle scratch arena.
func (m *Model) ScratchViruses() []*VirusInstance { return m.scratchViruses }

// ScratchInts returns the int scratch arena.
func (m *Model) ScratchInts() []int { return m.scratchInts }

// reset implements spec.md S4.9 step 1: clear every agent, the DB, the
// activation mask, and the entity rosters; distribute initial viruses
// and tools; run the optional initial-state placement function; record
// day 0.
func (m *Model) reset(seed int64) error {
	m.today = 0
	m.rngSrc = rng.New(seed)

	n := len(m.agents)
	m.scratchFloats = make([]float64, n)
	m.scratchViruses = make([]*VirusInstance, n)
	m.scratchInts = make([]int, n)

	for _, a := range m.agents {
		a.state = 0
		a.statePrev = 0
		a.stateLastChanged = -1
		a.virus = nil
		a.tools = nil
		a.entities = nil
		a.entityBack = nil
	}
	for _, e := range m.entities {
		e.members = nil
		e.backIdx = nil
	}
	for i := range m.queueMask {
		m.queueMask[i] = 0
	}
	m.db.Reset(n)
	m.events.reset()

	for _, vp := range m.config.InitialViruses {
		if vp.Distribute != nil {
			vp.Distribute(m)
		}
		if err := m.flush(); err != nil {
			return errors.Wrap(err, "flushing virus distribution")
		}
	}
	for _, tp := range m.config.InitialTools {
		if tp.Distribute != nil {
			tp.Distribute(m)
		}
		if err := m.flush(); err != nil {
			return errors.Wrap(err, "flushing tool distribution")
		}
	}
	if m.config.PlaceInitialStates != nil {
		m.config.PlaceInitialStates(m)
		if err := m.flush(); err != nil {
			return errors.Wrap(err, "flushing initial state placement")
		}
	}

	for _, a := range m.agents {
		a.statePrev = a.state
	}
	m.db.Record(0)
	if m.Debug {
		if err := m.db.VerifyInvariants(n); err != nil {
			return errors.Wrap(err, "post-reset invariant check")
		}
	}
	return nil
}

// Run advances the model ndays days from a fresh reset seeded with seed
// (spec.md S4.9).
func (m *Model) Run(ndays int, seed int64) error {
	if err := m.reset(seed); err != nil {
		return err
	}
	for day := 1; day <= ndays; day++ {
		if err := m.step(day); err != nil {
			return errors.Wrapf(err, "day %d", day)
		}
	}
	return nil
}

func (m *Model) step(day int) error {
	for _, a := range m.agents {
		if !m.config.DisableQueueing && m.queueMask[a.id] <= 0 {
			continue
		}
		updater := m.config.Updaters[a.state]
		if updater == nil {
			continue
		}
		updater(a, m)
	}
	if err := m.flush(); err != nil {
		return errors.Wrap(err, "flushing state updates")
	}

	for _, hook := range m.config.GlobalHooks {
		if hook.Day != -1 && hook.Day != day {
			continue
		}
		hook.Run(m)
		if err := m.flush(); err != nil {
			return errors.Wrapf(err, "flushing global hook %q", hook.Name)
		}
	}

	if m.config.RewirePolicy != nil {
		if err := graph.Rewire(m.graph, m.rngSrc, m.config.RewirePolicy.Proportion); err != nil {
			return errors.Wrap(err, "rewiring")
		}
		m.syncAgentNeighbors()
	}

	for _, a := range m.agents {
		a.statePrev = a.state
	}
	m.db.Record(day)
	m.today = day

	if m.Debug {
		if err := m.db.VerifyInvariants(len(m.agents)); err != nil {
			return errors.Wrap(err, "post-record invariant check")
		}
	}

	for _, a := range m.agents {
		if a.virus == nil || a.virus.def.Mutation == nil {
			continue
		}
		if a.virus.def.Mutation(a, a.virus, m) {
			parent := a.virus.id
			a.virus.id = m.db.RegisterVirus(a.virus.def.Name, parent, m.today)
			a.virus.parentID = parent
		}
	}
	return nil
}

// ReplicateResult is the per-replicate product handed to the
// RunMultiple callback.
type ReplicateResult struct {
	Index    int
	Seed     int64
	Model    *Model
	Elapsed  time.Duration
	Err      error
}

// RunMultiple runs nreplicates independent replicates, each seeded from
// a sub-seed drawn off the top-level RNG (spec.md S4.9). callback is
// invoked once per completed replicate, typically to persist results.
// When parallel is true, replicates are partitioned across a worker
// pool, and each replicate runs on its own fresh Clone (with its own
// copy of the graph); no state is shared between workers beyond the
// read-only ModelConfig.
func (m *Model) RunMultiple(ndays, nreplicates int, seed int64, parallel bool, callback func(ReplicateResult)) error {
	master := rng.New(seed)
	subSeeds := make([]int64, nreplicates)
	for i := range subSeeds {
		subSeeds[i] = int64(master.Intn(1 << 62))
	}

	if !parallel {
		for i := 0; i < nreplicates; i++ {
			start := time.Now()
			err := m.Run(ndays, subSeeds[i])
			callback(ReplicateResult{Index: i, Seed: subSeeds[i], Model: m, Elapsed: time.Since(start), Err: err})
			if err != nil {
				return errors.Wrapf(err, "replicate %d", i)
			}
		}
		return nil
	}

	workers := min(nreplicates, maxWorkers())
	jobs := make(chan int, nreplicates)
	results := make(chan ReplicateResult, nreplicates)
	for i := 0; i < nreplicates; i++ {
		jobs <- i
	}
	close(jobs)

	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				clone := m.Clone()
				start := time.Now()
				err := clone.Run(ndays, subSeeds[i])
				results <- ReplicateResult{Index: i, Seed: subSeeds[i], Model: clone, Elapsed: time.Since(start), Err: err}
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	close(results)
	for r := range results {
		callback(r)
		if r.Err != nil {
			return errors.Wrapf(r.Err, "replicate %d", r.Index)
		}
	}
	return nil
}

func maxWorkers() int { return 8 }

// Clone deep-copies the model's graph and entity registry (names only;
// memberships start empty) into a fresh Model that shares the read-only
// config and has its own agents, DB, and activation mask, ready for an
// independent reset+run (spec.md S4.9,
// S5: "each worker owns its own Model; RNG state is not shared").
func (m *Model) Clone() *Model {
	// m.graph is deep-copied, not shared: a RewirePolicy mutates its
	// Model's graph in place every step, and RunMultiple's parallel
	// workers each run their own clone concurrently. Sharing the AdjList
	// pointer here would make every worker's graph.Rewire call race on
	// the same neighbor slices.
	clone, err := NewModel(m.config, m.graph.Clone(), len(m.agents))
	if err != nil {
		// The source Model already validated these invariants at
		// construction; a failure here would mean internal corruption.
		panic(err)
	}
	clone.Debug = m.Debug
	for _, e := range m.entities {
		clone.AddEntity(e.name)
	}
	for i, src := range m.agents {
		dst := clone.agents[i]
		dst.state = src.state
		dst.statePrev = src.statePrev
		dst.stateLastChanged = src.stateLastChanged
	}
	return clone
}
