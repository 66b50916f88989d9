// Command epiworld runs one TOML-described simulation (config.Load) to
// completion and writes its report. Grounded on the teacher's
// bin/contagion/main.go: a flat flag.* CLI around a single config file,
// looping replicates and logging progress with timing.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	epiworld "github.com/epiworld-go/epiworld"
	"github.com/epiworld-go/epiworld/config"
	"github.com/epiworld-go/epiworld/graph"
	"github.com/epiworld-go/epiworld/report"
	"github.com/epiworld-go/epiworld/rng"
	"github.com/epiworld-go/epiworld/runner"
)

const (
	stateSusceptible = 0
	stateInfected    = 1
	stateRecovered   = 2
)

func main() {
	seed := flag.Int64("seed", 0, "override simulation.seed (0 keeps the config value)")
	replicates := flag.Int("replicates", 0, "override simulation.replicates (0 keeps the config value)")
	parallel := flag.Bool("parallel", false, "override simulation.parallel to true")
	loggerBackend := flag.String("logger", "", "override logging.backend (csv|sqlite)")
	outPath := flag.String("out", "", "override logging.path")
	verbose := flag.Bool("verbose", false, "enable debug-level logging and per-day invariant checks")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("usage: epiworld [flags] <config.toml>")
		flag.Usage()
		os.Exit(2)
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *replicates != 0 {
		cfg.Simulation.Replicates = *replicates
	}
	if *parallel {
		cfg.Simulation.Parallel = true
	}
	if *loggerBackend != "" {
		cfg.Logging.Backend = *loggerBackend
	}
	if *outPath != "" {
		cfg.Logging.Path = *outPath
	}

	g, err := buildGraph(cfg)
	if err != nil {
		log.WithError(err).Fatal("building contact graph")
	}

	mcfg, virusNames, toolNames := buildModelConfig(cfg)
	m, err := epiworld.NewModel(mcfg, g, cfg.Population.Size)
	if err != nil {
		log.WithError(err).Fatal("constructing model")
	}
	m.Debug = *verbose

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.WithError(err).Fatal("opening report logger")
	}
	defer logger.Close()

	labels := func(state int) string {
		if state < 0 || state >= len(mcfg.StateLabels) {
			return fmt.Sprintf("%d", state)
		}
		return mcfg.StateLabels[state]
	}
	virusName := func(id int) string { return nameOrFallback(virusNames, id) }
	toolName := func(id int) string { return nameOrFallback(toolNames, id) }

	err = runner.RunMultiple(m, cfg.Simulation.Days, cfg.Simulation.Replicates, cfg.Simulation.Seed, cfg.Simulation.Parallel,
		func(r epiworld.ReplicateResult) {
			if r.Err != nil {
				return
			}
			if err := report.WriteAll(logger, r.Model.DB(), labels, virusName, toolName); err != nil {
				log.WithError(err).WithField("replicate", r.Index).Error("writing report")
			}
		})
	if err != nil {
		log.WithError(err).Fatal("running simulation")
	}
}

func nameOrFallback(names map[int]string, id int) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("unknown-%d", id)
}

func newLogger(cfg config.LoggingConfig) (report.DataLogger, error) {
	switch cfg.Backend {
	case "sqlite":
		return report.NewSQLiteLogger(cfg.Path)
	default:
		return report.NewCSVLogger(cfg.Path), nil
	}
}

func buildGraph(cfg *config.Config) (*graph.AdjList, error) {
	n := cfg.Population.Size
	gc := cfg.Graph
	switch gc.Generator {
	case "ring_lattice":
		return graph.RingLattice(n, gc.K, gc.Directed)
	case "small_world":
		return graph.SmallWorld(n, gc.K, gc.P, gc.Directed, rng.New(cfg.Simulation.Seed))
	case "bernoulli":
		return graph.Bernoulli(n, gc.P, gc.Directed, rng.New(cfg.Simulation.Seed)), nil
	case "edge_list":
		return graph.LoadEdgeList(gc.EdgeList, n, gc.Directed)
	default:
		return nil, fmt.Errorf("unknown graph generator %q", gc.Generator)
	}
}

// buildModelConfig generalizes model_test.go's newSIRConfig from one
// hardcoded virus to every virus.Config entry in cfg, sharing a single
// susceptible/infected/recovered state space across all of them: a
// susceptible host rolls one roulette draw over every infectious
// neighbor regardless of which virus that neighbor carries.
func buildModelConfig(cfg *config.Config) (mcfg *epiworld.ModelConfig, virusNames, toolNames map[int]string) {
	virusDefs := make([]*epiworld.VirusDef, len(cfg.Viruses))
	for i, vc := range cfg.Viruses {
		def := epiworld.NewVirusDef(vc.Name)
		def.ProbInfecting = epiworld.Constant(vc.ProbInfecting)
		def.ProbRecovery = epiworld.Constant(vc.ProbRecovery)
		def.ProbDeath = epiworld.Constant(vc.ProbDeath)
		def.Incubation = epiworld.Constant(vc.IncubationDays)
		def.StateOnAttach = stateInfected
		def.QueueOnAttach = epiworld.Everyone
		def.StateOnClear = stateRecovered
		def.QueueOnClear = -epiworld.Everyone
		def.StateOnRemoval = stateRecovered
		def.QueueOnRemoval = -epiworld.Everyone
		virusDefs[i] = def
	}

	toolDefs := make([]*epiworld.ToolDef, len(cfg.Tools))
	for i, tc := range cfg.Tools {
		def := epiworld.NewToolDef(tc.Name)
		def.ReduceInfecting = epiworld.Constant(tc.ReduceInfecting)
		def.ReduceRecovery = epiworld.Constant(tc.ReduceRecovery)
		def.ReduceDeath = epiworld.Constant(tc.ReduceDeath)
		def.ReduceSusceptibility = epiworld.Constant(tc.ReduceSusceptibility)
		def.StateOnAttach = epiworld.UnchangedState
		def.QueueOnAttach = epiworld.NoOne
		toolDefs[i] = def
	}

	susceptibleUpdater := func(a *epiworld.Agent, m *epiworld.Model) {
		var probs []float64
		var sources []*epiworld.Agent
		for _, nbID := range a.Neighbors() {
			nb := m.Agent(nbID)
			if nb.State() != stateInfected || !nb.HasVirus() {
				continue
			}
			raw := nb.Virus().ProbInfecting(nb, m)
			_, trans, _, _ := m.Mixer()(nb, nb.Virus(), m)
			susc, _, _, _ := m.Mixer()(a, nb.Virus(), m)
			effective := raw * (1 - trans) * (1 - susc)
			probs = append(probs, effective)
			sources = append(sources, nb)
		}
		if len(probs) == 0 {
			return
		}
		idx := epiworld.Roulette(probs, m.RNG(), m.ScratchFloats())
		if idx < 0 {
			return
		}
		src := sources[idx]
		newState := stateInfected
		inst := epiworld.NewVirusInstance(src.Virus().Def())
		if err := a.SetVirus(inst, &newState, nil); err != nil {
			return
		}
		m.DB().RecordTransmission(m.Today(), src.ID(), a.ID(), src.Virus().ID(), src.Virus().DateAcquired())
	}

	infectedUpdater := func(a *epiworld.Agent, m *epiworld.Model) {
		v := a.Virus()
		if v == nil {
			return
		}
		_, _, recov, death := m.Mixer()(a, v, m)
		deathProb := v.ProbDeath(a, m) * (1 - death)
		if m.RNG().Uniform() < deathProb {
			newState := stateRecovered
			_ = a.RemoveAgentByVirus(&newState, nil)
			return
		}
		recoverProb := v.ProbRecovery(a, m)
		recoverProb += (1 - recoverProb) * recov
		if m.RNG().Uniform() < recoverProb {
			newState := stateRecovered
			qNone := epiworld.QueueEffect(-epiworld.Everyone)
			_ = a.RemoveVirus(&newState, &qNone)
		}
	}

	updaters := make([]epiworld.UpdateFunc, 3)
	updaters[stateSusceptible] = susceptibleUpdater
	updaters[stateInfected] = infectedUpdater

	initialViruses := make([]*epiworld.VirusPlacement, len(virusDefs))
	virusNames = make(map[int]string, len(virusDefs))
	for i, def := range virusDefs {
		def := def
		prevalence := cfg.Viruses[i].InitialPrevalence
		initialViruses[i] = &epiworld.VirusPlacement{
			Def: def,
			Distribute: func(m *epiworld.Model) {
				for _, id := range distinctSample(m, prevalence) {
					newState := stateInfected
					q := epiworld.QueueEffect(epiworld.Everyone)
					_ = m.Agent(id).SetVirus(epiworld.NewVirusInstance(def), &newState, &q)
				}
			},
		}
	}

	initialTools := make([]*epiworld.ToolPlacement, len(toolDefs))
	toolNames = make(map[int]string, len(toolDefs))
	for i, def := range toolDefs {
		def := def
		prevalence := cfg.Tools[i].InitialPrevalence
		initialTools[i] = &epiworld.ToolPlacement{
			Def: def,
			Distribute: func(m *epiworld.Model) {
				for _, id := range distinctSample(m, prevalence) {
					_ = m.Agent(id).AddTool(epiworld.NewToolInstance(def), nil, nil)
				}
			},
		}
	}

	mcfg = &epiworld.ModelConfig{
		NStates:        3,
		StateLabels:    []string{"susceptible", "infected", "recovered"},
		Updaters:       updaters,
		SamplingFreq:   cfg.Simulation.SamplingFreq,
		InitialViruses: initialViruses,
		InitialTools:   initialTools,
	}
	if cfg.Simulation.RewireProportion > 0 {
		mcfg.RewirePolicy = &epiworld.RewirePolicy{Proportion: cfg.Simulation.RewireProportion}
	}

	// Names are resolved after registration: RegisterVirus/RegisterTool
	// assign ids in distribution order starting at 0, matching the order
	// initialViruses/initialTools are walked during reset().
	for i, vc := range cfg.Viruses {
		virusNames[i] = vc.Name
	}
	for i, tc := range cfg.Tools {
		toolNames[i] = tc.Name
	}
	return mcfg, virusNames, toolNames
}

// distinctSample draws prevalence*n (rounded to nearest) distinct agent ids using
// the model's own RNG source, so the selection is part of the deterministic
// per-seed trajectory (spec.md S1) rather than a side channel.
func distinctSample(m *epiworld.Model, prevalence float64) []int {
	n := m.NumAgents()
	count := int(prevalence*float64(n) + 0.5)
	if count <= 0 {
		return nil
	}
	if count > n {
		count = n
	}
	chosen := make(map[int]bool, count)
	ids := make([]int, 0, count)
	for len(ids) < count {
		id := m.RNG().Intn(n)
		if chosen[id] {
			continue
		}
		chosen[id] = true
		ids = append(ids, id)
	}
	return ids
}
