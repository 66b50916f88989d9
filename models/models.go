// Package models packages the four classical compartmental disease
// shapes (SIR, SIS, SEIR, SIRS) as ready-made epiworld.ModelConfig
// factories, grounded on the teacher's SISimulation/SISSimulation pair
// (si_simulation.go, sis_simulation.go) generalized from one hardcoded
// disease per file into parametrized factories.
//
// Unlike the core epiworld/rng packages, these factories call
// github.com/kentwait/randomvariate's package-level distribution
// functions directly, matching intrahost_process.go's own usage
// (rv.Poisson, rv.Binomial) rather than going through a Model's private
// rng.Source. That means models built here do NOT participate in the
// core's per-seed determinism contract (spec.md S1 names this a
// Non-goal for convenience factories) — see DESIGN.md.
package models

import (
	"github.com/pkg/errors"

	rv "github.com/kentwait/randomvariate"

	epiworld "github.com/epiworld-go/epiworld"
)

// SIRParams configures a susceptible-infected-recovered model.
type SIRParams struct {
	ProbInfecting     float64
	ProbRecovery      float64
	InitialPrevalence float64
}

const (
	sirSusceptible = 0
	sirInfected    = 1
	sirRecovered   = 2
)

func (p SIRParams) validate() error {
	if p.InitialPrevalence <= 0 || p.InitialPrevalence > 1 {
		return errors.Wrap(epiworld.ErrInvalidArgument, "initial prevalence must be in (0,1]")
	}
	return nil
}

// SIR returns a three-state ModelConfig: infection spreads by roulette
// selection over infected neighbors (spec.md S4.5), recovery is a
// Bernoulli trial against ProbRecovery, and recovery is terminal.
func SIR(p SIRParams) (*epiworld.ModelConfig, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	vdef := epiworld.NewVirusDef("sir")
	vdef.ProbInfecting = epiworld.Constant(p.ProbInfecting)
	vdef.ProbRecovery = epiworld.Constant(p.ProbRecovery)
	vdef.StateOnAttach = sirInfected
	vdef.QueueOnAttach = epiworld.Everyone
	vdef.StateOnClear = sirRecovered
	vdef.QueueOnClear = -epiworld.Everyone

	updaters := make([]epiworld.UpdateFunc, 3)
	updaters[sirSusceptible] = susceptibleByRoulette(vdef, sirInfected)
	updaters[sirInfected] = recoverByBernoulli(sirRecovered)

	return &epiworld.ModelConfig{
		NStates:        3,
		StateLabels:    []string{"susceptible", "infected", "recovered"},
		Updaters:       updaters,
		InitialViruses: []*epiworld.VirusPlacement{seedInitialInfections(vdef, sirInfected, p.InitialPrevalence)},
	}, nil
}

// SISParams configures a susceptible-infected-susceptible model, where
// recovery returns the host directly to the susceptible pool.
type SISParams struct {
	ProbInfecting     float64
	ProbRecovery      float64
	InitialPrevalence float64
}

const (
	sisSusceptible = 0
	sisInfected    = 1
)

func (p SISParams) validate() error {
	if p.InitialPrevalence <= 0 || p.InitialPrevalence > 1 {
		return errors.Wrap(epiworld.ErrInvalidArgument, "initial prevalence must be in (0,1]")
	}
	return nil
}

// SIS returns a two-state ModelConfig grounded on sis_simulation.go's
// recurring-infection shape: recovery clears the virus back to state 0
// instead of a terminal recovered state.
func SIS(p SISParams) (*epiworld.ModelConfig, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	vdef := epiworld.NewVirusDef("sis")
	vdef.ProbInfecting = epiworld.Constant(p.ProbInfecting)
	vdef.ProbRecovery = epiworld.Constant(p.ProbRecovery)
	vdef.StateOnAttach = sisInfected
	vdef.QueueOnAttach = epiworld.Everyone
	vdef.StateOnClear = sisSusceptible
	vdef.QueueOnClear = -epiworld.Everyone

	updaters := make([]epiworld.UpdateFunc, 2)
	updaters[sisSusceptible] = susceptibleByRoulette(vdef, sisInfected)
	updaters[sisInfected] = recoverByBernoulli(sisSusceptible)

	return &epiworld.ModelConfig{
		NStates:        2,
		StateLabels:    []string{"susceptible", "infected"},
		Updaters:       updaters,
		InitialViruses: []*epiworld.VirusPlacement{seedInitialInfections(vdef, sisInfected, p.InitialPrevalence)},
	}, nil
}

// SEIRParams configures a susceptible-exposed-infected-recovered model.
// MeanIncubationDays parametrizes a Poisson draw for how long a newly
// exposed host stays non-infectious, matching intrahost_process.go's
// rv.Poisson(fitness)-as-duration idiom.
type SEIRParams struct {
	ProbInfecting      float64
	ProbRecovery       float64
	MeanIncubationDays float64
	InitialPrevalence  float64
}

const (
	seirSusceptible = 0
	seirExposed     = 1
	seirInfected    = 2
	seirRecovered   = 3
)

func (p SEIRParams) validate() error {
	if p.InitialPrevalence <= 0 || p.InitialPrevalence > 1 {
		return errors.Wrap(epiworld.ErrInvalidArgument, "initial prevalence must be in (0,1]")
	}
	if p.MeanIncubationDays <= 0 {
		return errors.Wrap(epiworld.ErrInvalidArgument, "mean incubation days must be positive")
	}
	return nil
}

// SEIR returns a four-state ModelConfig. Per-host incubation countdowns
// live in the Model's int scratch arena (epiworld.Model.ScratchInts),
// not in a closure-captured map, so replicate clones never share mutable
// countdown state across RunMultiple's worker pool.
func SEIR(p SEIRParams) (*epiworld.ModelConfig, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	vdef := epiworld.NewVirusDef("seir")
	vdef.ProbInfecting = epiworld.Constant(p.ProbInfecting)
	vdef.ProbRecovery = epiworld.Constant(p.ProbRecovery)
	vdef.StateOnAttach = seirExposed
	vdef.QueueOnAttach = epiworld.Everyone
	vdef.StateOnClear = seirRecovered
	vdef.QueueOnClear = -epiworld.Everyone

	exposedUpdater := func(a *epiworld.Agent, m *epiworld.Model) {
		timers := m.ScratchInts()
		timers[a.ID()]--
		if timers[a.ID()] > 0 {
			return
		}
		_ = a.ChangeState(seirInfected, nil)
	}

	updaters := make([]epiworld.UpdateFunc, 4)
	updaters[seirSusceptible] = susceptibleByRouletteWithTimer(vdef, seirInfected, p.MeanIncubationDays)
	updaters[seirExposed] = exposedUpdater
	updaters[seirInfected] = recoverByBernoulli(seirRecovered)

	return &epiworld.ModelConfig{
		NStates:        4,
		StateLabels:    []string{"susceptible", "exposed", "infected", "recovered"},
		Updaters:       updaters,
		InitialViruses: []*epiworld.VirusPlacement{seedInitialInfections(vdef, seirExposed, p.InitialPrevalence)},
	}, nil
}

// SIRSParams configures a susceptible-infected-recovered-susceptible
// model: immunity wanes after a Poisson-distributed number of days.
type SIRSParams struct {
	ProbInfecting     float64
	ProbRecovery      float64
	MeanImmunityDays  float64
	InitialPrevalence float64
}

const (
	sirsSusceptible = 0
	sirsInfected    = 1
	sirsRecovered   = 2
)

func (p SIRSParams) validate() error {
	if p.InitialPrevalence <= 0 || p.InitialPrevalence > 1 {
		return errors.Wrap(epiworld.ErrInvalidArgument, "initial prevalence must be in (0,1]")
	}
	if p.MeanImmunityDays <= 0 {
		return errors.Wrap(epiworld.ErrInvalidArgument, "mean immunity days must be positive")
	}
	return nil
}

// SIRS returns a three-state ModelConfig where the recovered updater
// counts down a waning-immunity timer (also carried in ScratchInts) and
// returns the host to the susceptible pool at zero.
func SIRS(p SIRSParams) (*epiworld.ModelConfig, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	vdef := epiworld.NewVirusDef("sirs")
	vdef.ProbInfecting = epiworld.Constant(p.ProbInfecting)
	vdef.ProbRecovery = epiworld.Constant(p.ProbRecovery)
	vdef.StateOnAttach = sirsInfected
	vdef.QueueOnAttach = epiworld.Everyone
	vdef.StateOnClear = sirsRecovered
	vdef.QueueOnClear = -epiworld.Everyone

	recoveredUpdater := func(a *epiworld.Agent, m *epiworld.Model) {
		timers := m.ScratchInts()
		timers[a.ID()]--
		if timers[a.ID()] > 0 {
			return
		}
		_ = a.ChangeState(sirsSusceptible, nil)
	}

	updaters := make([]epiworld.UpdateFunc, 3)
	updaters[sirsSusceptible] = susceptibleByRoulette(vdef, sirsInfected)
	updaters[sirsInfected] = recoverThenWane(sirsRecovered, p.MeanImmunityDays)
	updaters[sirsRecovered] = recoveredUpdater

	return &epiworld.ModelConfig{
		NStates:        3,
		StateLabels:    []string{"susceptible", "infected", "recovered"},
		Updaters:       updaters,
		InitialViruses: []*epiworld.VirusPlacement{seedInitialInfections(vdef, sirsInfected, p.InitialPrevalence)},
	}, nil
}

// susceptibleByRoulette infects a susceptible host by weighted selection
// among infected neighbors (spec.md S4.5), matching newSIRConfig's
// pattern: gather infected neighbors' ProbInfecting as weights, draw at
// most one winner, attach a fresh VirusInstance of def.
func susceptibleByRoulette(def *epiworld.VirusDef, infectedState int) epiworld.UpdateFunc {
	return func(a *epiworld.Agent, m *epiworld.Model) {
		src := pickInfectiousNeighbor(a, m, infectedState)
		if src == nil {
			return
		}
		inst := epiworld.NewVirusInstance(def)
		if err := a.SetVirus(inst, nil, nil); err != nil {
			return
		}
		m.DB().RecordTransmission(m.Today(), src.ID(), a.ID(), src.Virus().ID(), src.Virus().DateAcquired())
	}
}

// susceptibleByRouletteWithTimer is susceptibleByRoulette plus seeding
// the newly exposed host's incubation countdown.
func susceptibleByRouletteWithTimer(def *epiworld.VirusDef, infectiousState int, meanIncubationDays float64) epiworld.UpdateFunc {
	return func(a *epiworld.Agent, m *epiworld.Model) {
		src := pickInfectiousNeighbor(a, m, infectiousState)
		if src == nil {
			return
		}
		inst := epiworld.NewVirusInstance(def)
		if err := a.SetVirus(inst, nil, nil); err != nil {
			return
		}
		days := int(rv.Poisson(meanIncubationDays))
		if days < 1 {
			days = 1
		}
		m.ScratchInts()[a.ID()] = days
		m.DB().RecordTransmission(m.Today(), src.ID(), a.ID(), src.Virus().ID(), src.Virus().DateAcquired())
	}
}

// pickInfectiousNeighbor draws one infectious-state neighbor of a by
// roulette over their ProbInfecting channel, or nil if none succeeded.
// infectiousState is the state id that counts as able to transmit; for
// SEIR this is "infected" (not "exposed"), matching the usual incubation
// convention that exposed hosts are not yet contagious.
func pickInfectiousNeighbor(a *epiworld.Agent, m *epiworld.Model, infectiousState int) *epiworld.Agent {
	var probs []float64
	var sources []*epiworld.Agent
	for _, nbID := range a.Neighbors() {
		nb := m.Agent(nbID)
		if nb.State() != infectiousState || !nb.HasVirus() {
			continue
		}
		probs = append(probs, nb.Virus().ProbInfecting(nb, m))
		sources = append(sources, nb)
	}
	if len(probs) == 0 {
		return nil
	}
	idx := epiworld.Roulette(probs, m.RNG(), m.ScratchFloats())
	if idx < 0 {
		return nil
	}
	return sources[idx]
}

// recoverByBernoulli draws a recovery outcome via rv.Binomial(1, p), the
// teacher's own Bernoulli-trial idiom (interhost_process.go,
// spreader.go), and clears the virus into recoveredState on success.
func recoverByBernoulli(recoveredState int) epiworld.UpdateFunc {
	return func(a *epiworld.Agent, m *epiworld.Model) {
		p := a.Virus().ProbRecovery(a, m)
		if rv.Binomial(1, p) != 1.0 {
			return
		}
		newState := recoveredState
		q := epiworld.QueueEffect(-epiworld.Everyone)
		_ = a.RemoveVirus(&newState, &q)
	}
}

// recoverThenWane is recoverByBernoulli plus seeding the waning-immunity
// countdown on successful recovery.
func recoverThenWane(recoveredState int, meanImmunityDays float64) epiworld.UpdateFunc {
	return func(a *epiworld.Agent, m *epiworld.Model) {
		p := a.Virus().ProbRecovery(a, m)
		if rv.Binomial(1, p) != 1.0 {
			return
		}
		days := int(rv.Poisson(meanImmunityDays))
		if days < 1 {
			days = 1
		}
		m.ScratchInts()[a.ID()] = days
		newState := recoveredState
		q := epiworld.QueueEffect(-epiworld.Everyone)
		_ = a.RemoveVirus(&newState, &q)
	}
}

// seedInitialInfections returns a VirusPlacement whose Distribute
// callback infects prevalence*n distinct agents (rounded to nearest, at
// least one), drawn
// through the Model's own deterministic rng.Source (the initial seeding
// step, unlike in-run transmission, carries no dependency on
// randomvariate's global state).
func seedInitialInfections(def *epiworld.VirusDef, onState int, prevalence float64) *epiworld.VirusPlacement {
	return &epiworld.VirusPlacement{
		Def: def,
		Distribute: func(m *epiworld.Model) {
			n := m.NumAgents()
			count := int(prevalence*float64(n) + 0.5)
			if count < 1 {
				count = 1
			}
			if count > n {
				count = n
			}
			chosen := make(map[int]bool, count)
			for len(chosen) < count {
				id := m.RNG().Intn(n)
				chosen[id] = true
			}
			newState := onState
			q := epiworld.QueueEffect(epiworld.Everyone)
			for id := range chosen {
				_ = m.Agent(id).SetVirus(epiworld.NewVirusInstance(def), &newState, &q)
			}
		},
	}
}
