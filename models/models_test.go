package models

import (
	"testing"

	epiworld "github.com/epiworld-go/epiworld"
	"github.com/epiworld-go/epiworld/graph"
	"github.com/epiworld-go/epiworld/rng"
)

const unexpectedErrorWhileError = "encountered error while %s: %s"

func TestSIR_RunsAndHoldsSumLaw(t *testing.T) {
	n := 200
	cfg, err := SIR(SIRParams{ProbInfecting: 0.3, ProbRecovery: 0.2, InitialPrevalence: 0.05})
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building SIR config", err)
	}
	g, err := graph.SmallWorld(n, 4, 0.1, false, rng.New(3))
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building graph", err)
	}
	m, err := epiworld.NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	m.Debug = true
	if err := m.Run(30, 11); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running SIR model", err)
	}
	if err := m.DB().VerifyInvariants(n); err != nil {
		t.Errorf(unexpectedErrorWhileError, "verifying invariants", err)
	}
}

func TestSIS_RunsAndHoldsSumLaw(t *testing.T) {
	n := 150
	cfg, err := SIS(SISParams{ProbInfecting: 0.4, ProbRecovery: 0.5, InitialPrevalence: 0.1})
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building SIS config", err)
	}
	g, err := graph.RingLattice(n, 4, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building graph", err)
	}
	m, err := epiworld.NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	m.Debug = true
	if err := m.Run(40, 5); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running SIS model", err)
	}
	if err := m.DB().VerifyInvariants(n); err != nil {
		t.Errorf(unexpectedErrorWhileError, "verifying invariants", err)
	}
}

func TestSEIR_RunsAndHoldsSumLaw(t *testing.T) {
	n := 150
	cfg, err := SEIR(SEIRParams{ProbInfecting: 0.35, ProbRecovery: 0.2, MeanIncubationDays: 3, InitialPrevalence: 0.05})
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building SEIR config", err)
	}
	g, err := graph.SmallWorld(n, 4, 0.1, false, rng.New(9))
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building graph", err)
	}
	m, err := epiworld.NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	m.Debug = true
	if err := m.Run(40, 13); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running SEIR model", err)
	}
	if err := m.DB().VerifyInvariants(n); err != nil {
		t.Errorf(unexpectedErrorWhileError, "verifying invariants", err)
	}
}

func TestSIRS_RunsAndHoldsSumLaw(t *testing.T) {
	n := 150
	cfg, err := SIRS(SIRSParams{ProbInfecting: 0.4, ProbRecovery: 0.3, MeanImmunityDays: 5, InitialPrevalence: 0.1})
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building SIRS config", err)
	}
	g, err := graph.RingLattice(n, 4, false)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "building graph", err)
	}
	m, err := epiworld.NewModel(cfg, g, n)
	if err != nil {
		t.Fatalf(unexpectedErrorWhileError, "constructing model", err)
	}
	m.Debug = true
	if err := m.Run(60, 17); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "running SIRS model", err)
	}
	if err := m.DB().VerifyInvariants(n); err != nil {
		t.Errorf(unexpectedErrorWhileError, "verifying invariants", err)
	}
}

func TestSIR_RejectsInvalidPrevalence(t *testing.T) {
	_, err := SIR(SIRParams{ProbInfecting: 0.3, ProbRecovery: 0.2, InitialPrevalence: 0})
	if err == nil {
		t.Error("expected an error while building a SIR config with zero initial prevalence, instead got none")
	}
}
