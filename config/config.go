// Package config loads a TOML run description into a validated,
// typed configuration, mirroring the teacher's EvoEpiConfig/
// evoepi_config_loader.go shape: decode the whole file with
// github.com/BurntSushi/toml, then call Validate on each section in
// turn so every failure names the offending section (spec.md S6/S7).
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	epiworld "github.com/epiworld-go/epiworld"
)

// ErrInvalidArgument and ErrIOFailure re-export the root package's
// sentinels so config errors participate in the same errors.Is chain
// the rest of the module uses.
var (
	ErrInvalidArgument = epiworld.ErrInvalidArgument
	ErrIOFailure       = epiworld.ErrIOFailure
)

// Config is the top-level run description read from a TOML file.
type Config struct {
	Population  PopulationConfig  `toml:"population"`
	Graph       GraphConfig       `toml:"graph"`
	Simulation  SimulationConfig  `toml:"simulation"`
	Viruses     []VirusConfig     `toml:"virus"`
	Tools       []ToolConfig      `toml:"tool"`
	Logging     LoggingConfig     `toml:"logging"`
}

// PopulationConfig sizes the agent population.
type PopulationConfig struct {
	Size int `toml:"size"`
}

// Validate checks PopulationConfig.
func (c PopulationConfig) Validate() error {
	if c.Size <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "population.size must be positive, got %d", c.Size)
	}
	return nil
}

// GraphConfig describes how to build the contact structure.
type GraphConfig struct {
	// Generator is one of "ring_lattice", "small_world", "bernoulli", or
	// "edge_list".
	Generator string  `toml:"generator"`
	K         int     `toml:"k"`
	P         float64 `toml:"p"`
	Directed  bool    `toml:"directed"`
	EdgeList  string  `toml:"edge_list_path"`
}

// Validate checks GraphConfig.
func (c GraphConfig) Validate() error {
	switch strings.ToLower(c.Generator) {
	case "ring_lattice", "small_world", "bernoulli":
		if c.K < 0 {
			return errors.Wrapf(ErrInvalidArgument, "graph.k must be non-negative, got %d", c.K)
		}
	case "edge_list":
		if c.EdgeList == "" {
			return errors.Wrap(ErrInvalidArgument, "graph.edge_list_path is required when generator is \"edge_list\"")
		}
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown graph generator %q", c.Generator)
	}
	if c.P < 0 || c.P > 1 {
		return errors.Wrapf(ErrInvalidArgument, "graph.p must be in [0,1], got %f", c.P)
	}
	return nil
}

// SimulationConfig holds the run-level parameters consumed by
// Model.Run/RunMultiple.
type SimulationConfig struct {
	Days             int     `toml:"days"`
	Replicates       int     `toml:"replicates"`
	Seed             int64   `toml:"seed"`
	SamplingFreq     int     `toml:"sampling_freq"`
	RewireProportion float64 `toml:"rewire_proportion"`
	Parallel         bool    `toml:"parallel"`
}

// Validate checks SimulationConfig, filling in defaults for omitted
// optional fields.
func (c *SimulationConfig) Validate() error {
	if c.Days <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "simulation.days must be positive, got %d", c.Days)
	}
	if c.Replicates <= 0 {
		c.Replicates = 1
	}
	if c.SamplingFreq <= 0 {
		c.SamplingFreq = 1
	}
	if c.RewireProportion < 0 || c.RewireProportion > 1 {
		return errors.Wrapf(ErrInvalidArgument, "simulation.rewire_proportion must be in [0,1], got %f", c.RewireProportion)
	}
	return nil
}

// VirusConfig describes one registered virus's probability channels and
// its attach/clear/removal post-states; it carries no queue-effect codes.
type VirusConfig struct {
	Name           string  `toml:"name"`
	ProbInfecting  float64 `toml:"prob_infecting"`
	ProbRecovery   float64 `toml:"prob_recovery"`
	ProbDeath      float64 `toml:"prob_death"`
	IncubationDays float64 `toml:"incubation_days"`
	StateOnAttach  int     `toml:"state_on_attach"`
	StateOnClear   int     `toml:"state_on_clear"`
	StateOnRemoval int     `toml:"state_on_removal"`
	InitialPrevalence float64 `toml:"initial_prevalence"`
}

// Validate range-checks VirusConfig: the name must be set, the
// probabilities and initial prevalence must lie in [0,1], and
// incubation_days must be non-negative. It fills in no defaults; a
// zero-valued field stays zero.
func (c VirusConfig) Validate() error {
	if c.Name == "" {
		return errors.Wrap(ErrInvalidArgument, "virus.name is required")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"prob_infecting", c.ProbInfecting},
		{"prob_recovery", c.ProbRecovery},
		{"prob_death", c.ProbDeath},
		{"initial_prevalence", c.InitialPrevalence},
	} {
		if p.v < 0 || p.v > 1 {
			return errors.Wrapf(ErrInvalidArgument, "virus %q: %s must be in [0,1], got %f", c.Name, p.name, p.v)
		}
	}
	if c.IncubationDays < 0 {
		return errors.Wrapf(ErrInvalidArgument, "virus %q: incubation_days must be non-negative, got %f", c.Name, c.IncubationDays)
	}
	return nil
}

// ToolConfig describes one registered tool's reducers and its
// attach/removal post-states; it carries no queue-effect codes.
type ToolConfig struct {
	Name                 string  `toml:"name"`
	ReduceInfecting      float64 `toml:"reduce_infecting"`
	ReduceRecovery       float64 `toml:"reduce_recovery"`
	ReduceDeath          float64 `toml:"reduce_death"`
	ReduceSusceptibility float64 `toml:"reduce_susceptibility"`
	StateOnAttach        int     `toml:"state_on_attach"`
	StateOnRemoval       int     `toml:"state_on_removal"`
	InitialPrevalence    float64 `toml:"initial_prevalence"`
}

// Validate checks ToolConfig.
func (c ToolConfig) Validate() error {
	if c.Name == "" {
		return errors.Wrap(ErrInvalidArgument, "tool.name is required")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"reduce_infecting", c.ReduceInfecting},
		{"reduce_recovery", c.ReduceRecovery},
		{"reduce_death", c.ReduceDeath},
		{"reduce_susceptibility", c.ReduceSusceptibility},
		{"initial_prevalence", c.InitialPrevalence},
	} {
		if p.v < 0 || p.v > 1 {
			return errors.Wrapf(ErrInvalidArgument, "tool %q: %s must be in [0,1], got %f", c.Name, p.name, p.v)
		}
	}
	return nil
}

// LoggingConfig selects and configures the output logger.
type LoggingConfig struct {
	// Backend is "csv" or "sqlite".
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Validate checks LoggingConfig.
func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "csv", "sqlite":
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown logging backend %q", c.Backend)
	}
	if c.Path == "" {
		return errors.Wrap(ErrInvalidArgument, "logging.path is required")
	}
	return nil
}

// Validate checks every section in turn, matching the teacher's
// EvoEpiConfig.Validate decode-then-validate shape.
func (c *Config) Validate() error {
	if err := c.Population.Validate(); err != nil {
		return err
	}
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	names := make(map[string]bool)
	for _, v := range c.Viruses {
		if err := v.Validate(); err != nil {
			return err
		}
		if names[v.Name] {
			return errors.Wrapf(ErrInvalidArgument, "duplicate virus name %q", v.Name)
		}
		names[v.Name] = true
	}
	toolNames := make(map[string]bool)
	for _, t := range c.Tools {
		if err := t.Validate(); err != nil {
			return err
		}
		if toolNames[t.Name] {
			return errors.Wrapf(ErrInvalidArgument, "duplicate tool name %q", t.Name)
		}
		toolNames[t.Name] = true
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

// Load decodes the TOML file at path and validates every section.
func Load(path string) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(ErrIOFailure, "decoding %s: %s", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
