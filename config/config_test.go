package config

import "testing"

const unexpectedErrorWhileError = "encountered error while %s: %s"
const expectedErrorWhileError = "expected an error while %s, instead got none"

func validConfig() *Config {
	return &Config{
		Population: PopulationConfig{Size: 100},
		Graph:      GraphConfig{Generator: "small_world", K: 4, P: 0.1},
		Simulation: SimulationConfig{Days: 30, Replicates: 1},
		Viruses: []VirusConfig{
			{Name: "flu", ProbInfecting: 0.3, ProbRecovery: 0.2, InitialPrevalence: 0.01},
		},
		Logging: LoggingConfig{Backend: "csv", Path: "out"},
	}
}

func TestConfig_Validate_Accepts(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Errorf(unexpectedErrorWhileError, "validating a well-formed config", err)
	}
}

func TestConfig_Validate_RejectsZeroPopulation(t *testing.T) {
	c := validConfig()
	c.Population.Size = 0
	if err := c.Validate(); err == nil {
		t.Errorf(expectedErrorWhileError, "validating a zero-size population")
	}
}

func TestConfig_Validate_RejectsUnknownGenerator(t *testing.T) {
	c := validConfig()
	c.Graph.Generator = "mystery"
	if err := c.Validate(); err == nil {
		t.Errorf(expectedErrorWhileError, "validating an unknown graph generator")
	}
}

func TestConfig_Validate_RejectsDuplicateVirusNames(t *testing.T) {
	c := validConfig()
	c.Viruses = append(c.Viruses, c.Viruses[0])
	if err := c.Validate(); err == nil {
		t.Errorf(expectedErrorWhileError, "validating duplicate virus names")
	}
}

func TestConfig_Validate_RejectsUnknownLoggingBackend(t *testing.T) {
	c := validConfig()
	c.Logging.Backend = "parquet"
	if err := c.Validate(); err == nil {
		t.Errorf(expectedErrorWhileError, "validating an unknown logging backend")
	}
}
