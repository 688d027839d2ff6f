// Package config provides configuration loading and access for the
// simulation: embedded defaults overlaid by an optional user YAML file,
// exposed through a process-wide singleton the way the rest of the
// ambient stack (logging, CLI) expects to reach it from.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World    WorldConfig    `yaml:"world"`
	Spatial  SpatialConfig  `yaml:"spatial"`
	Organism OrganismConfig `yaml:"organism"`
	Run      RunConfig      `yaml:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived holds values computed after loading; never set from YAML.
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig describes the bounded simulation volume and movement
// policy.
type WorldConfig struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MinZ float64 `yaml:"min_z"`
	MaxX float64 `yaml:"max_x"`
	MaxY float64 `yaml:"max_y"`
	MaxZ float64 `yaml:"max_z"`

	PreciseMovement          bool `yaml:"precise_movement"`
	RandomisedExecutionOrder bool `yaml:"randomised_execution_order"`
}

// SpatialConfig describes the chunked index's grid geometry and
// scheduling.
type SpatialConfig struct {
	ChunkSize        float64 `yaml:"chunk_size"`
	LargestAgentSize float64 `yaml:"largest_agent_size"`

	// CoreCount of 0 selects availableLogicalCores-1 (minimum 1).
	CoreCount int `yaml:"core_count"`
}

// OrganismConfig describes the reference Sphere organism's behaviour
// parameters.
type OrganismConfig struct {
	InitialCount         int     `yaml:"initial_count"`
	InitialSize          float64 `yaml:"initial_size"`
	StepSize             float64 `yaml:"step_size"`
	ReproduceProbability float64 `yaml:"reproduce_probability"`
}

// RunConfig describes the process-level run parameters.
type RunConfig struct {
	Seed  int64 `yaml:"seed"`
	Ticks int   `yaml:"ticks"`
}

// TelemetryConfig describes window-based telemetry collection.
type TelemetryConfig struct {
	WindowSeconds float64 `yaml:"window_seconds"`
	TickDuration  float64 `yaml:"tick_duration"`
	LogStats      bool    `yaml:"log_stats"`
	SnapshotCSV   string  `yaml:"snapshot_csv"`
}

// DerivedConfig holds values computed from Config after loading, rather
// than carried redundantly in the YAML itself.
type DerivedConfig struct {
	MinCorner [3]float64
	MaxCorner [3]float64
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct: only fields present in the
		// file overwrite the embedded defaults already there.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	if c.World.MaxX <= c.World.MinX || c.World.MaxY <= c.World.MinY || c.World.MaxZ <= c.World.MinZ {
		return fmt.Errorf("config: world bounds must satisfy min < max on every axis")
	}
	if c.Spatial.ChunkSize/2 < c.Spatial.LargestAgentSize {
		return fmt.Errorf("config: spatial.chunk_size/2 (%.4g) must be >= spatial.largest_agent_size (%.4g)",
			c.Spatial.ChunkSize/2, c.Spatial.LargestAgentSize)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.MinCorner = [3]float64{c.World.MinX, c.World.MinY, c.World.MinZ}
	c.Derived.MaxCorner = [3]float64{c.World.MaxX, c.World.MaxY, c.World.MaxZ}
}

// WriteYAML writes the configuration to a YAML file, for telemetry's
// config.yaml snapshot.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
