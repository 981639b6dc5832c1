package config

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/tableau"
)

const (
	DefaultModel = "decay"
	DefaultSteps = 10
)

// Config describes one run. A zero Tf selects the model's default horizon.
type Config struct {
	Model        string            `yaml:"model"`
	Method       string            `yaml:"method"`
	T0           float64           `yaml:"t0"`
	Tf           float64           `yaml:"tf"`
	N            int               `yaml:"n"`
	Adaptive     bool              `yaml:"adaptive"`
	X0           []float64         `yaml:"x0,omitempty"`
	Tolerances   dynamo.Tolerances `yaml:"tolerances"`
	MaxRetries   int               `yaml:"max_retries"`
	MinDt        float64           `yaml:"min_dt"`
	HistoryLimit int               `yaml:"history_limit"`
	Params       map[string]any    `yaml:"params,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		Method:     tableau.NameDormandPrince54,
		T0:         0,
		N:          DefaultSteps,
		Adaptive:   true,
		Tolerances: dynamo.DefaultTolerances(),
		MaxRetries: dynamo.DefaultMaxRetries,
	}
}

// Load reads a YAML file over the defaults, so omitted keys keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks everything that does not depend on the model; parameter
// and dimension checks happen when the run is built.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", dynamo.ErrInvalidConfig)
	}
	if _, err := tableau.Lookup(c.Method); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}
	if c.Tf != 0 && !(c.Tf > c.T0) {
		return fmt.Errorf("%w: tf must exceed t0, got [%g, %g]", dynamo.ErrInvalidConfig, c.T0, c.Tf)
	}
	if c.N < 1 {
		return fmt.Errorf("%w: n must be at least 1, got %d", dynamo.ErrInvalidConfig, c.N)
	}
	return c.Dynamo().Validate()
}

// Dynamo returns the integrator settings of c.
func (c *Config) Dynamo() dynamo.Config {
	return dynamo.Config{
		Adaptive:     c.Adaptive,
		Tolerances:   c.Tolerances,
		MaxRetries:   c.MaxRetries,
		MinDt:        c.MinDt,
		HistoryLimit: c.HistoryLimit,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.X0 = slices.Clone(c.X0)
	out.Params = maps.Clone(c.Params)
	return &out
}
