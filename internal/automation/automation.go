package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/rkode/internal/config"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/experiment"
	"github.com/san-kum/rkode/internal/metrics"
	"github.com/san-kum/rkode/internal/sim"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run of a scenario. Omitted keys take the values of
// config.DefaultConfig.
type ScenarioStep struct {
	Label         string `yaml:"label"`
	config.Config `yaml:",inline"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var raw struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Steps       []yaml.Node `yaml:"steps"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	scenario := &Scenario{Name: raw.Name, Description: raw.Description}
	for i, node := range raw.Steps {
		step := ScenarioStep{Config: *config.DefaultConfig()}
		if err := node.Decode(&step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		scenario.Steps = append(scenario.Steps, step)
	}
	return scenario, nil
}

// RunScenario executes the steps in order and stops at the first failure.
// Outcomes of completed steps are returned along with the error.
func RunScenario(ctx context.Context, reg *experiment.Registry, scenario *Scenario, opts ...sim.Option) ([]*experiment.Outcome, error) {
	outcomes := make([]*experiment.Outcome, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		slog.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps),
			"label", step.Label, "model", step.Model)

		if err := step.Validate(); err != nil {
			return outcomes, fmt.Errorf("step %d: %w", i+1, err)
		}
		out, err := reg.Run(ctx, experiment.FromConfig(&step.Config), opts...)
		if err != nil {
			return outcomes, fmt.Errorf("step %d run: %w", i+1, err)
		}
		outcomes = append(outcomes, out)
	}

	return outcomes, nil
}

// ParameterScan integrates a model across evenly spaced values of one
// parameter.
type ParameterScan struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	Count     int
}

// ScanPoint is one run of a parameter scan.
type ScanPoint struct {
	ParamValue float64
	Outcome    *experiment.Outcome
	Err        error
}

// RunScan executes a parameter scan. A failed run is recorded in its point
// and the scan continues; only cancellation and invalid scans abort.
func RunScan(ctx context.Context, reg *experiment.Registry, scan *ParameterScan, opts ...sim.Option) ([]ScanPoint, error) {
	if scan.Count < 1 {
		return nil, fmt.Errorf("%w: scan count must be at least 1", dynamo.ErrInvalidConfig)
	}
	if scan.ParamName == "" {
		return nil, fmt.Errorf("%w: scan parameter is required", dynamo.ErrInvalidConfig)
	}

	step := 0.0
	if scan.Count > 1 {
		step = (scan.ParamMax - scan.ParamMin) / float64(scan.Count-1)
	}

	points := make([]ScanPoint, 0, scan.Count)
	for i := range scan.Count {
		if err := ctx.Err(); err != nil {
			return points, err
		}

		value := scan.ParamMin + float64(i)*step
		cfg := scan.Base.Clone()
		if cfg.Params == nil {
			cfg.Params = map[string]any{}
		}
		cfg.Params[scan.ParamName] = value

		out, err := reg.Run(ctx, experiment.FromConfig(cfg), opts...)
		points = append(points, ScanPoint{ParamValue: value, Outcome: out, Err: err})

		slog.Debug("scan point", "param", scan.ParamName, "value", value, "err", err)
	}

	return points, nil
}

// MonteCarloConfig defines Monte Carlo simulation parameters
type MonteCarloConfig struct {
	Base *config.Config
	// BaseState is the unperturbed initial state; nil selects the model's.
	BaseState    dynamo.State
	Perturbation float64
	NumTrials    int
	Workers      int
	Seed         uint64
	// Bound is the magnitude past which a final state counts as unstable;
	// zero selects metrics.DefaultBound.
	Bound float64
}

type MonteCarloResult struct {
	TrialID    int
	InitState  dynamo.State
	FinalState dynamo.State
	Stable     bool
	// Err is the run failure of a trial; failed trials are unstable.
	Err error
}

// RunMonteCarlo integrates NumTrials copies of the base run, each starting
// from BaseState plus uniform noise in [-Perturbation, Perturbation] per
// component. Trials run concurrently with at most Workers in flight; the
// same seed gives the same trials. A trial that fails to integrate is
// recorded as unstable, only cancellation aborts the batch.
func RunMonteCarlo(ctx context.Context, reg *experiment.Registry, cfg *MonteCarloConfig, opts ...sim.Option) ([]MonteCarloResult, error) {
	if cfg.NumTrials < 1 {
		return nil, fmt.Errorf("%w: trials must be at least 1", dynamo.ErrInvalidConfig)
	}

	base := cfg.BaseState
	if base == nil {
		info, err := reg.Describe(cfg.Base.Model)
		if err != nil {
			return nil, err
		}
		base = info.X0
	}
	bound := cfg.Bound
	if bound == 0 {
		bound = metrics.DefaultBound
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	results := make([]MonteCarloResult, cfg.NumTrials)
	for trial := range results {
		x0 := make(dynamo.State, len(base))
		for i, v := range base {
			x0[i] = v + (rng.Float64()-0.5)*2*cfg.Perturbation
		}
		results[trial] = MonteCarloResult{TrialID: trial, InitState: x0}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for trial := range results {
		g.Go(func() error {
			r := &results[trial]
			run := experiment.FromConfig(cfg.Base)
			run.X0 = r.InitState
			out, err := reg.Run(gctx, run, opts...)
			if out != nil {
				_, r.FinalState = out.Final()
			}
			r.Err = err
			r.Stable = err == nil && r.FinalState.IsValid() && r.FinalState.MaxAbs() <= bound
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("monte carlo", "model", cfg.Base.Model, "trials", cfg.NumTrials)
	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}

// Spread returns the largest distance between two stable final states.
func Spread(results []MonteCarloResult) float64 {
	spread := 0.0
	for i, a := range results {
		if !a.Stable {
			continue
		}
		for _, b := range results[i+1:] {
			if b.Stable {
				spread = math.Max(spread, a.FinalState.Sub(b.FinalState).Norm())
			}
		}
	}
	return spread
}
