package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/rkode/internal/config"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/experiment"
	"github.com/san-kum/rkode/internal/sim"
)

// Objective names understood by RunObjective besides the run's own metrics.
const (
	ObjectiveEvaluations = "evaluations"
	ObjectiveRejected    = "rejected"
	ObjectiveGlobalError = "global_error"
)

// Apply sets one grid value on cfg. "abstol" and "reltol" address the
// tolerances; any other name is a model parameter.
func Apply(cfg *config.Config, name string, value float64) {
	switch name {
	case "abstol":
		cfg.Tolerances.AbsTol = value
	case "reltol":
		cfg.Tolerances.RelTol = value
	default:
		if cfg.Params == nil {
			cfg.Params = map[string]any{}
		}
		cfg.Params[name] = value
	}
}

// Score extracts the named objective from an outcome.
func Score(out *experiment.Outcome, objective string) (float64, error) {
	switch objective {
	case ObjectiveEvaluations:
		return float64(out.Stats.Evaluations), nil
	case ObjectiveRejected:
		return float64(out.Stats.Rejected), nil
	case ObjectiveGlobalError:
		if out.Exact == nil {
			return 0, fmt.Errorf("%w: model %s has no exact solution", dynamo.ErrInvalidConfig, out.Model)
		}
		return out.GlobalError, nil
	}
	v, ok := out.Metrics[objective]
	if !ok {
		return 0, fmt.Errorf("%w: unknown objective %q", dynamo.ErrInvalidConfig, objective)
	}
	return v, nil
}

// RunObjective scores grid points by integrating base with each point
// applied. Runs that fail or whose global error exceeds maxError (when
// positive) are not scored.
func RunObjective(reg *experiment.Registry, base *config.Config, objective string, maxError float64, opts ...sim.Option) Objective {
	return func(ctx context.Context, point map[string]float64) (float64, error) {
		cfg := base.Clone()
		for name, value := range point {
			Apply(cfg, name, value)
		}
		if err := cfg.Validate(); err != nil {
			return 0, err
		}

		out, err := reg.Run(ctx, experiment.FromConfig(cfg), opts...)
		if err != nil {
			return 0, err
		}
		if maxError > 0 && out.Exact != nil && !(out.GlobalError <= maxError) {
			return 0, fmt.Errorf("global error %.3e exceeds %.3e", out.GlobalError, maxError)
		}
		v, err := Score(out, objective)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(v) {
			return 0, fmt.Errorf("objective %s is NaN", objective)
		}
		return v, nil
	}
}
