package experiment

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/rkode/internal/config"
	"github.com/san-kum/rkode/internal/dynamo"
)

func adaptive() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	cfg.Adaptive = true
	return cfg
}

func TestNames(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"decay", "logistic", "lorenz", "oscillator", "springchain", "vanderpol"}, r.Names())
}

func TestDescribe(t *testing.T) {
	r := NewRegistry()

	info, err := r.Describe("decay")
	require.NoError(t, err)
	assert.True(t, info.Exact)
	assert.False(t, info.Conservative)
	assert.Equal(t, map[string]any{"rate": 1.0}, info.Defaults)
	assert.Equal(t, dynamo.State{1}, info.X0)

	info, err = r.Describe("oscillator")
	require.NoError(t, err)
	assert.True(t, info.Exact)
	assert.True(t, info.Conservative)

	info, err = r.Describe("lorenz")
	require.NoError(t, err)
	assert.False(t, info.Exact)

	_, err = r.Describe("pendulum")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestRunUsesModelDefaults(t *testing.T) {
	r := NewRegistry()

	out, err := r.Run(context.Background(), Run{Model: "decay", Method: "dopri54", N: 10, Config: adaptive()})
	require.NoError(t, err)

	assert.Equal(t, "decay", out.Model)
	assert.Equal(t, 1.0, out.Tf)
	assert.Equal(t, dynamo.State{1}, out.X0)
	assert.Equal(t, map[string]any{"rate": 1.0}, out.Params)
	assert.Equal(t, 1.0, out.T[len(out.T)-1])

	require.NotNil(t, out.Exact)
	assert.InDelta(t, math.Exp(-1), out.Exact[0], 1e-15)
	assert.Less(t, out.GlobalError, 1e-6)

	assert.Contains(t, out.Metrics, "global_error")
	assert.Equal(t, 1.0, out.Metrics["max_norm"])
	assert.Equal(t, 1.0, out.Metrics["stability"])
	assert.NotContains(t, out.Metrics, "energy_drift")
}

func TestRunDecodesParams(t *testing.T) {
	r := NewRegistry()

	out, err := r.Run(context.Background(), Run{
		Model:  "decay",
		Method: "bs32",
		T0:     1,
		Tf:     3,
		N:      20,
		X0:     dynamo.State{2, -1},
		Params: map[string]any{"rate": "0.5"},
		Config: adaptive(),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"rate": 0.5}, out.Params)
	assert.Equal(t, "bs32", out.Method)
	_, x := out.Final()
	assert.InDelta(t, 2*math.Exp(-1), x[0], 1e-5)
	assert.InDelta(t, -math.Exp(-1), x[1], 1e-5)
}

func TestRunSpringChainDimensionFollowsParams(t *testing.T) {
	r := NewRegistry()

	out, err := r.Run(context.Background(), Run{
		Model:  "springchain",
		Method: "dopri54",
		N:      10,
		Params: map[string]any{"masses": 5},
		Config: adaptive(),
	})
	require.NoError(t, err)

	assert.Len(t, out.X0, 10)
	_, x := out.Final()
	assert.Len(t, x, 10)
	assert.Less(t, out.Metrics["energy_drift"], 1e-4)
}

func TestRunConservesOscillatorEnergy(t *testing.T) {
	r := NewRegistry()

	out, err := r.Run(context.Background(), Run{Model: "oscillator", Method: "dopri54", N: 10, Config: adaptive()})
	require.NoError(t, err)

	assert.Less(t, out.Metrics["energy_drift"], 1e-4)
	assert.Less(t, out.GlobalError, 1e-4)
}

func TestRunRejectsBadInput(t *testing.T) {
	r := NewRegistry()
	base := Run{Model: "decay", Method: "dopri54", N: 10, Config: adaptive()}

	tests := []struct {
		name   string
		mutate func(*Run)
		target error
	}{
		{"unknown model", func(r *Run) { r.Model = "pendulum" }, ErrUnknown},
		{"unknown method", func(r *Run) { r.Method = "rk45" }, ErrUnknown},
		{"unknown param", func(r *Run) { r.Params = map[string]any{"speed": 1} }, dynamo.ErrInvalidConfig},
		{"invalid param", func(r *Run) { r.Params = map[string]any{"rate": -1} }, dynamo.ErrInvalidConfig},
		{"no steps", func(r *Run) { r.N = 0 }, dynamo.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := base
			tt.mutate(&run)
			out, err := r.Run(context.Background(), run)
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, out)
		})
	}
}

func TestRunRejectsWrongDimension(t *testing.T) {
	r := NewRegistry()
	elementwise := map[string]bool{"decay": true, "logistic": true}

	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			info, err := r.Describe(name)
			require.NoError(t, err)

			long := make(dynamo.State, len(info.X0)+1)
			for i := range long {
				long[i] = 0.5
			}
			run := Run{Model: name, Method: "dopri54", Tf: 0.1, N: 10, X0: long, Config: adaptive()}

			out, err := r.Run(context.Background(), run)
			if elementwise[name] {
				require.NoError(t, err)
				assert.Len(t, out.X0, len(long))
				return
			}
			assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
			assert.Nil(t, out)

			run.X0 = dynamo.State{1}
			_, err = r.Run(context.Background(), run)
			assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)

			_, err = r.Sweep(context.Background(), Run{Model: name, Method: "dopri54", Tf: 0.1, N: 10, Config: adaptive()},
				[]dynamo.State{info.X0, {1}}, 2)
			assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)

			_, err = r.Lyapunov(context.Background(), run, 4)
			assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
		})
	}
}

func TestRunReturnsPartialOutcome(t *testing.T) {
	r := NewRegistry()
	cfg := adaptive()
	cfg.MaxRetries = 1

	out, err := r.Run(context.Background(), Run{
		Model: "decay", Method: "dopri54", N: 1,
		Params: map[string]any{"rate": 1000.0},
		Config: cfg,
	})
	assert.ErrorIs(t, err, dynamo.ErrMaxRetries)
	require.NotNil(t, out)
	assert.Equal(t, []float64{0}, out.T)
}

func TestSweep(t *testing.T) {
	r := NewRegistry()
	x0s := []dynamo.State{{1}, {2}, {3}, {4}}

	outs, err := r.Sweep(context.Background(), Run{Model: "decay", Method: "dopri54", N: 10, Config: adaptive()}, x0s, 2)
	require.NoError(t, err)
	require.Len(t, outs, 4)

	for i, out := range outs {
		assert.Equal(t, x0s[i], out.X0)
		_, x := out.Final()
		assert.InDelta(t, x0s[i][0]*math.Exp(-1), x[0], 1e-5)
		assert.Less(t, out.GlobalError, 1e-5)
		assert.NotContains(t, out.Metrics, "global_error")
	}
}

func TestConvergence(t *testing.T) {
	r := NewRegistry()

	conv, err := r.Convergence(context.Background(), Run{Model: "decay", Method: "dopri54"}, []int{8, 16, 32})
	require.NoError(t, err)
	assert.InDelta(t, 5, conv.Order(), 0.3)

	conv, err = r.Convergence(context.Background(), Run{Model: "oscillator", Method: "rk4", Tf: 2}, []int{32, 64, 128})
	require.NoError(t, err)
	assert.InDelta(t, 4, conv.Order(), 0.3)
}

func TestLyapunov(t *testing.T) {
	r := NewRegistry()

	lambda, err := r.Lyapunov(context.Background(), Run{
		Model: "decay", Method: "dopri54", Tf: 5, N: 100, Config: dynamo.DefaultConfig(),
	}, 10)
	require.NoError(t, err)
	assert.InDelta(t, -1, lambda, 1e-6)
}

func TestFromConfig(t *testing.T) {
	cfg := config.GetPreset("decay", "stiff")
	require.NotNil(t, cfg)

	run := FromConfig(cfg)
	assert.Equal(t, "decay", run.Model)
	assert.Equal(t, cfg.N, run.N)
	assert.Equal(t, cfg.Dynamo(), run.Config)
	assert.Equal(t, 1000.0, run.Params["rate"])
}
