package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/san-kum/rkode/internal/analysis"
	"github.com/san-kum/rkode/internal/config"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/metrics"
	"github.com/san-kum/rkode/internal/models"
	"github.com/san-kum/rkode/internal/sim"
	"github.com/san-kum/rkode/internal/tableau"
)

var ErrUnknown = errors.New("unknown name")

// Run is an untyped description of one integration. A nil X0 selects the
// model's initial state; a zero Tf selects T0 plus the model's horizon.
type Run struct {
	Model  string
	Method string
	T0     float64
	Tf     float64
	N      int
	X0     dynamo.State
	Params map[string]any
	Config dynamo.Config
}

func FromConfig(c *config.Config) Run {
	return Run{
		Model:  c.Model,
		Method: c.Method,
		T0:     c.T0,
		Tf:     c.Tf,
		N:      c.N,
		X0:     dynamo.State(c.X0).Clone(),
		Params: c.Params,
		Config: c.Dynamo(),
	}
}

// Outcome is a finished run with the values it was resolved to.
type Outcome struct {
	*sim.Result
	Model  string
	T0     float64
	Tf     float64
	N      int
	X0     dynamo.State
	Params map[string]any

	// Exact is the closed-form state at Tf, nil when the model has none.
	Exact       dynamo.State
	GlobalError float64
}

type Info struct {
	Name         string
	Description  string
	Defaults     map[string]any
	X0           dynamo.State
	Tf           float64
	Exact        bool
	Conservative bool
}

// binding is a model resolved against one Run.
type binding[P models.Params] struct {
	model  models.Model[P]
	params P
	prob   sim.Problem[P]
	tab    *tableau.Tableau
	cfg    dynamo.Config
}

func bind[P models.Params](m models.Model[P], run Run) (*binding[P], error) {
	tab, err := tableau.Lookup(run.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	p := m.Defaults
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(run.Params); err != nil {
		return nil, fmt.Errorf("%w: %s params: %v", dynamo.ErrInvalidConfig, m.Name, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	initial := m.Initial(p)
	x0 := run.X0.Clone()
	if len(x0) == 0 {
		x0 = initial
	}
	if err := checkDim(m, x0, len(initial)); err != nil {
		return nil, err
	}
	tf := run.Tf
	if tf == 0 {
		tf = run.T0 + m.Tf
	}

	return &binding[P]{
		model:  m,
		params: p,
		tab:    tab,
		cfg:    run.Config,
		prob: sim.Problem[P]{
			F: m.F, J: m.J,
			T0: run.T0, Tf: tf, N: run.N,
			X0: x0, Aux: p,
		},
	}, nil
}

// checkDim rejects an x0 the model cannot be evaluated on. dim is the
// length of the model's own initial state.
func checkDim[P models.Params](m models.Model[P], x0 dynamo.State, dim int) error {
	if m.Elementwise && len(x0) > 0 {
		return nil
	}
	if len(x0) != dim {
		return fmt.Errorf("%w: %s expects a %d-dimensional x0, got %d",
			dynamo.ErrDimensionMismatch, m.Name, dim, len(x0))
	}
	return nil
}

// exact returns the closed-form solution through the initial value, or
// nil.
func (b *binding[P]) exact() func(t float64) dynamo.State {
	if b.model.Exact == nil {
		return nil
	}
	if _, ok := b.model.Exact(b.prob.T0, b.prob.T0, b.prob.X0, b.params); !ok {
		return nil
	}
	return func(t float64) dynamo.State {
		x, _ := b.model.Exact(t, b.prob.T0, b.prob.X0, b.params)
		return x
	}
}

// metrics builds fresh per-run metrics. The global error is only
// meaningful when every run starts from the bound initial state.
func (b *binding[P]) metrics(withExact bool) []sim.Metric {
	ms := []sim.Metric{metrics.NewMaxNorm(), metrics.NewStability(metrics.DefaultBound)}
	if b.model.Energy != nil {
		p := b.params
		ms = append(ms, metrics.NewEnergyDrift(func(x dynamo.State) float64 { return b.model.Energy(x, p) }))
	}
	if !withExact {
		return ms
	}
	if exact := b.exact(); exact != nil {
		ms = append(ms, metrics.NewGlobalError(exact))
	}
	return ms
}

func (b *binding[P]) solver(withExact bool, opts []sim.Option) *sim.Solver[P] {
	factory := func() []sim.Metric { return b.metrics(withExact) }
	opts = append(opts[:len(opts):len(opts)], sim.WithMetrics(factory))
	return sim.New[P](b.tab, opts...)
}

func (b *binding[P]) effectiveParams() (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(b.params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *binding[P]) outcome(res *sim.Result, x0 dynamo.State) (*Outcome, error) {
	params, err := b.effectiveParams()
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Result: res,
		Model:  b.model.Name,
		T0:     b.prob.T0,
		Tf:     b.prob.Tf,
		N:      b.prob.N,
		X0:     x0,
		Params: params,
	}

	if b.model.Exact != nil {
		tf, xf := res.Final()
		if x, ok := b.model.Exact(tf, b.prob.T0, x0, b.params); ok {
			out.Exact = x
			out.GlobalError = xf.Sub(x).MaxAbs()
		}
	}
	return out, nil
}

// run integrates the bound problem. A partial outcome accompanies run-time
// failures.
func (b *binding[P]) run(ctx context.Context, opts []sim.Option) (*Outcome, error) {
	res, err := b.solver(true, opts).Integrate(ctx, b.prob, b.cfg)
	if res == nil {
		return nil, err
	}
	out, oerr := b.outcome(res, b.prob.X0)
	if oerr != nil {
		return nil, oerr
	}
	return out, err
}

// sweep integrates the bound problem once per initial state, concurrently.
func (b *binding[P]) sweep(ctx context.Context, x0s []dynamo.State, workers int, opts []sim.Option) ([]*Outcome, error) {
	problems := make([]sim.Problem[P], len(x0s))
	for i, x0 := range x0s {
		if err := checkDim(b.model, x0, len(b.model.Initial(b.params))); err != nil {
			return nil, fmt.Errorf("initial state %d: %w", i, err)
		}
		problems[i] = b.prob
		problems[i].X0 = x0
	}

	results, err := sim.NewEnsemble(b.solver(false, opts), workers).Run(ctx, problems, b.cfg)
	if err != nil {
		return nil, err
	}

	out := make([]*Outcome, len(results))
	for i, res := range results {
		if out[i], err = b.outcome(res, x0s[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *binding[P]) convergence(ctx context.Context, ns []int) (*analysis.Convergence, error) {
	var ref dynamo.State
	if exact := b.exact(); exact != nil {
		ref = exact(b.prob.Tf)
	}
	return analysis.EstimateOrder(ctx, b.tab, b.prob, ref, ns)
}

func (b *binding[P]) lyapunov(ctx context.Context, d0 float64, segments int, opts []sim.Option) (float64, error) {
	return analysis.LyapunovExponent(ctx, sim.New[P](b.tab, opts...), b.prob, b.cfg, d0, segments)
}
