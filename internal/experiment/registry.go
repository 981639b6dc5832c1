package experiment

import (
	"context"
	"fmt"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/san-kum/rkode/internal/analysis"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/models"
	"github.com/san-kum/rkode/internal/sim"
)

// DefaultSeparation is the initial distance used by Lyapunov.
const DefaultSeparation = 1e-6

type entry struct {
	info        Info
	run         func(ctx context.Context, run Run, opts []sim.Option) (*Outcome, error)
	sweep       func(ctx context.Context, run Run, x0s []dynamo.State, workers int, opts []sim.Option) ([]*Outcome, error)
	convergence func(ctx context.Context, run Run, ns []int) (*analysis.Convergence, error)
	lyapunov    func(ctx context.Context, run Run, segments int, opts []sim.Option) (float64, error)
}

// Registry resolves model names to typed problems.
type Registry struct {
	entries map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}

	register(r, models.NewDecay())
	register(r, models.NewLogistic())
	register(r, models.NewOscillator())
	register(r, models.NewVanDerPol())
	register(r, models.NewLorenz())
	register(r, models.NewSpringChain())

	return r
}

func register[P models.Params](r *Registry, m models.Model[P]) {
	defaults := make(map[string]any)
	if err := mapstructure.Decode(m.Defaults, &defaults); err != nil {
		panic(fmt.Sprintf("experiment: %s defaults: %v", m.Name, err))
	}
	exact := false
	if m.Exact != nil {
		_, exact = m.Exact(0, 0, m.Initial(m.Defaults), m.Defaults)
	}

	r.entries[m.Name] = entry{
		info: Info{
			Name:         m.Name,
			Description:  m.Description,
			Defaults:     defaults,
			X0:           m.Initial(m.Defaults),
			Tf:           m.Tf,
			Exact:        exact,
			Conservative: m.Energy != nil,
		},
		run: func(ctx context.Context, run Run, opts []sim.Option) (*Outcome, error) {
			b, err := bind(m, run)
			if err != nil {
				return nil, err
			}
			return b.run(ctx, opts)
		},
		sweep: func(ctx context.Context, run Run, x0s []dynamo.State, workers int, opts []sim.Option) ([]*Outcome, error) {
			b, err := bind(m, run)
			if err != nil {
				return nil, err
			}
			return b.sweep(ctx, x0s, workers, opts)
		},
		convergence: func(ctx context.Context, run Run, ns []int) (*analysis.Convergence, error) {
			b, err := bind(m, run)
			if err != nil {
				return nil, err
			}
			return b.convergence(ctx, ns)
		},
		lyapunov: func(ctx context.Context, run Run, segments int, opts []sim.Option) (float64, error) {
			b, err := bind(m, run)
			if err != nil {
				return 0, err
			}
			return b.lyapunov(ctx, DefaultSeparation, segments, opts)
		},
	}
}

func (r *Registry) lookup(name string) (entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return entry{}, fmt.Errorf("%w: model %s (available: %v)", ErrUnknown, name, r.Names())
	}
	return e, nil
}

// Names lists the registered models in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Describe(name string) (Info, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Info{}, err
	}
	return e.info, nil
}

// Run integrates one problem. Run-time failures return the partial outcome
// together with the error.
func (r *Registry) Run(ctx context.Context, run Run, opts ...sim.Option) (*Outcome, error) {
	e, err := r.lookup(run.Model)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, run, opts)
}

// Sweep integrates run once per initial state with at most workers runs in
// flight. Outcomes are in the order of x0s.
func (r *Registry) Sweep(ctx context.Context, run Run, x0s []dynamo.State, workers int, opts ...sim.Option) ([]*Outcome, error) {
	e, err := r.lookup(run.Model)
	if err != nil {
		return nil, err
	}
	return e.sweep(ctx, run, x0s, workers, opts)
}

// Convergence estimates the order of run.Method on the model with fixed
// step counts ns; the exact solution is the reference when one exists.
func (r *Registry) Convergence(ctx context.Context, run Run, ns []int) (*analysis.Convergence, error) {
	e, err := r.lookup(run.Model)
	if err != nil {
		return nil, err
	}
	return e.convergence(ctx, run, ns)
}

func (r *Registry) Lyapunov(ctx context.Context, run Run, segments int, opts ...sim.Option) (float64, error) {
	e, err := r.lookup(run.Model)
	if err != nil {
		return 0, err
	}
	return e.lyapunov(ctx, run, segments, opts)
}
