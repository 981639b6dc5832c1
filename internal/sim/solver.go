package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/san-kum/rkode/internal/control"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/integrators"
	"github.com/san-kum/rkode/internal/tableau"
)

type settings struct {
	logger    *slog.Logger
	observers []Observer
	metrics   func() []Metric
}

// Option configures a Solver.
type Option func(*settings)

// WithLogger sets the structured logger. Rejections are logged at debug
// level and run summaries at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithObserver registers a sink for every attempted step.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observers = append(s.observers, o)
	}
}

// WithMetrics installs a factory called once per run, so metric state is
// never shared between runs.
func WithMetrics(factory func() []Metric) Option {
	return func(s *settings) {
		s.metrics = factory
	}
}

type Solver[P any] struct {
	tab *tableau.Tableau
	settings
}

func New[P any](tab *tableau.Tableau, opts ...Option) *Solver[P] {
	s := &Solver[P]{tab: tab}
	for _, opt := range opts {
		opt(&s.settings)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("method", tab.Name())
	return s
}

func (s *Solver[P]) Tableau() *tableau.Tableau { return s.tab }

// Integrate solves prob over [T0, Tf]. Failures of F are returned unchanged;
// non-convergence is reported as a *dynamo.SimulationError wrapping
// dynamo.ErrMaxRetries or dynamo.ErrStepTooSmall. The partial result is
// returned alongside run-time errors.
func (s *Solver[P]) Integrate(ctx context.Context, prob Problem[P], cfg dynamo.Config) (*Result, error) {
	if err := validate(prob, cfg); err != nil {
		return nil, err
	}

	adaptive := cfg.Adaptive
	if adaptive && !s.tab.Embedded() {
		s.logger.Warn("tableau has no error estimate, using fixed steps")
		adaptive = false
	}

	r := &run[P]{
		solver:  s,
		prob:    prob,
		cfg:     cfg,
		stepper: integrators.NewStepper[P](s.tab),
		res: &Result{
			Method:   s.tab.Name(),
			Adaptive: adaptive,
			T:        make([]float64, 0, prob.N+1),
			X:        make([]dynamo.State, 0, prob.N+1),
			History:  NewHistory(cfg.HistoryLimit),
			Metrics:  make(map[string]float64),
			Stats:    Stats{MinDt: math.Inf(1)},
		},
	}
	if s.metrics != nil {
		r.metrics = s.metrics()
		for _, m := range r.metrics {
			m.Reset()
		}
	}

	var err error
	if adaptive {
		err = r.adaptive(ctx)
	} else {
		err = r.fixed(ctx)
	}
	r.finish()

	if err != nil {
		s.logger.Info("integration stopped", "error", err,
			"t", r.res.T[len(r.res.T)-1], "accepted", r.res.Stats.Accepted, "rejected", r.res.Stats.Rejected)
		return r.res, err
	}
	s.logger.Info("integration finished", "adaptive", adaptive,
		"accepted", r.res.Stats.Accepted, "rejected", r.res.Stats.Rejected,
		"evaluations", r.res.Stats.Evaluations)
	return r.res, nil
}

func validate[P any](prob Problem[P], cfg dynamo.Config) error {
	if prob.F == nil {
		return fmt.Errorf("%w: right-hand side is nil", dynamo.ErrInvalidConfig)
	}
	if prob.N < 1 {
		return fmt.Errorf("%w: N must be at least 1, got %d", dynamo.ErrInvalidConfig, prob.N)
	}
	if math.IsNaN(prob.T0) || math.IsInf(prob.T0, 0) || math.IsNaN(prob.Tf) || math.IsInf(prob.Tf, 0) {
		return fmt.Errorf("%w: interval [%g, %g] is not finite", dynamo.ErrInvalidConfig, prob.T0, prob.Tf)
	}
	if !(prob.Tf > prob.T0) {
		return fmt.Errorf("%w: tf must exceed t0, got [%g, %g]", dynamo.ErrInvalidConfig, prob.T0, prob.Tf)
	}
	if len(prob.X0) == 0 {
		return fmt.Errorf("%w: initial state is empty", dynamo.ErrInvalidConfig)
	}
	if !prob.X0.IsValid() {
		return fmt.Errorf("%w: initial state %v", dynamo.ErrInvalidState, prob.X0)
	}
	return cfg.Validate()
}

// run is the state owned by one Integrate call.
type run[P any] struct {
	solver  *Solver[P]
	prob    Problem[P]
	cfg     dynamo.Config
	stepper *integrators.Stepper[P]
	metrics []Metric
	res     *Result
}

func (r *run[P]) record(t float64, x dynamo.State) {
	r.res.T = append(r.res.T, t)
	r.res.X = append(r.res.X, x)
	for _, m := range r.metrics {
		m.Observe(x, t)
	}
}

func (r *run[P]) notify(a Attempt) {
	for _, o := range r.solver.observers {
		o.OnAttempt(a)
	}
}

func (r *run[P]) accepted(dt float64) {
	r.res.Stats.Accepted++
	r.res.Stats.MinDt = math.Min(r.res.Stats.MinDt, dt)
	r.res.Stats.MaxDt = math.Max(r.res.Stats.MaxDt, dt)
}

func (r *run[P]) fixed(ctx context.Context) error {
	p := r.prob
	dt := (p.Tf - p.T0) / float64(p.N)

	x := p.X0.Clone()
	r.res.History.seed(dt, control.InitialRatio, len(x))
	r.record(p.T0, x)

	for k := 0; k < p.N; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := r.res.T[k]
		next, errVec, err := r.stepper.Step(p.F, t, x, dt, p.Aux)
		if err != nil {
			return err
		}
		if !next.IsValid() {
			return &dynamo.SimulationError{Step: k, Time: t, Dt: dt, State: x, Wrapped: dynamo.ErrInvalidState}
		}

		tNext := p.T0 + float64(k+1)*dt
		if k == p.N-1 {
			tNext = p.Tf
		}

		x = next
		r.res.History.fixed(errVec)
		r.accepted(dt)
		r.record(tNext, x)
		r.notify(Attempt{Step: k, T: t, Dt: dt, Next: dt, Err: errVec, Accepted: true})
	}
	return nil
}

func (r *run[P]) adaptive(ctx context.Context) error {
	p := r.prob
	tol := r.cfg.Tolerances
	maxRetries := r.cfg.Retries()
	pi := control.NewPI(tol, r.solver.tab.ControlOrder())

	t := p.T0
	x := p.X0.Clone()
	dt := (p.Tf - p.T0) / float64(p.N)

	r.res.History.seed(dt, pi.Previous(), len(x))
	r.record(t, x)

	for step := 0; t < p.Tf; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for retry := 0; ; retry++ {
			h := dt
			last := t+h >= p.Tf
			if last {
				h = p.Tf - t
			}

			xTrial, errVec, err := r.stepper.Step(p.F, t, x, h, p.Aux)
			if err != nil {
				return err
			}

			var d control.Decision
			if xTrial.IsValid() {
				d = pi.Decide(errVec, xTrial, h)
			} else {
				d = control.Decision{Ratio: math.Inf(1), Factor: tol.FacMin, Next: h * tol.FacMin}
			}

			r.res.History.attempt(d.Next)
			r.notify(Attempt{
				Step: step, Retry: retry, T: t, Dt: h, Next: d.Next,
				Ratio: d.Ratio, Err: errVec, Accepted: d.Accept, Adaptive: true,
			})

			if d.Accept {
				if last {
					t = p.Tf
				} else {
					t += h
				}
				x = xTrial
				dt = d.Next
				r.res.History.accept(d.Ratio, errVec)
				r.accepted(h)
				r.record(t, x)
				break
			}

			r.res.Stats.Rejected++
			r.solver.logger.Debug("step rejected", "t", t, "dt", h, "ratio", d.Ratio, "next", d.Next, "retry", retry)

			if retry+1 > maxRetries {
				return &dynamo.SimulationError{Step: step, Time: t, Dt: h, State: x, Wrapped: dynamo.ErrMaxRetries}
			}
			if d.Next < r.cfg.MinDt || t+d.Next == t {
				return &dynamo.SimulationError{Step: step, Time: t, Dt: d.Next, State: x, Wrapped: dynamo.ErrStepTooSmall}
			}
			dt = d.Next
		}
	}
	return nil
}

func (r *run[P]) finish() {
	r.res.Stats.Evaluations = r.stepper.Evaluations()
	if r.res.Stats.Accepted == 0 {
		r.res.Stats.MinDt = 0
	}
	for _, m := range r.metrics {
		r.res.Metrics[m.Name()] = m.Value()
	}
}
