package sim

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rkode/internal/control"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/tableau"
)

type rate struct{ k float64 }

func decay(_ float64, x dynamo.State, p rate) (dynamo.State, error) {
	return dynamo.State{-p.k * x[0]}, nil
}

func vanDerPol(_ float64, x dynamo.State, mu float64) (dynamo.State, error) {
	return dynamo.State{x[1], mu*(1-x[0]*x[0])*x[1] - x[0]}, nil
}

func decayProblem(tf float64, n int) Problem[rate] {
	return Problem[rate]{F: decay, T0: 0, Tf: tf, N: n, X0: dynamo.State{1}, Aux: rate{k: 1}}
}

func adaptiveConfig() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	cfg.Adaptive = true
	return cfg
}

type attemptLog struct{ attempts []Attempt }

func (l *attemptLog) OnAttempt(a Attempt) { l.attempts = append(l.attempts, a) }

type countMetric struct{ n int }

func (c *countMetric) Name() string                  { return "count" }
func (c *countMetric) Observe(dynamo.State, float64) { c.n++ }
func (c *countMetric) Value() float64                { return float64(c.n) }
func (c *countMetric) Reset()                        { c.n = 0 }

func expectStrictlyIncreasing(ts []float64) {
	for i := 1; i < len(ts); i++ {
		ExpectWithOffset(1, ts[i]).To(BeNumerically(">", ts[i-1]), "T[%d]", i)
	}
}

var _ = Describe("Solver", func() {
	var (
		ctx    context.Context
		solver *Solver[rate]
	)

	BeforeEach(func() {
		ctx = context.Background()
		solver = New[rate](tableau.DormandPrince54())
	})

	Context("in fixed-step mode", func() {
		It("integrates exponential decay to e^-1 with N=10", func() {
			res, err := solver.Integrate(ctx, decayProblem(1, 10), dynamo.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Adaptive).To(BeFalse())
			Expect(res.T).To(HaveLen(11))
			Expect(res.X).To(HaveLen(11))
			Expect(res.T[0]).To(Equal(0.0))
			Expect(res.T[10]).To(Equal(1.0))
			Expect(res.X[10][0]).To(BeNumerically("~", math.Exp(-1), 1e-5))
			expectStrictlyIncreasing(res.T)

			Expect(res.Stats.Accepted).To(Equal(10))
			Expect(res.Stats.Rejected).To(BeZero())
			Expect(res.Stats.Evaluations).To(Equal(70))
		})

		It("records error vectors without touching the controller history", func() {
			res, err := solver.Integrate(ctx, decayProblem(1, 10), dynamo.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.History.E()).To(HaveLen(11))
			Expect(res.History.E()[0]).To(Equal(dynamo.State{0}))
			Expect(res.History.R()).To(Equal([]float64{control.InitialRatio}))
			Expect(res.History.DT()).To(Equal([]float64{0.1}))
		})

		It("is bit-identical across repeated calls", func() {
			a, err := solver.Integrate(ctx, decayProblem(1, 10), dynamo.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			b, err := solver.Integrate(ctx, decayProblem(1, 10), dynamo.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			Expect(b.T).To(Equal(a.T))
			Expect(b.X).To(Equal(a.X))
		})

		It("falls back to fixed steps for tableaus without an error estimate", func() {
			rk4 := New[rate](tableau.RK4())
			res, err := rk4.Integrate(ctx, decayProblem(1, 20), adaptiveConfig())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Adaptive).To(BeFalse())
			Expect(res.T).To(HaveLen(21))
			Expect(res.X[20][0]).To(BeNumerically("~", math.Exp(-1), 1e-7))
		})

		It("stops on a state containing NaN", func() {
			f := func(t float64, x dynamo.State, _ rate) (dynamo.State, error) {
				if t > 0.45 {
					return dynamo.State{math.NaN()}, nil
				}
				return dynamo.State{-x[0]}, nil
			}
			res, err := solver.Integrate(ctx, Problem[rate]{F: f, Tf: 1, N: 10, X0: dynamo.State{1}}, dynamo.DefaultConfig())
			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(4))
			Expect(res.T).To(HaveLen(5))
		})
	})

	Context("in adaptive mode", func() {
		It("accepts every step of the decay scenario and lands on tf", func() {
			log := &attemptLog{}
			solver = New[rate](tableau.DormandPrince54(), WithObserver(log))

			res, err := solver.Integrate(ctx, decayProblem(1, 10), adaptiveConfig())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Adaptive).To(BeTrue())
			Expect(res.Stats.Rejected).To(BeZero())
			Expect(res.Stats.Accepted).To(BeNumerically("<", 50))
			Expect(res.T[0]).To(Equal(0.0))
			Expect(res.T[len(res.T)-1]).To(Equal(1.0))
			Expect(res.X[len(res.X)-1][0]).To(BeNumerically("~", math.Exp(-1), 1e-6))
			expectStrictlyIncreasing(res.T)

			for _, a := range log.attempts {
				Expect(a.Accepted).To(BeTrue())
				Expect(a.T + a.Dt).To(BeNumerically("<=", 1.0+1e-12))
			}
		})

		It("keeps the diagnostic series aligned with the attempts", func() {
			res, err := solver.Integrate(ctx, decayProblem(10, 1), adaptiveConfig())
			Expect(err).NotTo(HaveOccurred())

			attempts := res.Stats.Accepted + res.Stats.Rejected
			Expect(res.History.DT()).To(HaveLen(attempts + 1))
			Expect(res.History.R()).To(HaveLen(res.Stats.Accepted + 1))
			Expect(res.History.E()).To(HaveLen(res.Stats.Accepted + 1))
			Expect(res.History.DT()[0]).To(Equal(10.0))
			Expect(res.History.R()[0]).To(Equal(control.InitialRatio))
		})

		It("retries rejected steps without advancing the PI history", func() {
			log := &attemptLog{}
			solver = New[rate](tableau.DormandPrince54(), WithObserver(log))

			res, err := solver.Integrate(ctx, decayProblem(10, 1), adaptiveConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stats.Rejected).To(BeNumerically(">=", 1))
			Expect(res.T[len(res.T)-1]).To(Equal(10.0))
			Expect(res.X[len(res.X)-1][0]).To(BeNumerically("~", math.Exp(-10), 1e-6))

			// The first attempt is rejected and retried from the same point.
			Expect(log.attempts[0].Accepted).To(BeFalse())
			Expect(log.attempts[1].T).To(Equal(log.attempts[0].T))
			Expect(log.attempts[1].Dt).To(BeNumerically("<", log.attempts[0].Dt))

			// Every accepted factor uses the ratio of the previous accepted
			// step, whatever was rejected in between.
			tol := dynamo.DefaultTolerances()
			kp, ki := control.Gains(5)
			ratios := res.History.R()
			k := 0
			for _, a := range log.attempts {
				if !a.Accepted {
					continue
				}
				k++
				prev, r := ratios[k-1], math.Max(ratios[k], control.MinRatio)
				want := math.Max(tol.FacMin, math.Min(math.Pow(tol.EpsTol/r, ki)*math.Pow(prev/r, kp), tol.FacMax))
				Expect(a.Next / a.Dt).To(BeNumerically("~", want, 1e-9))
			}
			Expect(k).To(Equal(res.Stats.Accepted))
		})

		It("keeps every step-size factor inside [facmin, facmax]", func() {
			log := &attemptLog{}
			vdp := New[float64](tableau.DormandPrince54(), WithObserver(log))

			prob := Problem[float64]{F: vanDerPol, T0: 0, Tf: 20, N: 10, X0: dynamo.State{2, 0}, Aux: 5}
			res, err := vdp.Integrate(ctx, prob, adaptiveConfig())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Stats.Rejected).To(BeNumerically(">", 0))
			Expect(res.T[len(res.T)-1]).To(Equal(20.0))
			expectStrictlyIncreasing(res.T)

			tol := dynamo.DefaultTolerances()
			for _, a := range log.attempts {
				factor := a.Next / a.Dt
				Expect(factor).To(BeNumerically(">=", tol.FacMin*(1-1e-12)))
				Expect(factor).To(BeNumerically("<=", tol.FacMax*(1+1e-12)))
				Expect(a.T + a.Dt).To(BeNumerically("<=", 20.0+1e-12))
			}
		})

		It("bounds the diagnostic history when a limit is set", func() {
			cfg := adaptiveConfig()
			cfg.HistoryLimit = 4

			res, err := solver.Integrate(ctx, decayProblem(10, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.History.DT()).To(HaveLen(4))
			Expect(res.History.R()).To(HaveLen(4))
			dt, r, e := res.History.Recorded()
			Expect(dt).To(Equal(res.Stats.Accepted + res.Stats.Rejected + 1))
			Expect(r).To(Equal(res.Stats.Accepted + 1))
			Expect(e).To(Equal(r))

			// The trajectory itself is never truncated.
			Expect(res.T).To(HaveLen(res.Stats.Accepted + 1))
		})

		It("forwards the auxiliary bundle to every evaluation", func() {
			prob := decayProblem(1, 10)
			prob.Aux = rate{k: 3}
			res, err := solver.Integrate(ctx, prob, adaptiveConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.X[len(res.X)-1][0]).To(BeNumerically("~", math.Exp(-3), 1e-6))
		})
	})

	Context("when a step cannot converge", func() {
		var stiff Problem[rate]

		BeforeEach(func() {
			stiff = Problem[rate]{F: decay, T0: 0, Tf: 1, N: 1, X0: dynamo.State{1}, Aux: rate{k: 1000}}
		})

		It("reports too many retries", func() {
			cfg := adaptiveConfig()
			cfg.MaxRetries = 1

			res, err := solver.Integrate(ctx, stiff, cfg)
			Expect(errors.Is(err, dynamo.ErrMaxRetries)).To(BeTrue())

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Time).To(Equal(0.0))
			Expect(res).NotTo(BeNil())
			Expect(res.T).To(Equal([]float64{0}))
			Expect(res.Stats.Rejected).To(Equal(2))
		})

		It("reports a step below the minimum", func() {
			cfg := adaptiveConfig()
			cfg.MinDt = 0.5

			_, err := solver.Integrate(ctx, stiff, cfg)
			Expect(errors.Is(err, dynamo.ErrStepTooSmall)).To(BeTrue())
		})

		It("gives up on a right-hand side that keeps producing NaN", func() {
			f := func(t float64, x dynamo.State, _ rate) (dynamo.State, error) {
				if t > 0.5 {
					return dynamo.State{math.NaN()}, nil
				}
				return dynamo.State{-x[0]}, nil
			}
			_, err := solver.Integrate(ctx, Problem[rate]{F: f, Tf: 1, N: 4, X0: dynamo.State{1}}, adaptiveConfig())
			Expect(errors.Is(err, dynamo.ErrMaxRetries) || errors.Is(err, dynamo.ErrStepTooSmall)).To(BeTrue())
		})
	})

	Context("when the right-hand side fails", func() {
		It("returns the caller's error unchanged", func() {
			boom := errors.New("outside the domain of f")
			f := func(t float64, x dynamo.State, _ rate) (dynamo.State, error) {
				if t > 0.3 {
					return nil, boom
				}
				return dynamo.State{-x[0]}, nil
			}

			for _, cfg := range []dynamo.Config{dynamo.DefaultConfig(), adaptiveConfig()} {
				res, err := solver.Integrate(ctx, Problem[rate]{F: f, Tf: 1, N: 10, X0: dynamo.State{1}}, cfg)
				Expect(err).To(BeIdenticalTo(boom))
				Expect(res).NotTo(BeNil())
			}
		})
	})

	Context("with invalid input", func() {
		DescribeTable("rejects the call before integrating",
			func(mutate func(*Problem[rate], *dynamo.Config), target error) {
				prob := decayProblem(1, 10)
				cfg := adaptiveConfig()
				mutate(&prob, &cfg)

				res, err := solver.Integrate(ctx, prob, cfg)
				Expect(errors.Is(err, target)).To(BeTrue(), "got %v", err)
				Expect(res).To(BeNil())
			},
			Entry("nil f", func(p *Problem[rate], _ *dynamo.Config) { p.F = nil }, dynamo.ErrInvalidConfig),
			Entry("zero N", func(p *Problem[rate], _ *dynamo.Config) { p.N = 0 }, dynamo.ErrInvalidConfig),
			Entry("empty interval", func(p *Problem[rate], _ *dynamo.Config) { p.Tf = p.T0 }, dynamo.ErrInvalidConfig),
			Entry("reversed interval", func(p *Problem[rate], _ *dynamo.Config) { p.Tf = -1 }, dynamo.ErrInvalidConfig),
			Entry("infinite tf", func(p *Problem[rate], _ *dynamo.Config) { p.Tf = math.Inf(1) }, dynamo.ErrInvalidConfig),
			Entry("empty x0", func(p *Problem[rate], _ *dynamo.Config) { p.X0 = nil }, dynamo.ErrInvalidConfig),
			Entry("NaN x0", func(p *Problem[rate], _ *dynamo.Config) { p.X0 = dynamo.State{math.NaN()} }, dynamo.ErrInvalidState),
			Entry("non-positive abstol", func(_ *Problem[rate], c *dynamo.Config) { c.Tolerances.AbsTol = 0 }, dynamo.ErrInvalidConfig),
			Entry("facmin above one", func(_ *Problem[rate], c *dynamo.Config) { c.Tolerances.FacMin = 2 }, dynamo.ErrInvalidConfig),
			Entry("negative retries", func(_ *Problem[rate], c *dynamo.Config) { c.MaxRetries = -1 }, dynamo.ErrInvalidConfig),
		)
	})

	It("stops when the context is canceled", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		res, err := solver.Integrate(canceled, decayProblem(1, 10), adaptiveConfig())
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.T).To(HaveLen(1))
	})

	It("builds fresh metrics for every run", func() {
		solver = New[rate](tableau.DormandPrince54(), WithMetrics(func() []Metric {
			return []Metric{&countMetric{}}
		}))

		for i := 0; i < 2; i++ {
			res, err := solver.Integrate(ctx, decayProblem(1, 10), dynamo.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Metrics).To(HaveKeyWithValue("count", 11.0))
		}
	})
})

var _ = Describe("Ensemble", func() {
	It("integrates independent initial conditions concurrently", func() {
		solver := New[rate](tableau.DormandPrince54())
		problems := make([]Problem[rate], 8)
		for i := range problems {
			problems[i] = decayProblem(1, 10)
			problems[i].X0 = dynamo.State{float64(i + 1)}
		}

		results, err := NewEnsemble(solver, 3).Run(context.Background(), problems, adaptiveConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(8))

		for i, res := range results {
			_, x := res.Final()
			Expect(x[0]).To(BeNumerically("~", float64(i+1)*math.Exp(-1), 1e-5))
		}
	})

	It("returns the first failure", func() {
		solver := New[rate](tableau.DormandPrince54())
		problems := []Problem[rate]{decayProblem(1, 10), {F: decay, Tf: 1, N: 0, X0: dynamo.State{1}}}

		_, err := NewEnsemble(solver, 0).Run(context.Background(), problems, adaptiveConfig())
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})
})
