package analysis

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/integrators"
	"github.com/san-kum/rkode/internal/sim"
	"github.com/san-kum/rkode/internal/tableau"
)

// Sample is the final-time error of one fixed-step run.
type Sample struct {
	N   int
	Dt  float64
	Err float64
}

type Convergence struct {
	Method  string
	Samples []Sample
	// Orders[i] is the observed order between Samples[i] and Samples[i+1].
	Orders []float64
}

// Order returns the observed order of the two finest runs.
func (c *Convergence) Order() float64 {
	if len(c.Orders) == 0 {
		return math.NaN()
	}
	return c.Orders[len(c.Orders)-1]
}

// EstimateOrder integrates prob with a fixed number of steps for each N in
// ns and compares the final states with ref. A nil ref is replaced by a run
// with four times the largest N.
func EstimateOrder[P any](ctx context.Context, tab *tableau.Tableau, prob sim.Problem[P], ref dynamo.State, ns []int) (*Convergence, error) {
	if len(ns) < 2 {
		return nil, fmt.Errorf("%w: need at least two step counts, got %d", dynamo.ErrInvalidConfig, len(ns))
	}
	ns = slices.Clone(ns)
	slices.Sort(ns)

	solver := sim.New[P](tab)
	cfg := dynamo.DefaultConfig()

	final := func(n int) (dynamo.State, error) {
		p := prob
		p.N = n
		res, err := solver.Integrate(ctx, p, cfg)
		if err != nil {
			return nil, err
		}
		_, x := res.Final()
		return x, nil
	}

	if ref == nil {
		x, err := final(4 * ns[len(ns)-1])
		if err != nil {
			return nil, fmt.Errorf("reference run: %w", err)
		}
		ref = x
	}

	conv := &Convergence{Method: tab.Name()}
	for _, n := range ns {
		x, err := final(n)
		if err != nil {
			return nil, fmt.Errorf("run with N=%d: %w", n, err)
		}
		conv.Samples = append(conv.Samples, Sample{
			N:   n,
			Dt:  (prob.Tf - prob.T0) / float64(n),
			Err: x.Sub(ref).MaxAbs(),
		})
	}

	for i := 1; i < len(conv.Samples); i++ {
		a, b := conv.Samples[i-1], conv.Samples[i]
		conv.Orders = append(conv.Orders, math.Log(a.Err/b.Err)/math.Log(a.Dt/b.Dt))
	}
	return conv, nil
}

// EstimatorOrder compares the embedded error estimate of one step of size dt
// with one of size dt/2. The result approaches q+1, where q is the order of
// the lower-order member of the pair.
func EstimatorOrder[P any](tab *tableau.Tableau, f dynamo.Func[P], t0 float64, x0 dynamo.State, aux P, dt float64) (float64, error) {
	if !tab.Embedded() {
		return 0, fmt.Errorf("%w: %s has no error estimate", dynamo.ErrInvalidTableau, tab.Name())
	}

	st := integrators.NewStepper[P](tab)
	_, e1, err := st.Step(f, t0, x0, dt, aux)
	if err != nil {
		return 0, err
	}
	_, e2, err := st.Step(f, t0, x0, dt/2, aux)
	if err != nil {
		return 0, err
	}
	return math.Log2(e1.Norm() / e2.Norm()), nil
}
