package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/sim"
)

// LyapunovExponent estimates the largest Lyapunov exponent using the
// trajectory separation method. A positive value indicates chaos.
//
// Algorithm:
// 1. Integrate x and a copy perturbed by d0 over each of segments equal
// sub-intervals of [T0, Tf]
// 2. Accumulate ln(|δx|/d0) at the end of every segment
// 3. Pull the perturbed state back to distance d0 along δx
//
// λ ≈ Σ ln(|δx|/d0) / (Tf - T0)
func LyapunovExponent[P any](ctx context.Context, solver *sim.Solver[P], prob sim.Problem[P], cfg dynamo.Config, d0 float64, segments int) (float64, error) {
	if segments < 1 || !(d0 > 0) {
		return 0, fmt.Errorf("%w: need segments >= 1 and d0 > 0, got %d and %g",
			dynamo.ErrInvalidConfig, segments, d0)
	}

	span := (prob.Tf - prob.T0) / float64(segments)
	steps := max(1, prob.N/segments)

	x := prob.X0.Clone()
	xp := x.Clone()
	xp[0] += d0

	advance := func(t0 float64, x0 dynamo.State) (dynamo.State, error) {
		p := prob
		p.T0, p.Tf, p.N, p.X0 = t0, t0+span, steps, x0
		res, err := solver.Integrate(ctx, p, cfg)
		if err != nil {
			return nil, err
		}
		_, xf := res.Final()
		return xf, nil
	}

	sumLog := 0.0
	for k := 0; k < segments; k++ {
		t0 := prob.T0 + float64(k)*span

		var err error
		if x, err = advance(t0, x); err != nil {
			return 0, err
		}
		if xp, err = advance(t0, xp); err != nil {
			return 0, err
		}

		sep := xp.Sub(x).Norm()
		if sep == 0 {
			return math.Inf(-1), nil
		}
		sumLog += math.Log(sep / d0)

		// Renormalize to prevent overflow
		xp = x.Add(xp.Sub(x).Scale(d0 / sep))
	}

	return sumLog / (prob.Tf - prob.T0), nil
}
