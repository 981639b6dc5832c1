package models

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// DecayParams: dx/dt = -rate*x, applied to every component.
type DecayParams struct {
	Rate float64 `mapstructure:"rate" yaml:"rate" json:"rate"`
}

func (p DecayParams) Validate() error {
	if !(p.Rate > 0) || math.IsInf(p.Rate, 0) {
		return invalid("decay", "rate must be positive, got %g", p.Rate)
	}
	return nil
}

func NewDecay() Model[DecayParams] {
	return Model[DecayParams]{
		Name:        "decay",
		Description: "exponential decay x' = -rate*x",
		F: func(_ float64, x dynamo.State, p DecayParams) (dynamo.State, error) {
			return x.Scale(-p.Rate), nil
		},
		J: func(_ float64, x dynamo.State, p DecayParams) ([][]float64, error) {
			return diag(len(x), func(int) float64 { return -p.Rate }), nil
		},
		Exact: func(t, t0 float64, x0 dynamo.State, p DecayParams) (dynamo.State, bool) {
			return x0.Scale(math.Exp(-p.Rate * (t - t0))), true
		},
		Defaults: DecayParams{Rate: 1},
		Initial:  func(DecayParams) dynamo.State { return dynamo.State{1} },
		Tf:       1,

		Elementwise: true,
	}
}
