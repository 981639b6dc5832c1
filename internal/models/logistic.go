package models

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// LogisticParams: dx/dt = rate*x*(1 - x/capacity).
type LogisticParams struct {
	Rate     float64 `mapstructure:"rate" yaml:"rate" json:"rate"`
	Capacity float64 `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
}

func (p LogisticParams) Validate() error {
	if !(p.Rate > 0) || math.IsInf(p.Rate, 0) {
		return invalid("logistic", "rate must be positive, got %g", p.Rate)
	}
	if !(p.Capacity > 0) || math.IsInf(p.Capacity, 0) {
		return invalid("logistic", "capacity must be positive, got %g", p.Capacity)
	}
	return nil
}

func NewLogistic() Model[LogisticParams] {
	return Model[LogisticParams]{
		Name:        "logistic",
		Description: "logistic growth x' = rate*x*(1 - x/capacity)",
		F: func(_ float64, x dynamo.State, p LogisticParams) (dynamo.State, error) {
			dx := make(dynamo.State, len(x))
			for i, v := range x {
				dx[i] = p.Rate * v * (1 - v/p.Capacity)
			}
			return dx, nil
		},
		J: func(_ float64, x dynamo.State, p LogisticParams) ([][]float64, error) {
			return diag(len(x), func(i int) float64 { return p.Rate * (1 - 2*x[i]/p.Capacity) }), nil
		},
		Exact: func(t, t0 float64, x0 dynamo.State, p LogisticParams) (dynamo.State, bool) {
			g := math.Exp(p.Rate * (t - t0))
			x := make(dynamo.State, len(x0))
			for i, v := range x0 {
				x[i] = p.Capacity * v * g / (p.Capacity + v*(g-1))
			}
			return x, true
		},
		Defaults: LogisticParams{Rate: 1, Capacity: 1},
		Initial:  func(LogisticParams) dynamo.State { return dynamo.State{0.1} },
		Tf:       10,

		Elementwise: true,
	}
}
