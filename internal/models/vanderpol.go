package models

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// VanDerPolParams: state [x, y] where y = dx/dt.
//
//	dx/dt = y
//	dy/dt = mu(1 - x²)y - x
type VanDerPolParams struct {
	Mu float64 `mapstructure:"mu" yaml:"mu" json:"mu"`
}

func (p VanDerPolParams) Validate() error {
	if !(p.Mu >= 0) || math.IsInf(p.Mu, 0) {
		return invalid("vanderpol", "mu must be non-negative, got %g", p.Mu)
	}
	return nil
}

func NewVanDerPol() Model[VanDerPolParams] {
	return Model[VanDerPolParams]{
		Name:        "vanderpol",
		Description: "Van der Pol oscillator, stiff for large mu",
		F: func(_ float64, s dynamo.State, p VanDerPolParams) (dynamo.State, error) {
			if err := checkLen("vanderpol", s, 2); err != nil {
				return nil, err
			}
			x, y := s[0], s[1]
			return dynamo.State{y, p.Mu*(1-x*x)*y - x}, nil
		},
		J: func(_ float64, s dynamo.State, p VanDerPolParams) ([][]float64, error) {
			if err := checkLen("vanderpol", s, 2); err != nil {
				return nil, err
			}
			x, y := s[0], s[1]
			return [][]float64{
				{0, 1},
				{-2*p.Mu*x*y - 1, p.Mu * (1 - x*x)},
			}, nil
		},
		Defaults: VanDerPolParams{Mu: 1},
		Initial:  func(VanDerPolParams) dynamo.State { return dynamo.State{2, 0} },
		Tf:       20,
	}
}
