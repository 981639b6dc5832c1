package models

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

type LorenzParams struct {
	Sigma float64 `mapstructure:"sigma" yaml:"sigma" json:"sigma"`
	Rho   float64 `mapstructure:"rho" yaml:"rho" json:"rho"`
	Beta  float64 `mapstructure:"beta" yaml:"beta" json:"beta"`
}

func (p LorenzParams) Validate() error {
	for name, v := range map[string]float64{"sigma": p.Sigma, "rho": p.Rho, "beta": p.Beta} {
		if !(v >= 0) || math.IsInf(v, 0) {
			return invalid("lorenz", "%s must be non-negative, got %g", name, v)
		}
	}
	return nil
}

func NewLorenz() Model[LorenzParams] {
	return Model[LorenzParams]{
		Name:        "lorenz",
		Description: "Lorenz attractor",
		F: func(_ float64, s dynamo.State, p LorenzParams) (dynamo.State, error) {
			if err := checkLen("lorenz", s, 3); err != nil {
				return nil, err
			}
			return dynamo.State{p.Sigma * (s[1] - s[0]), s[0]*(p.Rho-s[2]) - s[1], s[0]*s[1] - p.Beta*s[2]}, nil
		},
		J: func(_ float64, s dynamo.State, p LorenzParams) ([][]float64, error) {
			if err := checkLen("lorenz", s, 3); err != nil {
				return nil, err
			}
			return [][]float64{
				{-p.Sigma, p.Sigma, 0},
				{p.Rho - s[2], -1, -s[0]},
				{s[1], s[0], -p.Beta},
			}, nil
		},
		Defaults: LorenzParams{Sigma: 10, Rho: 28, Beta: 8.0 / 3.0},
		Initial:  func(LorenzParams) dynamo.State { return dynamo.State{1, 1, 1} },
		Tf:       25,
	}
}
