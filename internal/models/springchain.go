package models

import (
	"fmt"
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// SpringChainParams describes identical masses joined by springs, with the
// outer springs fixed to walls. State is [pos_0..pos_n-1, vel_0..vel_n-1].
type SpringChainParams struct {
	Masses    int     `mapstructure:"masses" yaml:"masses" json:"masses"`
	Mass      float64 `mapstructure:"mass" yaml:"mass" json:"mass"`
	Stiffness float64 `mapstructure:"stiffness" yaml:"stiffness" json:"stiffness"`
	Damping   float64 `mapstructure:"damping" yaml:"damping" json:"damping"`
}

func (p SpringChainParams) Validate() error {
	if p.Masses < 1 {
		return invalid("springchain", "masses must be at least 1, got %d", p.Masses)
	}
	if !(p.Mass > 0) || math.IsInf(p.Mass, 0) {
		return invalid("springchain", "mass must be positive, got %g", p.Mass)
	}
	if !(p.Stiffness > 0) || math.IsInf(p.Stiffness, 0) {
		return invalid("springchain", "stiffness must be positive, got %g", p.Stiffness)
	}
	if !(p.Damping >= 0) || math.IsInf(p.Damping, 0) {
		return invalid("springchain", "damping must be non-negative, got %g", p.Damping)
	}
	return nil
}

func NewSpringChain() Model[SpringChainParams] {
	return Model[SpringChainParams]{
		Name:        "springchain",
		Description: "chain of masses and springs between two walls",
		F:           springChainDerive,
		J: func(_ float64, x dynamo.State, p SpringChainParams) ([][]float64, error) {
			n := p.Masses
			if len(x) != 2*n {
				return nil, chainMismatch(len(x), n)
			}
			k, c := p.Stiffness/p.Mass, p.Damping/p.Mass
			j := make([][]float64, 2*n)
			for i := range j {
				j[i] = make([]float64, 2*n)
			}
			for i := 0; i < n; i++ {
				j[i][n+i] = 1
				j[n+i][i] = -2 * k
				if i > 0 {
					j[n+i][i-1] = k
				}
				if i < n-1 {
					j[n+i][i+1] = k
				}
				j[n+i][n+i] = -c
			}
			return j, nil
		},
		Energy:   springChainEnergy,
		Defaults: SpringChainParams{Masses: 3, Mass: 1, Stiffness: 10},
		Initial: func(p SpringChainParams) dynamo.State {
			x := make(dynamo.State, 2*p.Masses)
			x[0] = 1
			return x
		},
		Tf: 10,
	}
}

func springChainDerive(_ float64, x dynamo.State, p SpringChainParams) (dynamo.State, error) {
	n := p.Masses
	if len(x) != 2*n {
		return nil, chainMismatch(len(x), n)
	}

	dx := make(dynamo.State, 2*n)
	copy(dx[:n], x[n:])

	for i := 0; i < n; i++ {
		left, right := 0.0, 0.0
		if i > 0 {
			left = x[i-1]
		}
		if i < n-1 {
			right = x[i+1]
		}
		force := -p.Stiffness*(2*x[i]-left-right) - p.Damping*x[n+i]
		dx[n+i] = force / p.Mass
	}
	return dx, nil
}

func springChainEnergy(x dynamo.State, p SpringChainParams) float64 {
	n := p.Masses
	energy := 0.0
	for i := 0; i < n; i++ {
		v := x[n+i]
		energy += 0.5 * p.Mass * v * v
	}

	energy += 0.5 * p.Stiffness * x[0] * x[0]
	for i := 1; i < n; i++ {
		stretch := x[i] - x[i-1]
		energy += 0.5 * p.Stiffness * stretch * stretch
	}
	energy += 0.5 * p.Stiffness * x[n-1] * x[n-1]
	return energy
}

func chainMismatch(got, masses int) error {
	return fmt.Errorf("%w: springchain with %d masses needs %d components, got %d",
		dynamo.ErrDimensionMismatch, masses, 2*masses, got)
}
