package models

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// OscillatorParams describes a linear oscillator with state [q, v]:
//
//	dq/dt = v
//	dv/dt = -omega²q - 2*damping*omega*v
type OscillatorParams struct {
	Omega   float64 `mapstructure:"omega" yaml:"omega" json:"omega"`
	Damping float64 `mapstructure:"damping" yaml:"damping" json:"damping"`
}

func (p OscillatorParams) Validate() error {
	if !(p.Omega > 0) || math.IsInf(p.Omega, 0) {
		return invalid("oscillator", "omega must be positive, got %g", p.Omega)
	}
	if !(p.Damping >= 0) || math.IsInf(p.Damping, 0) {
		return invalid("oscillator", "damping must be non-negative, got %g", p.Damping)
	}
	return nil
}

func NewOscillator() Model[OscillatorParams] {
	return Model[OscillatorParams]{
		Name:        "oscillator",
		Description: "damped harmonic oscillator [q, v]",
		F: func(_ float64, x dynamo.State, p OscillatorParams) (dynamo.State, error) {
			if err := checkLen("oscillator", x, 2); err != nil {
				return nil, err
			}
			return dynamo.State{x[1], -p.Omega*p.Omega*x[0] - 2*p.Damping*p.Omega*x[1]}, nil
		},
		J: func(_ float64, x dynamo.State, p OscillatorParams) ([][]float64, error) {
			if err := checkLen("oscillator", x, 2); err != nil {
				return nil, err
			}
			return [][]float64{
				{0, 1},
				{-p.Omega * p.Omega, -2 * p.Damping * p.Omega},
			}, nil
		},
		Exact:    oscillatorExact,
		Energy:   oscillatorEnergy,
		Defaults: OscillatorParams{Omega: 1},
		Initial:  func(OscillatorParams) dynamo.State { return dynamo.State{1, 0} },
		Tf:       10,
	}
}

// Underdamped case only.
func oscillatorExact(t, t0 float64, x0 dynamo.State, p OscillatorParams) (dynamo.State, bool) {
	if p.Damping >= 1 || len(x0) != 2 {
		return nil, false
	}
	zw := p.Damping * p.Omega
	wd := p.Omega * math.Sqrt(1-p.Damping*p.Damping)
	a := x0[0]
	b := (x0[1] + zw*x0[0]) / wd

	s := t - t0
	env := math.Exp(-zw * s)
	sin, cos := math.Sincos(wd * s)

	q := env * (a*cos + b*sin)
	v := env * ((wd*b-zw*a)*cos - (wd*a+zw*b)*sin)
	return dynamo.State{q, v}, true
}

func oscillatorEnergy(x dynamo.State, p OscillatorParams) float64 {
	return 0.5*x[1]*x[1] + 0.5*p.Omega*p.Omega*x[0]*x[0]
}
