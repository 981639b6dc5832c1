package metrics

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// EnergyDrift tracks the largest relative change of a conserved quantity
// from its value at the first observed state.
type EnergyDrift struct {
	name          string
	energy        func(dynamo.State) float64
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(energy func(dynamo.State) float64) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		energy: energy,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(x dynamo.State, _ float64) {
	energy := e.energy(x)

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
