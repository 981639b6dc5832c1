package control

import "github.com/san-kum/rkode/internal/dynamo"

// PI is the step-size controller of one run. It remembers the ratio of the
// last accepted step and must not be shared between runs.
type PI struct {
	Tol   dynamo.Tolerances
	Order int
	prev  float64
}

func NewPI(tol dynamo.Tolerances, order int) *PI {
	return &PI{
		Tol:   tol,
		Order: order,
		prev:  InitialRatio,
	}
}

// Decide evaluates the trial step. The stored ratio only moves forward on
// acceptance, so consecutive rejections all see the same history.
func (c *PI) Decide(errVec, xTrial dynamo.State, dt float64) Decision {
	d := Decide(errVec, xTrial, dt, c.Tol, c.prev, c.Order)
	if d.Accept {
		c.prev = max(d.Ratio, MinRatio)
	}
	return d
}

// Previous returns the ratio of the last accepted step.
func (c *PI) Previous() float64 { return c.prev }
