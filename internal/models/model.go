package models

import (
	"fmt"

	"github.com/san-kum/rkode/internal/dynamo"
)

// Params is implemented by every model parameter bundle.
type Params interface {
	Validate() error
}

// Model bundles a right-hand side with what is known about it. Exact and
// Energy are nil when the model has no closed form or conserved quantity.
type Model[P Params] struct {
	Name        string
	Description string

	F dynamo.Func[P]
	J dynamo.JacobianFunc[P]

	// Exact returns the solution at t for the initial value (t0, x0).
	// It reports false when no closed form applies to p.
	Exact  func(t, t0 float64, x0 dynamo.State, p P) (dynamo.State, bool)
	Energy func(x dynamo.State, p P) float64

	Defaults P
	Initial  func(p P) dynamo.State
	Tf       float64

	// Elementwise models act on each component alone and accept an x0 of
	// any length. Others require len(Initial(p)) components.
	Elementwise bool
}

func invalid(model, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", dynamo.ErrInvalidConfig, model, fmt.Sprintf(format, args...))
}

func checkLen(model string, x dynamo.State, n int) error {
	if len(x) != n {
		return fmt.Errorf("%w: %s needs %d components, got %d", dynamo.ErrDimensionMismatch, model, n, len(x))
	}
	return nil
}

func diag(n int, v func(i int) float64) [][]float64 {
	j := make([][]float64, n)
	for i := range j {
		j[i] = make([]float64, n)
		j[i][i] = v(i)
	}
	return j
}
