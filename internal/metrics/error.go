package metrics

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// GlobalError is the largest max-norm distance between an accepted state
// and the exact solution at the same time.
type GlobalError struct {
	exact func(t float64) dynamo.State
	max   float64
}

func NewGlobalError(exact func(t float64) dynamo.State) *GlobalError {
	return &GlobalError{exact: exact}
}

func (g *GlobalError) Name() string { return "global_error" }

func (g *GlobalError) Observe(x dynamo.State, t float64) {
	g.max = math.Max(g.max, x.Sub(g.exact(t)).MaxAbs())
}

func (g *GlobalError) Value() float64 { return g.max }

func (g *GlobalError) Reset() { g.max = 0 }
