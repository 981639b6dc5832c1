package sim

import (
	"github.com/san-kum/rkode/internal/dynamo"
)

// Problem is one initial value problem. J is carried for callers that
// share problem definitions with implicit solvers; explicit methods ignore it.
type Problem[P any] struct {
	F   dynamo.Func[P]
	J   dynamo.JacobianFunc[P]
	T0  float64
	Tf  float64
	N   int
	X0  dynamo.State
	Aux P
}

// Attempt describes one trial step as seen by observers.
type Attempt struct {
	Step     int
	Retry    int
	T        float64
	Dt       float64
	Next     float64
	Ratio    float64
	Err      dynamo.State
	Accepted bool
	Adaptive bool
}

// Observer receives every attempt of a run, including rejected ones.
// Observers attached to a shared Solver must be safe for concurrent use.
type Observer interface {
	OnAttempt(a Attempt)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(a Attempt)

func (f ObserverFunc) OnAttempt(a Attempt) { f(a) }

// Metric accumulates a scalar over the accepted states of one run.
type Metric interface {
	Name() string
	Observe(x dynamo.State, t float64)
	Value() float64
	Reset()
}

type Stats struct {
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	Evaluations int     `json:"evaluations"`
	MinDt       float64 `json:"min_dt"`
	MaxDt       float64 `json:"max_dt"`
}

type Result struct {
	Method   string
	Adaptive bool
	T        []float64
	X        []dynamo.State
	History  *History
	Stats    Stats
	Metrics  map[string]float64
}

// Final returns the last accepted state.
func (r *Result) Final() (float64, dynamo.State) {
	n := len(r.T) - 1
	return r.T[n], r.X[n]
}
