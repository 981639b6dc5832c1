package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// MaxAbs returns the infinity norm of s.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Func is the right-hand side of x'(t) = f(t, x). The aux bundle is passed
// through verbatim on every call.
type Func[P any] func(t float64, x State, aux P) (State, error)

// JacobianFunc returns df/dx at (t, x) in row-major order.
type JacobianFunc[P any] func(t float64, x State, aux P) ([][]float64, error)

// Tolerances configures the step-size controller.
type Tolerances struct {
	AbsTol float64 `yaml:"abstol" json:"abstol"`
	RelTol float64 `yaml:"reltol" json:"reltol"`
	EpsTol float64 `yaml:"epstol" json:"epstol"`
	FacMax float64 `yaml:"facmax" json:"facmax"`
	FacMin float64 `yaml:"facmin" json:"facmin"`
}

const (
	DefaultAbsTol = 1e-6
	DefaultRelTol = 1e-6
	DefaultEpsTol = 0.8
	DefaultFacMax = 5.0
	DefaultFacMin = 0.1
)

func DefaultTolerances() Tolerances {
	return Tolerances{
		AbsTol: DefaultAbsTol,
		RelTol: DefaultRelTol,
		EpsTol: DefaultEpsTol,
		FacMax: DefaultFacMax,
		FacMin: DefaultFacMin,
	}
}

func (t Tolerances) Validate() error {
	switch {
	case !(t.AbsTol > 0) || math.IsInf(t.AbsTol, 0):
		return invalidConfig("abstol must be positive and finite, got %g", t.AbsTol)
	case !(t.RelTol >= 0) || math.IsInf(t.RelTol, 0):
		return invalidConfig("reltol must be non-negative and finite, got %g", t.RelTol)
	case !(t.EpsTol > 0 && t.EpsTol <= 1):
		return invalidConfig("epstol must be in (0, 1], got %g", t.EpsTol)
	case !(t.FacMin > 0 && t.FacMin < 1):
		return invalidConfig("facmin must be in (0, 1), got %g", t.FacMin)
	case !(t.FacMax > 1) || math.IsInf(t.FacMax, 0):
		return invalidConfig("facmax must be greater than 1 and finite, got %g", t.FacMax)
	}
	return nil
}

// Config holds the settings of one integration run.
type Config struct {
	Adaptive   bool
	Tolerances Tolerances
	// MaxRetries bounds consecutive rejections of a single step. Zero
	// selects DefaultMaxRetries.
	MaxRetries int
	// MinDt is the smallest step a rejection may shrink to. Zero means
	// only the floating-point resolution of t applies.
	MinDt float64
	// HistoryLimit bounds each diagnostic series. Zero keeps everything.
	HistoryLimit int
}

const DefaultMaxRetries = 100

func DefaultConfig() Config {
	return Config{
		Adaptive:   false,
		Tolerances: DefaultTolerances(),
		MaxRetries: DefaultMaxRetries,
	}
}

func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return invalidConfig("max retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.HistoryLimit < 0 {
		return invalidConfig("history limit must be non-negative, got %d", c.HistoryLimit)
	}
	if !(c.MinDt >= 0) || math.IsInf(c.MinDt, 0) {
		return invalidConfig("min dt must be non-negative and finite, got %g", c.MinDt)
	}
	return c.Tolerances.Validate()
}

// Retries returns the effective retry bound.
func (c Config) Retries() int {
	if c.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}
