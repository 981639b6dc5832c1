package metrics

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

// DefaultBound is the magnitude past which a state counts as blown up.
const DefaultBound = 1e6

// Stability is the fraction of accepted states that are finite with every
// component inside bound. A run that never leaves the bound scores 1.
type Stability struct {
	bound   float64
	outside int
	seen    int
}

func NewStability(bound float64) *Stability {
	return &Stability{bound: bound}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x dynamo.State, _ float64) {
	s.seen++
	if !x.IsValid() || x.MaxAbs() > s.bound {
		s.outside++
	}
}

func (s *Stability) Value() float64 {
	if s.seen == 0 {
		return 1
	}
	return 1 - float64(s.outside)/float64(s.seen)
}

func (s *Stability) Reset() { s.outside, s.seen = 0, 0 }

// MaxNorm records the largest infinity norm seen.
type MaxNorm struct {
	max float64
}

func NewMaxNorm() *MaxNorm { return &MaxNorm{} }

func (m *MaxNorm) Name() string { return "max_norm" }

func (m *MaxNorm) Observe(x dynamo.State, _ float64) {
	m.max = math.Max(m.max, x.MaxAbs())
}

func (m *MaxNorm) Value() float64 { return m.max }

func (m *MaxNorm) Reset() { m.max = 0 }
