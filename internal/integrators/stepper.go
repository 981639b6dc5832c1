package integrators

import (
	"fmt"

	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/tableau"
)

type Stepper[P any] struct {
	tab     *tableau.Tableau
	k       []dynamo.State
	scratch dynamo.State
	evals   int
}

func NewStepper[P any](tab *tableau.Tableau) *Stepper[P] {
	return &Stepper[P]{tab: tab}
}

func (s *Stepper[P]) Tableau() *tableau.Tableau { return s.tab }

// Evaluations returns the number of f calls made so far.
func (s *Stepper[P]) Evaluations() int { return s.evals }

func (s *Stepper[P]) ensureScratch(n int) {
	stages := s.tab.Stages()
	if len(s.scratch) != n || len(s.k) != stages {
		s.k = make([]dynamo.State, stages)
		for i := range s.k {
			s.k[i] = make(dynamo.State, n)
		}
		s.scratch = make(dynamo.State, n)
	}
}

// Step computes one trial step of size dt from (t, x). The returned error
// vector is dt*sum(E[i]*k_i); it is all zeros for non-embedded tableaus.
// An error returned by f is passed back unchanged.
func (s *Stepper[P]) Step(f dynamo.Func[P], t float64, x dynamo.State, dt float64, aux P) (dynamo.State, dynamo.State, error) {
	n := len(x)
	stages := s.tab.Stages()
	s.ensureScratch(n)

	for i := 0; i < stages; i++ {
		for d := 0; d < n; d++ {
			acc := 0.0
			for j := 0; j < i; j++ {
				if a := s.tab.A(i, j); a != 0 {
					acc += a * s.k[j][d]
				}
			}
			s.scratch[d] = x[d] + dt*acc
		}

		ki, err := f(t+s.tab.C(i)*dt, s.scratch, aux)
		s.evals++
		if err != nil {
			return nil, nil, err
		}
		if len(ki) != n {
			return nil, nil, fmt.Errorf("%w: stage %d returned %d components, state has %d",
				dynamo.ErrDimensionMismatch, i, len(ki), n)
		}
		copy(s.k[i], ki)
	}

	xNext := make(dynamo.State, n)
	errVec := make(dynamo.State, n)
	for d := 0; d < n; d++ {
		sumB, sumE := 0.0, 0.0
		for i := 0; i < stages; i++ {
			sumB += s.tab.B(i) * s.k[i][d]
			sumE += s.tab.E(i) * s.k[i][d]
		}
		xNext[d] = x[d] + dt*sumB
		errVec[d] = dt * sumE
	}

	return xNext, errVec, nil
}
