// Package tableau defines Butcher tableaus for explicit Runge-Kutta methods.
//
// A [Tableau] is built once through [New], which checks the coefficient
// shapes, and is immutable afterwards. Embedded pairs carry error weights
// E = B - B_hat; methods without an embedded estimate have E identically zero
// and can only be used with fixed steps.
package tableau

import (
	"fmt"

	"github.com/san-kum/rkode/internal/dynamo"
)

type Tableau struct {
	name         string
	order        int
	controlOrder int
	s            int
	c            []float64
	a            []float64 // row-major s*s
	b            []float64
	e            []float64
	embedded     bool
}

// New validates and copies the coefficients of an explicit method. order is
// the order of the propagated solution; controlOrder is the exponent base p
// used by the step-size controller and is ignored for non-embedded methods.
func New(name string, order, controlOrder int, c []float64, a [][]float64, b, e []float64) (*Tableau, error) {
	s := len(c)
	if s == 0 {
		return nil, fmt.Errorf("%w: %s has no stages", dynamo.ErrInvalidTableau, name)
	}
	if len(a) != s || len(b) != s || len(e) != s {
		return nil, fmt.Errorf("%w: %s stage counts differ (c=%d a=%d b=%d e=%d)",
			dynamo.ErrInvalidTableau, name, s, len(a), len(b), len(e))
	}
	if order < 1 {
		return nil, fmt.Errorf("%w: %s order must be positive, got %d", dynamo.ErrInvalidTableau, name, order)
	}

	t := &Tableau{
		name:         name,
		order:        order,
		controlOrder: controlOrder,
		s:            s,
		c:            append([]float64(nil), c...),
		a:            make([]float64, s*s),
		b:            append([]float64(nil), b...),
		e:            append([]float64(nil), e...),
	}

	for i, row := range a {
		if len(row) != s {
			return nil, fmt.Errorf("%w: %s row %d has %d entries, want %d",
				dynamo.ErrInvalidTableau, name, i, len(row), s)
		}
		for j, v := range row {
			if j >= i && v != 0 {
				return nil, fmt.Errorf("%w: %s a[%d][%d]=%g makes the method implicit",
					dynamo.ErrInvalidTableau, name, i, j, v)
			}
			t.a[i*s+j] = v
		}
	}

	for _, v := range t.e {
		if v != 0 {
			t.embedded = true
			break
		}
	}
	if t.embedded && controlOrder < 1 {
		return nil, fmt.Errorf("%w: %s control order must be positive, got %d",
			dynamo.ErrInvalidTableau, name, controlOrder)
	}

	return t, nil
}

func (t *Tableau) Name() string      { return t.name }
func (t *Tableau) Stages() int       { return t.s }
func (t *Tableau) Order() int        { return t.order }
func (t *Tableau) ControlOrder() int { return t.controlOrder }
func (t *Tableau) C(i int) float64   { return t.c[i] }
func (t *Tableau) A(i, j int) float64 {
	return t.a[i*t.s+j]
}
func (t *Tableau) B(i int) float64 { return t.b[i] }
func (t *Tableau) E(i int) float64 { return t.e[i] }

// Embedded reports whether the tableau carries a non-zero error estimate.
func (t *Tableau) Embedded() bool { return t.embedded }

func (t *Tableau) String() string {
	if t.embedded {
		return fmt.Sprintf("%s (%d stages, order %d, embedded p=%d)", t.name, t.s, t.order, t.controlOrder)
	}
	return fmt.Sprintf("%s (%d stages, order %d)", t.name, t.s, t.order)
}

func mustNew(name string, order, controlOrder int, c []float64, a [][]float64, b, e []float64) *Tableau {
	t, err := New(name, order, controlOrder, c, a, b, e)
	if err != nil {
		panic(err)
	}
	return t
}
