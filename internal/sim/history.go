package sim

import "github.com/san-kum/rkode/internal/dynamo"

// ring keeps the most recent limit values; limit 0 keeps all of them.
type ring[T any] struct {
	buf   []T
	start int
	limit int
	total int
}

func (r *ring[T]) push(v T) {
	r.total++
	if r.limit == 0 || len(r.buf) < r.limit {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % r.limit
}

func (r *ring[T]) items() []T {
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.start:]...)
	return append(out, r.buf[:r.start]...)
}

// History holds the controller diagnostics of one run. DT grows on every
// attempt, R and E only on accepted steps. Each series starts with the seed
// values (initial dt, the seed ratio and a zero error vector).
type History struct {
	dt ring[float64]
	r  ring[float64]
	e  ring[dynamo.State]
}

// NewHistory returns an empty history whose series keep at most limit
// entries each. A zero limit is unbounded.
func NewHistory(limit int) *History {
	return &History{
		dt: ring[float64]{limit: limit},
		r:  ring[float64]{limit: limit},
		e:  ring[dynamo.State]{limit: limit},
	}
}

func (h *History) seed(dt, r float64, dim int) {
	h.dt.push(dt)
	h.r.push(r)
	h.e.push(make(dynamo.State, dim))
}

func (h *History) attempt(next float64)             { h.dt.push(next) }
func (h *History) accept(r float64, e dynamo.State) { h.r.push(r); h.e.push(e) }
func (h *History) fixed(e dynamo.State)             { h.e.push(e) }

// DT returns the retained step sizes, oldest first.
func (h *History) DT() []float64 { return h.dt.items() }

// R returns the retained accepted error ratios, oldest first.
func (h *History) R() []float64 { return h.r.items() }

// E returns the retained error vectors, oldest first.
func (h *History) E() []dynamo.State { return h.e.items() }

// Recorded returns how many values each series received, including
// entries already dropped by the limit.
func (h *History) Recorded() (dt, r, e int) {
	return h.dt.total, h.r.total, h.e.total
}
