package analysis

import (
	"math"
	"math/cmplx"

	"github.com/san-kum/rkode/internal/tableau"
)

// StabilityFunction evaluates R(z) for the test equation x' = λx, z = λdt:
// one step maps x to R(z)x.
func StabilityFunction(tab *tableau.Tableau, z complex128) complex128 {
	s := tab.Stages()
	g := make([]complex128, s)

	sum := complex(0, 0)
	for i := 0; i < s; i++ {
		acc := complex(0, 0)
		for j := 0; j < i; j++ {
			acc += complex(tab.A(i, j), 0) * g[j]
		}
		g[i] = 1 + z*acc
		sum += complex(tab.B(i), 0) * g[i]
	}
	return 1 + z*sum
}

const (
	intervalScan  = 1e-3
	intervalLimit = 100.0
)

// RealStabilityInterval returns the left end of the stability interval on
// the negative real axis, the largest x < 0 with |R(y)| <= 1 for all y in
// [x, 0].
func RealStabilityInterval(tab *tableau.Tableau) float64 {
	stable := func(x float64) bool {
		return cmplx.Abs(StabilityFunction(tab, complex(x, 0))) <= 1
	}

	x := 0.0
	for x > -intervalLimit && stable(x-intervalScan) {
		x -= intervalScan
	}
	if x <= -intervalLimit {
		return math.Inf(-1)
	}

	lo, hi := x-intervalScan, x
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if stable(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}
