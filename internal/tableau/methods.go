package tableau

import (
	"fmt"
	"sort"
)

// Dormand-Prince 5(4). B propagates the fifth-order solution, bHat is the
// fourth-order companion.
var (
	dpC = []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1}
	dpA = [][]float64{
		{0, 0, 0, 0, 0, 0, 0},
		{1.0 / 5.0, 0, 0, 0, 0, 0, 0},
		{3.0 / 40.0, 9.0 / 40.0, 0, 0, 0, 0, 0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0, 0, 0, 0, 0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0, 0, 0, 0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0, 0, 0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0},
	}
	dpB    = []float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0}
	dpBHat = []float64{5179.0 / 57600.0, 0, 7571.0 / 16695.0, 393.0 / 640.0, -92097.0 / 339200.0, 187.0 / 2100.0, 1.0 / 40.0}
)

// Bogacki-Shampine 3(2).
var (
	bsC = []float64{0, 1.0 / 2.0, 3.0 / 4.0, 1}
	bsA = [][]float64{
		{0, 0, 0, 0},
		{1.0 / 2.0, 0, 0, 0},
		{0, 3.0 / 4.0, 0, 0},
		{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0, 0},
	}
	bsB    = []float64{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0, 0}
	bsBHat = []float64{7.0 / 24.0, 1.0 / 4.0, 1.0 / 3.0, 1.0 / 8.0}
)

const (
	NameDormandPrince54   = "dopri54"
	NameBogackiShampine32 = "bs32"
	NameHeunEuler21       = "heun21"
	NameRK4               = "rk4"
	NameEuler             = "euler"
)

var (
	dormandPrince54   = mustNew(NameDormandPrince54, 5, 5, dpC, dpA, dpB, diff(dpB, dpBHat))
	bogackiShampine32 = mustNew(NameBogackiShampine32, 3, 3, bsC, bsA, bsB, diff(bsB, bsBHat))
	heunEuler21       = mustNew(NameHeunEuler21, 2, 2,
		[]float64{0, 1},
		[][]float64{{0, 0}, {1, 0}},
		[]float64{0.5, 0.5},
		diff([]float64{0.5, 0.5}, []float64{1, 0}),
	)
	rk4 = mustNew(NameRK4, 4, 0,
		[]float64{0, 0.5, 0.5, 1},
		[][]float64{
			{0, 0, 0, 0},
			{0.5, 0, 0, 0},
			{0, 0.5, 0, 0},
			{0, 0, 1, 0},
		},
		[]float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
		make([]float64, 4),
	)
	euler = mustNew(NameEuler, 1, 0, []float64{0}, [][]float64{{0}}, []float64{1}, []float64{0})
)

// DormandPrince54 is the default adaptive method. The controller uses p=5.
func DormandPrince54() *Tableau { return dormandPrince54 }

func BogackiShampine32() *Tableau { return bogackiShampine32 }

// HeunEuler21 pairs Heun's method with explicit Euler as error estimate.
func HeunEuler21() *Tableau { return heunEuler21 }

// RK4 is the classic fourth-order method without an error estimate.
func RK4() *Tableau { return rk4 }

func Euler() *Tableau { return euler }

var registry = map[string]*Tableau{
	NameDormandPrince54:   dormandPrince54,
	NameBogackiShampine32: bogackiShampine32,
	NameHeunEuler21:       heunEuler21,
	NameRK4:               rk4,
	NameEuler:             euler,
}

// Lookup returns a built-in tableau by name.
func Lookup(name string) (*Tableau, error) {
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown method: %s (available: %v)", name, Names())
	}
	return t, nil
}

// Names lists the built-in methods in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func diff(b, bHat []float64) []float64 {
	e := make([]float64, len(b))
	for i := range b {
		e[i] = b[i] - bHat[i]
	}
	return e
}
