package control

import (
	"math"

	"github.com/san-kum/rkode/internal/dynamo"
)

const (
	// InitialRatio seeds the PI history before the first accepted step.
	InitialRatio = 0.01
	// MinRatio floors ratios entering the PI law.
	MinRatio = 1e-10

	proportionalGain = 0.4
	integralGain     = 0.3
)

// Decision is the outcome of one controller evaluation.
type Decision struct {
	Accept bool
	Ratio  float64
	Factor float64
	Next   float64
}

// ErrorRatio returns max_i |e_i| / max(abstol, |x_i|*reltol). A NaN
// component makes the ratio +Inf.
func ErrorRatio(errVec, xTrial dynamo.State, tol dynamo.Tolerances) float64 {
	r := 0.0
	for i, e := range errVec {
		scale := tol.AbsTol
		if i < len(xTrial) {
			scale = math.Max(tol.AbsTol, math.Abs(xTrial[i])*tol.RelTol)
		}
		q := math.Abs(e) / scale
		if math.IsNaN(q) {
			return math.Inf(1)
		}
		r = math.Max(r, q)
	}
	return r
}

// Gains returns the proportional and integral exponents for order p.
func Gains(p int) (kp, ki float64) {
	return proportionalGain / float64(p+1), integralGain / float64(p+1)
}

// Decide applies the PI law for a method of control order p. It does not
// retain anything; the caller supplies rPrev.
func Decide(errVec, xTrial dynamo.State, dt float64, tol dynamo.Tolerances, rPrev float64, p int) Decision {
	r := ErrorRatio(errVec, xTrial, tol)
	d := Decision{Accept: r <= 1, Ratio: r}

	switch {
	case math.IsInf(r, 0) || math.IsNaN(r):
		d.Factor = tol.FacMin
	case r == 0:
		d.Factor = tol.FacMax
	case d.Accept:
		kp, ki := Gains(p)
		rr := math.Max(r, MinRatio)
		d.Factor = clamp(math.Pow(tol.EpsTol/rr, ki)*math.Pow(math.Max(rPrev, MinRatio)/rr, kp), tol.FacMin, tol.FacMax)
	default:
		d.Factor = clamp(math.Pow(tol.EpsTol/r, 1/float64(p+1)), tol.FacMin, tol.FacMax)
	}

	d.Next = dt * d.Factor
	return d
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
