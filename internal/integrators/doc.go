// Package integrators advances a state by one explicit Runge-Kutta step.
//
// A [Stepper] evaluates the stages of any [tableau.Tableau] and returns the
// propagated state together with the embedded error estimate:
//
//	st := integrators.NewStepper[struct{}](tableau.DormandPrince54())
//	xNext, errVec, err := st.Step(f, t, x, dt, struct{}{})
//
// Steppers reuse stage buffers between calls and are not safe for
// concurrent use. Build one per integration run.
package integrators
