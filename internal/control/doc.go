// Package control provides the step-size controller of the adaptive loop.
//
// The controller turns an embedded error estimate into an accept/reject
// decision and the size of the next attempt:
//
//   - [ErrorRatio]: worst-component error relative to the tolerance floor
//   - [Decide]: pure PI law, the previous accepted ratio is an input
//   - [PI]: per-run controller that remembers the previous accepted ratio
//
// # Usage
//
//	pi := control.NewPI(dynamo.DefaultTolerances(), tab.ControlOrder())
//	d := pi.Decide(errVec, xTrial, dt)
//	if d.Accept {
//	    // advance t by dt, then use d.Next
//	}
//
// On acceptance the growth factor is
// (epstol/r)^(0.3/(p+1)) * (rprev/r)^(0.4/(p+1)); on rejection it is the
// proportional (epstol/r)^(1/(p+1)). Both are clamped to [facmin, facmax].
package control
