// Package dynamo provides the core value types shared by the integrator.
//
// The package defines the vocabulary used by every other package:
//
//   - [State]: vector representing a point of the trajectory
//   - [Func]: right-hand side x'(t) = f(t, x, aux) with a caller-typed aux bundle
//   - [JacobianFunc]: optional Jacobian of f, carried but unused by explicit methods
//   - [Tolerances]: step-size controller tolerances
//   - [Config]: per-run integration settings
//
// # Example
//
//	f := func(t float64, x dynamo.State, k float64) (dynamo.State, error) {
//	    return dynamo.State{-k * x[0]}, nil
//	}
//	cfg := dynamo.DefaultConfig()
//	cfg.Adaptive = true
//
// # Errors
//
// Sentinel errors are wrapped with context; test for them with [errors.Is].
// Failures inside the integration loop are reported as [*SimulationError].
package dynamo
