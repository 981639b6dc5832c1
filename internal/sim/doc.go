// Package sim runs the integration loop.
//
// A [Solver] pairs a tableau with logging, observers and metrics. Each call
// to [Solver.Integrate] owns its stepper, step-size controller, trajectory
// and diagnostics, so one Solver may serve concurrent runs:
//
//	s := sim.New[struct{}](tableau.DormandPrince54(), sim.WithLogger(logger))
//	cfg := dynamo.DefaultConfig()
//	cfg.Adaptive = true
//	res, err := s.Integrate(ctx, sim.Problem[struct{}]{F: f, T0: 0, Tf: 1, N: 10, X0: x0}, cfg)
//
// In fixed-step mode the loop takes exactly N steps of (tf-t0)/N and never
// consults the controller. In adaptive mode N only seeds the first step
// size; trial steps are retried with a smaller dt until the controller
// accepts them, and the final step is clamped to land exactly on tf.
package sim
