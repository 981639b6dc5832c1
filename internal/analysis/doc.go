// Package analysis provides numerical diagnostics for Runge-Kutta methods
// and the problems they integrate.
//
//   - [EstimateOrder]: observed order of accuracy by step halving
//   - [EstimatorOrder]: observed order of the embedded error estimate
//   - [StabilityFunction], [RealStabilityInterval]: linear stability of a tableau
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//   - [Resample], [PowerSpectrum], [DominantFrequencies]: spectral content of a trajectory
//
// # Chaos Detection
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda, err := analysis.LyapunovExponent(ctx, solver, prob, cfg, 1e-8, 200)
//	if err == nil && lambda > 0 {
//	    // System is chaotic
//	}
package analysis
