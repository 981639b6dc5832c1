// Package models provides reference initial value problems for exercising
// the integrators.
//
// Each constructor returns a [Model] carrying the right-hand side, its
// analytic Jacobian and default parameters:
//
//   - [NewDecay], [NewLogistic]: scalar problems with closed-form solutions
//   - [NewOscillator]: damped harmonic oscillator, exact and conservative when undamped
//   - [NewVanDerPol]: limit cycle, increasingly stiff with mu
//   - [NewLorenz]: chaotic attractor
//   - [NewSpringChain]: coupled masses with a conserved energy
//
// Parameter structs carry mapstructure tags so they can be decoded from
// untyped configuration:
//
//	m := models.NewOscillator()
//	x, _ := m.Exact(1, 0, m.Initial(m.Defaults), m.Defaults)
package models
