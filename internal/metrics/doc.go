// Package metrics provides sim.Metric implementations that summarise a
// trajectory, and a Prometheus-backed sim.Observer for step statistics.
package metrics
