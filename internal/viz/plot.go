package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/rkode/internal/dynamo"
)

const (
	DefaultWidth  = 80
	DefaultHeight = 12
)

// Downsample keeps at most n evenly spaced values, always including the
// last one.
func Downsample(data []float64, n int) []float64 {
	if n <= 0 || len(data) <= n {
		return data
	}
	out := make([]float64, n)
	step := float64(len(data)-1) / float64(n-1)
	for i := range out {
		out[i] = data[int(math.Round(float64(i)*step))]
	}
	return out
}

// PlotSeries draws data as an ASCII line chart. Empty data renders as "".
func PlotSeries(caption string, data []float64, width, height int) string {
	if len(data) == 0 {
		return ""
	}
	return asciigraph.Plot(Downsample(data, width),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotComponent draws component i of a trajectory against step index.
func PlotComponent(ts []float64, xs []dynamo.State, i, width, height int) (string, error) {
	if len(xs) == 0 {
		return "", nil
	}
	if i < 0 || i >= len(xs[0]) {
		return "", fmt.Errorf("%w: component %d of a %d-dimensional state",
			dynamo.ErrDimensionMismatch, i, len(xs[0]))
	}

	data := make([]float64, len(xs))
	for k, x := range xs {
		data[k] = x[i]
	}
	caption := fmt.Sprintf("x%d over [%g, %g]", i, ts[0], ts[len(ts)-1])
	return PlotSeries(caption, data, width, height), nil
}

// PlotStepSizes draws log10 of the step sizes, one point per attempt.
func PlotStepSizes(dts []float64, width, height int) string {
	data := make([]float64, 0, len(dts))
	for _, dt := range dts {
		if dt > 0 {
			data = append(data, math.Log10(dt))
		}
	}
	return PlotSeries("log10(dt) per attempt", data, width, height)
}
