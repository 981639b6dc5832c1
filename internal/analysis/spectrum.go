package analysis

import (
	"fmt"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/rkode/internal/dynamo"
)

// Resample linearly interpolates component i of a trajectory onto n equally
// spaced times spanning ts. Adaptive runs need this before any FFT.
func Resample(ts []float64, xs []dynamo.State, i, n int) ([]float64, float64, error) {
	if len(ts) < 2 || len(ts) != len(xs) {
		return nil, 0, fmt.Errorf("%w: need at least two aligned samples, got %d times and %d states",
			dynamo.ErrInvalidConfig, len(ts), len(xs))
	}
	if i < 0 || i >= len(xs[0]) {
		return nil, 0, fmt.Errorf("%w: component %d of a %d-dimensional state",
			dynamo.ErrDimensionMismatch, i, len(xs[0]))
	}
	if n < 2 {
		return nil, 0, fmt.Errorf("%w: resample to at least 2 points, got %d", dynamo.ErrInvalidConfig, n)
	}

	t0, tf := ts[0], ts[len(ts)-1]
	dt := (tf - t0) / float64(n-1)
	out := make([]float64, n)
	k := 0
	for j := range out {
		t := t0 + float64(j)*dt
		if j == n-1 {
			t = tf
		}
		for k < len(ts)-2 && ts[k+1] < t {
			k++
		}
		span := ts[k+1] - ts[k]
		if span <= 0 {
			out[j] = xs[k+1][i]
			continue
		}
		w := (t - ts[k]) / span
		out[j] = (1-w)*xs[k][i] + w*xs[k+1][i]
	}
	return out, dt, nil
}

// PowerSpectrum returns the one-sided amplitude spectrum of uniformly
// sampled data with the mean removed. Bin k is frequency k/(len(data)*dt).
func PowerSpectrum(data []float64) []float64 {
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, len(coeffs)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// Peak is one spectral line.
type Peak struct {
	Frequency float64
	Amplitude float64
}

// DominantFrequencies resamples component i onto n points and returns the
// count strongest local maxima of its spectrum, strongest first.
func DominantFrequencies(ts []float64, xs []dynamo.State, i, n, count int) ([]Peak, error) {
	samples, dt, err := Resample(ts, xs, i, n)
	if err != nil {
		return nil, err
	}
	ps := PowerSpectrum(samples)
	df := 1 / (float64(n) * dt)

	var peaks []Peak
	for k := 1; k < len(ps); k++ {
		right := 0.0
		if k+1 < len(ps) {
			right = ps[k+1]
		}
		if ps[k] > ps[k-1] && ps[k] >= right {
			peaks = append(peaks, Peak{Frequency: float64(k) * df, Amplitude: ps[k]})
		}
	}
	sort.SliceStable(peaks, func(a, b int) bool { return peaks[a].Amplitude > peaks[b].Amplitude })
	if len(peaks) > count {
		peaks = peaks[:count]
	}
	return peaks, nil
}
