package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns the magnitude of the real FFT of data after removing
// its mean, one value per frequency bin up to Nyquist.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(len(data))
	coeff := fft.Coefficients(nil, centered)
	ps := make([]float64, len(coeff))
	for i, c := range coeff {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}

// DominantPeriod returns the period, in the units of dt, of the strongest
// non-constant component of a uniformly sampled series, and its magnitude.
// It returns 0, 0 for series that are too short or flat.
func DominantPeriod(data []float64, dt float64) (float64, float64) {
	ps := PowerSpectrum(data)
	if len(ps) < 2 || dt <= 0 {
		return 0, 0
	}
	best, power := 0, 0.0
	for i := 1; i < len(ps); i++ {
		if ps[i] > power {
			best, power = i, ps[i]
		}
	}
	if best == 0 || power < 1e-12 {
		return 0, 0
	}
	fft := fourier.NewFFT(len(data))
	freq := fft.Freq(best) / dt
	if freq == 0 || math.IsNaN(freq) {
		return 0, 0
	}
	return 1 / freq, power
}
