package domain

import (
	"math"
	"math/cmplx"
	"math/rand"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PSD is a one-sided-per-rotary-component power spectral density estimate
// in variance per cycle/hour. Scalar residuals populate Plus only; vector
// residuals carry the positive- and negative-rotary sides separately.
type PSD struct {
	FreqCPH []float64
	Plus    []float64
	Minus   []float64
}

// SpectralEstimator maps a gap-filled residual sequence to a PSD estimate.
// The linear error strategy accepts any implementation; WelchPSD is the
// built-in default.
type SpectralEstimator func(res []complex128, intervalHours float64) PSD

// welchSegment is the segment length used once a record is long enough to
// average several windows.
const welchSegment = 2048

// WelchPSD estimates the residual spectrum by Hann-windowed segment
// averaging with 50% overlap. Gap samples must already be zero-filled.
func WelchPSD(res []complex128, intervalHours float64) PSD {
	n := len(res)
	if n == 0 {
		return PSD{}
	}
	seg := n
	if seg > welchSegment {
		seg = welchSegment
	}
	step := seg / 2
	if step == 0 {
		step = 1
	}

	window := make([]float64, seg)
	wpow := 0.0
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(seg-1)))
		wpow += window[i] * window[i]
	}
	wpow /= float64(seg)

	fft := fourier.NewCmplxFFT(seg)
	half := seg / 2
	freqs := make([]float64, half)
	plus := make([]float64, half)
	minus := make([]float64, half)
	for k := 1; k <= half; k++ {
		freqs[k-1] = float64(k) / (float64(seg) * intervalHours)
	}

	buf := make([]complex128, seg)
	nseg := 0
	for start := 0; start+seg <= n; start += step {
		for i := 0; i < seg; i++ {
			buf[i] = res[start+i] * complex(window[i], 0)
		}
		coeff := fft.Coefficients(nil, buf)
		// Density normalization: |X|^2 * dt / (seg * window power).
		scale := intervalHours / (float64(seg) * wpow)
		for k := 1; k <= half; k++ {
			plus[k-1] += scale * sqAbs(coeff[k])
			neg := seg - k
			minus[k-1] += scale * sqAbs(coeff[neg])
		}
		nseg++
	}
	if nseg == 0 {
		return PSD{FreqCPH: freqs, Plus: plus, Minus: minus}
	}
	for k := range plus {
		plus[k] /= float64(nseg)
		minus[k] /= float64(nseg)
	}
	return PSD{FreqCPH: freqs, Plus: plus, Minus: minus}
}

func sqAbs(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

// noiseBands are the frequency bands (cycles/hour) over which residual
// densities are averaged: one per tidal species plus the low-frequency
// band, following conventional practice.
var noiseBands = [8][2]float64{
	{0.00010, 0.00417},
	{0.03192, 0.04859},
	{0.07218, 0.08884},
	{0.11243, 0.12910},
	{0.15269, 0.16936},
	{0.19295, 0.20961},
	{0.23320, 0.25100},
	{0.26000, 0.29000},
}

// bandDensity averages a PSD side over the noise band containing freq,
// falling back to the nearest band for out-of-range frequencies.
func bandDensity(p PSD, side []float64, freq float64) float64 {
	if len(p.FreqCPH) == 0 || len(side) == 0 {
		return 0
	}
	band := noiseBands[len(noiseBands)-1]
	for _, b := range noiseBands {
		if freq <= b[1] {
			band = b
			break
		}
	}
	sum := 0.0
	n := 0
	for i, f := range p.FreqCPH {
		if f >= band[0] && f <= band[1] {
			sum += side[i]
			n++
		}
	}
	if n == 0 {
		// Record too short to populate the band; use the whole spectrum.
		for _, v := range side {
			sum += v
		}
		n = len(side)
	}
	return sum / float64(n)
}

// rotaryVariance splits residual energy between the positive and negative
// rotary components of a vector residual. Gaps count as zeros.
func rotaryVariance(res []complex128) (plus, minus float64) {
	n := len(res)
	if n == 0 {
		return 0, 0
	}
	buf := make([]complex128, n)
	for i, v := range res {
		if !IsMissing(v) {
			buf[i] = v
		}
	}
	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, buf)
	nn := float64(n) * float64(n)
	for k := 1; k < n; k++ {
		e := sqAbs(coeff[k]) / nn
		if k <= n/2 {
			plus += e
		} else {
			minus += e
		}
	}
	return plus, minus
}

// surrogateResidual draws a colored-noise realization sharing the residual's
// amplitude spectrum, by phase randomization. The zero entries standing in
// for gaps stay part of the spectrum, which keeps the surrogate's energy
// consistent with the gappy record.
func surrogateResidual(res []complex128, vector bool, rng *rand.Rand) []complex128 {
	n := len(res)
	buf := make([]complex128, n)
	for i, v := range res {
		if !IsMissing(v) {
			buf[i] = v
		}
	}
	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, buf)
	out := make([]complex128, n)

	if vector {
		for k := range coeff {
			coeff[k] = cmplx.Rect(cmplx.Abs(coeff[k]), 2*math.Pi*rng.Float64())
		}
	} else {
		// Real input: keep Hermitian symmetry so the surrogate is real.
		coeff[0] = complex(real(coeff[0]), 0)
		for k := 1; k <= n/2; k++ {
			mirror := n - k
			if k == mirror || (n%2 == 0 && k == n/2) {
				coeff[k] = complex(cmplx.Abs(coeff[k])*sign(rng), 0)
				continue
			}
			c := cmplx.Rect(cmplx.Abs(coeff[k]), 2*math.Pi*rng.Float64())
			coeff[k] = c
			coeff[mirror] = cmplx.Conj(c)
		}
	}

	seq := fft.Sequence(nil, coeff)
	inv := complex(1/float64(n), 0)
	for i := range seq {
		out[i] = seq[i] * inv
		if !vector {
			out[i] = complex(real(out[i]), 0)
		}
	}
	return out
}

func sign(rng *rand.Rand) float64 {
	if rng.Intn(2) == 0 {
		return 1
	}
	return -1
}
