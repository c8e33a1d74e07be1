package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum returns the single-sided magnitude spectrum of x, normalized by
// the input length. It is a presentation helper for the stream view, not part
// of the filter chain contract.
func Spectrum(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	coeffs := fourier.NewFFT(len(x)).Coefficients(nil, x)
	mags := make([]float64, len(coeffs))
	scale := 1 / float64(len(x))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c) * scale
	}
	return mags
}

// SpectrumFreqs returns the frequency in Hz of each Spectrum bin for the
// given sample rate and input length.
func SpectrumFreqs(n int, fs float64) []float64 {
	if n == 0 {
		return nil
	}
	fft := fourier.NewFFT(n)
	freqs := make([]float64, n/2+1)
	for i := range freqs {
		freqs[i] = fft.Freq(i) * fs
	}
	return freqs
}
