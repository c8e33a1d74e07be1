package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// butterBandpass designs a digital Butterworth band-pass filter of the given
// order. lowN and highN are cutoffs normalized to the Nyquist frequency
// (0 < lowN < highN < 1). Returned coefficient slices follow the usual
// b/a transfer-function convention with a[0] == 1.
//
// The design path is the classic one: analog low-pass prototype poles,
// low-pass to band-pass transform, then bilinear transform with frequency
// prewarping.
func butterBandpass(order int, lowN, highN float64) (b, a []float64, err error) {
	if order < 1 {
		return nil, nil, fmt.Errorf("dsp: filter order must be >= 1, got %d", order)
	}
	if !(0 < lowN && lowN < highN && highN < 1) {
		return nil, nil, fmt.Errorf("dsp: normalized cutoffs must satisfy 0 < low < high < 1, got [%g, %g]", lowN, highN)
	}

	// Prewarp the band edges. The sampling rate is normalized to 2 so that
	// the Nyquist frequency maps to 1.
	const fs = 2.0
	warpedLow := 2 * fs * math.Tan(math.Pi*lowN/fs)
	warpedHigh := 2 * fs * math.Tan(math.Pi*highN/fs)
	bw := warpedHigh - warpedLow
	w0 := math.Sqrt(warpedLow * warpedHigh)

	// Analog low-pass prototype: poles evenly spaced on the left half of the
	// unit circle, no finite zeros, unit gain.
	poles := make([]complex128, order)
	for i := 0; i < order; i++ {
		m := float64(-order + 1 + 2*i)
		poles[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
	}

	// Low-pass to band-pass: each prototype pole splits into a pair, and
	// `order` zeros appear at the origin.
	bpPoles := make([]complex128, 0, 2*order)
	for _, p := range poles {
		ps := p * complex(bw/2, 0)
		d := cmplx.Sqrt(ps*ps - complex(w0*w0, 0))
		bpPoles = append(bpPoles, ps+d, ps-d)
	}
	bpZeros := make([]complex128, order) // all at s = 0
	gain := math.Pow(bw, float64(order))

	// Bilinear transform of the zero/pole/gain representation.
	fs2 := complex(2*fs, 0)
	zd := make([]complex128, 0, 2*order)
	numer := complex(1, 0)
	denom := complex(1, 0)
	for _, z := range bpZeros {
		zd = append(zd, (fs2+z)/(fs2-z))
		numer *= fs2 - z
	}
	pd := make([]complex128, 0, 2*order)
	for _, p := range bpPoles {
		pd = append(pd, (fs2+p)/(fs2-p))
		denom *= fs2 - p
	}
	// Zeros at infinity map to z = -1.
	for i := 0; i < 2*order-len(bpZeros); i++ {
		zd = append(zd, -1)
	}
	k := gain * real(numer/denom)

	b = realPoly(zd)
	for i := range b {
		b[i] *= k
	}
	a = realPoly(pd)
	return b, a, nil
}

// realPoly expands a set of roots into real polynomial coefficients in
// descending order. The roots must come in conjugate pairs (or be real) for
// the imaginary parts to cancel.
func realPoly(roots []complex128) []float64 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, c := range coeffs {
			next[i] += c
			next[i+1] -= c * r
		}
		coeffs = next
	}
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = real(c)
	}
	return out
}
