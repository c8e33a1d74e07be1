package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// lfilter applies an IIR filter along x using the direct form II transposed
// structure. a[0] must be non-zero; coefficients are normalized by it.
func lfilter(b, a, x []float64) []float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	bn := make([]float64, n)
	an := make([]float64, n)
	copy(bn, b)
	copy(an, a)
	a0 := an[0]
	for i := range bn {
		bn[i] /= a0
		an[i] /= a0
	}

	if n == 1 {
		y := make([]float64, len(x))
		for i, xi := range x {
			y[i] = bn[0] * xi
		}
		return y
	}

	z := make([]float64, n-1)
	y := make([]float64, len(x))
	for i, xi := range x {
		yi := bn[0]*xi + z[0]
		for j := 0; j < n-2; j++ {
			z[j] = bn[j+1]*xi + z[j+1] - an[j+1]*yi
		}
		z[n-2] = bn[n-1]*xi - an[n-1]*yi
		y[i] = yi
	}
	return y
}

// filtFilt applies the filter forward and backward for zero phase
// distortion. The signal is extended at both ends by an odd-symmetric
// reflection to damp startup transients, matching the usual forward-backward
// filtering convention.
func filtFilt(b, a, x []float64) ([]float64, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	padlen := 3 * (n - 1)
	if len(x) <= padlen {
		return nil, fmt.Errorf("dsp: input length %d must exceed padding length %d", len(x), padlen)
	}

	ext := make([]float64, 0, len(x)+2*padlen)
	for i := padlen; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	last := len(x) - 1
	for i := 1; i <= padlen; i++ {
		ext = append(ext, 2*x[last]-x[last-i])
	}

	y := lfilter(b, a, ext)
	floats.Reverse(y)
	y = lfilter(b, a, y)
	floats.Reverse(y)
	return y[padlen : padlen+len(x)], nil
}
