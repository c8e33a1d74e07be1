package dsp

import "math"

// movingRMS computes the RMS envelope of x: rectify, square, convolve with a
// uniform moving-average kernel, square root. The convolution is centered
// ('same' length output), so samples near the window edges are biased by the
// implicit zero padding; that behavior is intentional and preserved.
func movingRMS(x []float64, kernel int) []float64 {
	if kernel < 1 {
		kernel = 1
	}
	sq := make([]float64, len(x))
	for i, v := range x {
		r := math.Abs(v)
		sq[i] = r * r
	}

	w := 1.0 / float64(kernel)
	full := make([]float64, len(x)+kernel-1)
	for i, v := range sq {
		for j := 0; j < kernel; j++ {
			full[i+j] += v * w
		}
	}

	start := (kernel - 1) / 2
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.Sqrt(full[start+i])
	}
	return out
}
