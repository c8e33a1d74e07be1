package dsp

import (
	"fmt"
	"math"
)

// iirNotch designs a second-order IIR notch filter. freqN is the notch
// frequency normalized to Nyquist (0 < freqN < 1), q the quality factor
// (center frequency over bandwidth). The magnitude response is exactly zero
// at the notch frequency and unity at DC and Nyquist.
func iirNotch(freqN, q float64) (b, a []float64, err error) {
	if !(0 < freqN && freqN < 1) {
		return nil, nil, fmt.Errorf("dsp: normalized notch frequency must be in (0, 1), got %g", freqN)
	}
	if q <= 0 {
		return nil, nil, fmt.Errorf("dsp: quality factor must be positive, got %g", q)
	}
	w0 := math.Pi * freqN
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)

	a0 := 1 + alpha
	b = []float64{1 / a0, -2 * cosW0 / a0, 1 / a0}
	a = []float64{1, -2 * cosW0 / a0, (1 - alpha) / a0}
	return b, a, nil
}
