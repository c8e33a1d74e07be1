// Package dsp implements the EMG filter chain: a zero-phase Butterworth
// band-pass, a zero-phase power-line notch, and a moving RMS envelope.
package dsp

import (
	"errors"
	"fmt"
)

const (
	// filterOrder is the Butterworth band-pass order.
	filterOrder = 4
	// qualityFactor is the fixed Q of the notch filter.
	qualityFactor = 30.0
)

// ErrInsufficientSamples is returned by Process when the input is shorter
// than the configured window size.
var ErrInsufficientSamples = errors.New("dsp: not enough samples for the configured window")

// Result holds one full pass of the filter chain. All four slices have the
// same length as the input window. A Result is never mutated after Process
// returns; new data produces a new Result.
type Result struct {
	Raw        []float64 `json:"raw"`
	Bandpassed []float64 `json:"bandpass"`
	Notched    []float64 `json:"notch"`
	Envelope   []float64 `json:"envelope"`
}

// Pipeline applies the three-stage transform with coefficients designed once
// at construction. Process is pure and safe for concurrent use.
type Pipeline struct {
	fs         float64
	windowSize int

	bandB, bandA   []float64
	notchB, notchA []float64
}

// NewPipeline designs the filters for the given sample rate. lowCut and
// highCut are the band-pass corner frequencies in Hz, notch the power-line
// frequency in Hz. windowSize is the number of samples Process expects and
// the RMS kernel length.
func NewPipeline(fs float64, windowSize int, lowCut, highCut, notch float64) (*Pipeline, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("dsp: sample rate must be positive, got %g", fs)
	}
	if windowSize < 1 {
		return nil, fmt.Errorf("dsp: window size must be >= 1, got %d", windowSize)
	}
	nyquist := fs / 2
	bandB, bandA, err := butterBandpass(filterOrder, lowCut/nyquist, highCut/nyquist)
	if err != nil {
		return nil, err
	}
	notchB, notchA, err := iirNotch(notch/nyquist, qualityFactor)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		fs:         fs,
		windowSize: windowSize,
		bandB:      bandB,
		bandA:      bandA,
		notchB:     notchB,
		notchA:     notchA,
	}, nil
}

// WindowSize returns the number of samples Process expects.
func (p *Pipeline) WindowSize() int { return p.windowSize }

// Process runs the full chain over one window of raw samples. The input is
// copied, never retained or mutated.
func (p *Pipeline) Process(window []float64) (*Result, error) {
	if len(window) < p.windowSize {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, len(window), p.windowSize)
	}
	raw := make([]float64, len(window))
	copy(raw, window)

	bandpassed, err := filtFilt(p.bandB, p.bandA, raw)
	if err != nil {
		return nil, fmt.Errorf("dsp: band-pass: %w", err)
	}
	notched, err := filtFilt(p.notchB, p.notchA, bandpassed)
	if err != nil {
		return nil, fmt.Errorf("dsp: notch: %w", err)
	}
	envelope := movingRMS(notched, p.windowSize)

	return &Result{
		Raw:        raw,
		Bandpassed: bandpassed,
		Notched:    notched,
		Envelope:   envelope,
	}, nil
}
