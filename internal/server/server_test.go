package server

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickflex/emgdaq/internal/dsp"
)

func TestTickFramePayloadShape(t *testing.T) {
	const fs = 250.0
	notch := make([]float64, 50)
	for i := range notch {
		notch[i] = math.Sin(2 * math.Pi * 20 * float64(i) / fs)
	}
	frame := &TickFrame{
		Stamp:         1724572800000,
		Raw:           []float64{1, 2, 3, 4, 5},
		Bandpass:      []float64{1, 2, 3, 4, 5},
		Notch:         []float64{1, 2, 3, 4, 5},
		Envelope:      []float64{1, 2, 3, 4, 5},
		IMU:           [3]float64{10, -20, 0.5},
		Spectrum:      dsp.Spectrum(notch),
		SpectrumFreqs: dsp.SpectrumFreqs(len(notch), fs),
	}
	require.Equal(t, len(frame.Spectrum), len(frame.SpectrumFreqs),
		"every spectrum bin needs its frequency")

	data, err := json.Marshal(frame)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{
		"stamp", "raw", "bandpass", "notch", "envelope", "imu",
		"spectrum", "spectrumFreqs",
	} {
		assert.Contains(t, decoded, key)
	}
}

func TestTickFrameOmitsEmptySpectrum(t *testing.T) {
	data, err := json.Marshal(&TickFrame{})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "spectrum")
	assert.NotContains(t, decoded, "spectrumFreqs")
}
