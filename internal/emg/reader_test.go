package emg_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickflex/emgdaq/internal/device"
	"github.com/quickflex/emgdaq/internal/emg"
	"github.com/quickflex/emgdaq/internal/transport"
)

func newSimReader(t *testing.T, cfg emg.Config, sim transport.SimConfig) *emg.Reader {
	t.Helper()
	r, err := emg.NewWithTransport(cfg, transport.NewSim(sim))
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func waitForSnapshot(t *testing.T, r *emg.Reader) *emg.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if snap := r.Snapshot(); len(snap.Envelope) > 0 {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no snapshot published within 3s")
	return nil
}

func TestReaderEndToEnd(t *testing.T) {
	r := newSimReader(t, emg.Config{SampleRateVariant: "low"}, transport.SimConfig{
		SineHz:      10,
		AmplitudeUV: 500,
	})
	assert.Equal(t, 250, r.Fs())
	assert.Equal(t, 50, r.IMURate())
	assert.Equal(t, 50, r.WindowSize())

	require.NoError(t, r.Start())
	assert.Equal(t, device.Signal, r.DeviceState())

	snap := waitForSnapshot(t, r)
	require.Len(t, snap.Raw, 50)
	require.Len(t, snap.Bandpass, 50)
	require.Len(t, snap.Notch, 50)
	require.Len(t, snap.Envelope, 50)

	var rawPeak, envPeak float64
	for i := range snap.Raw {
		rawPeak = math.Max(rawPeak, math.Abs(snap.Raw[i]))
		envPeak = math.Max(envPeak, snap.Envelope[i])
		require.False(t, math.IsNaN(snap.Bandpass[i]))
		require.False(t, math.IsNaN(snap.Envelope[i]))
	}
	assert.Greater(t, rawPeak, 100.0, "raw window should carry the test sine")
	assert.Greater(t, envPeak, 0.0)
	assert.LessOrEqual(t, envPeak, rawPeak*1.1)
}

func TestReaderSnapshotIsACopy(t *testing.T) {
	r := newSimReader(t, emg.Config{SampleRateVariant: "low"}, transport.SimConfig{})
	require.NoError(t, r.Start())
	snap := waitForSnapshot(t, r)
	snap.Raw[0] = math.Inf(1)
	again := r.Snapshot()
	assert.False(t, math.IsInf(again.Raw[0], 1))
}

func TestReaderStartIsIdempotent(t *testing.T) {
	r := newSimReader(t, emg.Config{SampleRateVariant: "low"}, transport.SimConfig{})
	require.NoError(t, r.Start())
	require.NoError(t, r.Start())
	waitForSnapshot(t, r)
}

func TestReaderStopReleasesConnection(t *testing.T) {
	r := newSimReader(t, emg.Config{SampleRateVariant: "low"}, transport.SimConfig{})
	require.NoError(t, r.Start())
	waitForSnapshot(t, r)

	r.Stop()
	r.Stop() // idempotent
	assert.Equal(t, device.Terminated, r.DeviceState())
	assert.Empty(t, r.Snapshot().Envelope)
	require.ErrorIs(t, r.Start(), emg.ErrSensorNotConnected)
}

func TestReaderZeroValueStart(t *testing.T) {
	var r emg.Reader
	assert.ErrorIs(t, r.Start(), emg.ErrSensorNotConnected)
}

func TestReaderLegacyFirmwareHighRate(t *testing.T) {
	_, err := emg.NewWithTransport(
		emg.Config{SampleRateVariant: "high"},
		transport.NewSim(transport.SimConfig{Legacy: true}),
	)
	require.ErrorIs(t, err, device.ErrUnsupportedFirmware)
}

func TestReaderLegacyFirmwareLowRate(t *testing.T) {
	r, err := emg.NewWithTransport(
		emg.Config{SampleRateVariant: "low"},
		transport.NewSim(transport.SimConfig{Legacy: true}),
	)
	require.NoError(t, err)
	r.Stop()
}

func TestReaderConfigValidation(t *testing.T) {
	_, err := emg.NewWithTransport(
		emg.Config{SampleRateVariant: "medium"},
		transport.NewSim(transport.SimConfig{}),
	)
	assert.Error(t, err)

	_, err = emg.NewWithTransport(
		emg.Config{Notch: 55},
		transport.NewSim(transport.SimConfig{}),
	)
	assert.Error(t, err)

	_, err = emg.NewWithTransport(
		emg.Config{LowCut: 100, HighCut: 10},
		transport.NewSim(transport.SimConfig{}),
	)
	assert.Error(t, err)
}
