// Package emg is the consumer-side acquisition session: it starts and stops
// the device controller, drains its frame queue, maintains the sliding sample
// window and publishes filter results as immutable snapshots.
package emg

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quickflex/emgdaq/internal/device"
	"github.com/quickflex/emgdaq/internal/dsp"
	"github.com/quickflex/emgdaq/internal/transport"
)

// ErrSensorNotConnected is returned by Start when the session has no live
// device controller (construction failed or the session was stopped).
var ErrSensorNotConnected = errors.New("emg: sensor not connected, connect the EMG sensor first")

const (
	// windowDuration is the sliding window length in seconds.
	windowDuration = 0.2
	// drainPoll bounds one queue drain; expiry is a normal re-poll.
	drainPoll = 100 * time.Millisecond
	// stopJoin bounds the wait for the drain goroutine on Stop. Overrun is
	// a warning, never an error: shutdown proceeds regardless.
	stopJoin = 5 * time.Second

	defaultLowCut  = 10.0
	defaultHighCut = 100.0
	defaultNotch   = 50.0
)

// Config selects the filter parameters and sample-rate variant of a session.
// The zero value of a field falls back to its default.
type Config struct {
	LowCut  float64 // band-pass low corner in Hz, default 10
	HighCut float64 // band-pass high corner in Hz, default 100
	Notch   float64 // power-line frequency, 50 or 60 Hz, default 50
	// SampleRateVariant selects the acquisition rates: "high" is 500 Hz EMG
	// with 100 Hz IMU, "low" is 250 Hz EMG with 50 Hz IMU. Default "high".
	SampleRateVariant string
	// Port pins the serial port; empty means enumerate and take the first
	// candidate.
	Port string
}

// Snapshot is the externally visible copy of the most recent fully processed
// window. All four slices have equal length; they are empty until the first
// window fills.
type Snapshot struct {
	Raw      []float64  `json:"raw"`
	Bandpass []float64  `json:"bandpass"`
	Notch    []float64  `json:"notch"`
	Envelope []float64  `json:"envelope"`
	IMU      [3]float64 `json:"imu"`
}

// Reader is one acquisition session over one device connection.
type Reader struct {
	fs         int
	windowSize int
	pipeline   *dsp.Pipeline

	mu      sync.Mutex
	ctrl    *device.Controller
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	latest  atomic.Pointer[dsp.Result]
	lastIMU atomic.Pointer[[3]float64]
}

// New connects to the sensor (enumerating FTDI candidates unless cfg.Port is
// set) and builds the session. Connection errors are fatal and propagate;
// there is no retry here.
func New(cfg Config) (*Reader, error) {
	port := cfg.Port
	if port == "" {
		candidates, err := transport.EnumerateCandidates()
		if err != nil {
			return nil, err
		}
		port = candidates[0]
	}
	tr, err := transport.Open(port)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(cfg, tr)
}

// NewWithTransport builds a session over an already-open transport. The
// transport is closed on error. Used by New, the demo mode and tests.
func NewWithTransport(cfg Config, tr device.Transport) (*Reader, error) {
	fs := 500
	switch cfg.SampleRateVariant {
	case "", "high":
	case "low":
		fs = 250
	default:
		tr.Close()
		return nil, fmt.Errorf("emg: sample rate variant must be \"high\" or \"low\", got %q", cfg.SampleRateVariant)
	}
	if cfg.LowCut == 0 {
		cfg.LowCut = defaultLowCut
	}
	if cfg.HighCut == 0 {
		cfg.HighCut = defaultHighCut
	}
	if cfg.Notch == 0 {
		cfg.Notch = defaultNotch
	}
	if cfg.Notch != 50 && cfg.Notch != 60 {
		tr.Close()
		return nil, fmt.Errorf("emg: notch frequency must be 50 or 60 Hz, got %g", cfg.Notch)
	}

	windowSize := int(float64(fs) * windowDuration)
	pipeline, err := dsp.NewPipeline(float64(fs), windowSize, cfg.LowCut, cfg.HighCut, cfg.Notch)
	if err != nil {
		tr.Close()
		return nil, err
	}

	ctrl, err := device.NewController(tr, fs)
	if err != nil {
		return nil, err
	}

	log.Printf("[emg] session ready: %d Hz EMG, %d Hz IMU, window %d samples",
		fs, fs/5, windowSize)
	return &Reader{
		fs:         fs,
		windowSize: windowSize,
		pipeline:   pipeline,
		ctrl:       ctrl,
	}, nil
}

// Fs returns the EMG sample rate in Hz.
func (r *Reader) Fs() int { return r.fs }

// IMURate returns the IMU sample rate in Hz.
func (r *Reader) IMURate() int { return r.fs / 5 }

// WindowSize returns the sliding window length in samples.
func (r *Reader) WindowSize() int { return r.windowSize }

// DeviceState reports the controller state, Terminated when no controller.
func (r *Reader) DeviceState() device.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctrl == nil {
		return device.Terminated
	}
	return r.ctrl.State()
}

// Start begins acquisition and launches the drain loop. Idempotent while
// running; fails with ErrSensorNotConnected when no controller is available.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctrl == nil {
		return ErrSensorNotConnected
	}
	if r.running {
		return nil
	}
	if err := r.ctrl.StartAcquisition(); err != nil {
		return err
	}
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true
	go r.drainLoop(r.ctrl, r.stopCh, r.done)
	log.Printf("[emg] acquisition started")
	return nil
}

// drainLoop is the sole consumer of the frame queue and sole owner of the
// sample window. Each admitted sample that keeps the window full triggers a
// full-window recomputation; that O(window) cost per sample is the reference
// behavior, so size the window accordingly.
func (r *Reader) drainLoop(ctrl *device.Controller, stopCh, done chan struct{}) {
	defer close(done)
	window := NewWindow(r.windowSize)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		frames, ok := ctrl.Drain(drainPoll)
		if !ok {
			// Stream ended: clean stop or device fault. The last published
			// snapshot stays visible, stale but valid, until a restart.
			log.Printf("[emg] frame stream ended")
			return
		}
		for _, f := range frames {
			imu := f.IMU
			r.lastIMU.Store(&imu)
			for _, v := range f.EMG {
				window.Push(v)
				if !window.Full() {
					continue
				}
				res, err := r.pipeline.Process(window.Values())
				if err != nil {
					log.Printf("[emg] filter pass failed: %v", err)
					continue
				}
				r.latest.Store(res)
			}
		}
	}
}

// Stop halts acquisition and releases the connection. Idempotent; all
// shutdown failures are downgraded to warnings so cleanup always completes.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.running {
		ctrl := r.ctrl
		r.ctrl = nil
		r.mu.Unlock()
		if ctrl != nil {
			ctrl.Close()
		}
		return
	}
	r.running = false
	close(r.stopCh)
	ctrl := r.ctrl
	r.ctrl = nil
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopJoin):
		log.Printf("[emg] warning: drain loop did not terminate in time")
	}

	if err := ctrl.StopAcquisition(); err != nil {
		log.Printf("[emg] warning: stop acquisition: %v", err)
	}
	ctrl.Close()
	r.latest.Store(nil)
	r.lastIMU.Store(nil)
	log.Printf("[emg] stopped")
}

// Snapshot returns an immutable copy of the latest filter result. Safe to
// call concurrently with the drain loop; never blocks. Empty until the first
// window has been processed.
func (r *Reader) Snapshot() *Snapshot {
	snap := &Snapshot{}
	if imu := r.lastIMU.Load(); imu != nil {
		snap.IMU = *imu
	}
	res := r.latest.Load()
	if res == nil {
		return snap
	}
	snap.Raw = append([]float64(nil), res.Raw...)
	snap.Bandpass = append([]float64(nil), res.Bandpassed...)
	snap.Notch = append([]float64(nil), res.Notched...)
	snap.Envelope = append([]float64(nil), res.Envelope...)
	return snap
}
