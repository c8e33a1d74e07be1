package transport

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quickflex/emgdaq/internal/device"
)

// SimTransport is a simulated iFocus device for development and tests. It
// honours the full command protocol (start/stop/rate select with
// acknowledgment) and, while streaming, synthesises well-formed frames from a
// sine source paced at the configured sample rate.
type SimTransport struct {
	mu        sync.Mutex
	closed    bool
	streaming bool
	rate      int

	sineHz float64
	ampUV  float64
	legacy bool
	chunk  int

	pending   []byte
	sampleIdx int
	lastGen   time.Time
}

// SimConfig configures the simulated device.
type SimConfig struct {
	SineHz      float64 // test signal frequency, default 10 Hz
	AmplitudeUV float64 // test signal amplitude, default 500 µV
	Legacy      bool    // old firmware: no acknowledgment of the 500 Hz select
	Chunk       int     // max bytes per read, deliberately not frame-aligned
}

// NewSim creates a simulated transport. The zero config gives a 10 Hz,
// 500 µV sine on current firmware.
func NewSim(cfg SimConfig) *SimTransport {
	if cfg.SineHz == 0 {
		cfg.SineHz = 10
	}
	if cfg.AmplitudeUV == 0 {
		cfg.AmplitudeUV = 500
	}
	if cfg.Chunk == 0 {
		cfg.Chunk = 17
	}
	return &SimTransport{
		rate:   500,
		sineHz: cfg.SineHz,
		ampUV:  cfg.AmplitudeUV,
		legacy: cfg.Legacy,
		chunk:  cfg.Chunk,
	}
}

func (s *SimTransport) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sim: transport closed")
	}
	for _, b := range p {
		switch b {
		case 0x01:
			s.streaming = true
			s.lastGen = time.Now()
		case 0x02:
			s.streaming = false
			s.pending = nil
		case 0x04:
			s.rate = 250
			s.pending = append(s.pending, 0x04)
		case 0x05:
			if !s.legacy {
				s.rate = 500
				s.pending = append(s.pending, 0x05)
			}
		}
	}
	return nil
}

func (s *SimTransport) ReadAvailable(max int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("sim: transport closed")
	}
	s.generate()
	n := len(s.pending)
	if n > s.chunk {
		n = s.chunk
	}
	if n > max {
		n = max
	}
	out := s.pending[:n]
	s.pending = s.pending[n:]
	return out, nil
}

// generate appends whole frames for the wall time elapsed since the last
// read, five samples per frame.
func (s *SimTransport) generate() {
	if !s.streaming {
		return
	}
	now := time.Now()
	elapsed := now.Sub(s.lastGen).Seconds()
	frames := int(elapsed * float64(s.rate) / float64(5))
	if frames == 0 {
		return
	}
	// Carry the fractional remainder so the pacing does not drift.
	s.lastGen = s.lastGen.Add(time.Duration(float64(frames*5) / float64(s.rate) * float64(time.Second)))
	scale := device.EMGScale()
	for i := 0; i < frames; i++ {
		var emg [5]int32
		var t float64
		for j := range emg {
			t = float64(s.sampleIdx) / float64(s.rate)
			uv := s.ampUV * math.Sin(2*math.Pi*s.sineHz*t)
			emg[j] = int32(math.Round(uv / scale))
			s.sampleIdx++
		}
		imu := [3]int16{
			int16(math.Round(10 * math.Sin(0.5*t) / 0.01)),
			int16(math.Round(5 * math.Cos(0.5*t) / 0.01)),
			0,
		}
		s.pending = append(s.pending, device.EncodeFrame(emg, imu)...)
	}
}

func (s *SimTransport) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	return nil
}

func (s *SimTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.streaming = false
	s.pending = nil
	return nil
}

// Streaming reports whether the simulated device believes it is streaming.
func (s *SimTransport) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}
