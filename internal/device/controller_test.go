package device

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a scriptable in-memory device: it acknowledges rate
// selects, emits one well-formed frame per read while streaming, and can be
// made silent or faulty.
type fakeTransport struct {
	mu        sync.Mutex
	wrote     []byte
	pending   []byte
	streaming bool
	silent    bool  // never produce any bytes (dead device)
	ack500    bool  // acknowledge the 500 Hz select
	readErr   error // injected fatal read failure
	closed    bool
	seq       int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ack500: true}
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrote = append(f.wrote, p...)
	for _, b := range p {
		switch b {
		case cmdStartAcquisition:
			f.streaming = true
		case cmdStopAcquisition:
			f.streaming = false
		case cmdRate250:
			f.pending = append(f.pending, cmdRate250)
		case cmdRate500:
			if f.ack500 {
				f.pending = append(f.pending, cmdRate500)
			}
		}
	}
	return nil
}

func (f *fakeTransport) ReadAvailable(max int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.silent {
		return nil, nil
	}
	if len(f.pending) == 0 && f.streaming {
		f.pending = EncodeFrame([5]int32{f.seq, f.seq, f.seq, f.seq, f.seq}, [3]int16{})
		f.seq++
	}
	n := len(f.pending)
	if n > max {
		n = max
	}
	out := f.pending[:n]
	f.pending = f.pending[n:]
	return out, nil
}

func (f *fakeTransport) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) setReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %v, stuck at %v", want, c.State())
}

func TestControllerConnectReachesIdle(t *testing.T) {
	tr := newFakeTransport()
	c, err := NewController(tr, 250)
	require.NoError(t, err)
	defer c.Close()

	waitForState(t, c, Idle)
	assert.Equal(t, 250, c.EEGRate())
	assert.Equal(t, 50, c.IMURate())
	// The trial acquisition of the handshake must have been stopped again.
	assert.False(t, tr.streaming)
}

func TestControllerInvalidFrequency(t *testing.T) {
	_, err := NewController(newFakeTransport(), 300)
	require.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestControllerUnsupportedFirmware(t *testing.T) {
	tr := newFakeTransport()
	tr.ack500 = false
	_, err := NewController(tr, 500)
	require.ErrorIs(t, err, ErrUnsupportedFirmware)
	assert.True(t, tr.closed)
}

func TestControllerConnectTimeout(t *testing.T) {
	tr := newFakeTransport()
	tr.silent = true
	_, err := NewController(tr, 250)
	require.ErrorIs(t, err, ErrConnectionTimeout)
	assert.True(t, tr.closed)
}

func TestControllerStopFromIdleIsNoOp(t *testing.T) {
	c, err := NewController(newFakeTransport(), 250)
	require.NoError(t, err)
	defer c.Close()

	waitForState(t, c, Idle)
	done := make(chan error, 1)
	go func() { done <- c.StopAcquisition() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("StopAcquisition from Idle blocked")
	}
}

func TestControllerStartStopCycle(t *testing.T) {
	tr := newFakeTransport()
	c, err := NewController(tr, 500)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.StartAcquisition())
	assert.Equal(t, Signal, c.State())

	frames, ok := c.Drain(500 * time.Millisecond)
	require.True(t, ok)
	require.NotEmpty(t, frames)

	require.NoError(t, c.StopAcquisition())
	assert.Equal(t, Idle, c.State())
	assert.False(t, tr.streaming)

	// Second cycle: the previous run's end sentinel must not leak through.
	require.NoError(t, c.StartAcquisition())
	frames, ok = c.Drain(500 * time.Millisecond)
	require.True(t, ok)
	require.NotEmpty(t, frames)
	require.NoError(t, c.StopAcquisition())
}

func TestControllerSetFrequencyWhileActive(t *testing.T) {
	c, err := NewController(newFakeTransport(), 250)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.StartAcquisition())
	require.ErrorIs(t, c.SetFrequency(500), ErrAcquisitionActive)
	require.NoError(t, c.StopAcquisition())
	require.NoError(t, c.SetFrequency(500))
	assert.Equal(t, 500, c.EEGRate())
}

func TestControllerFatalReadFault(t *testing.T) {
	tr := newFakeTransport()
	c, err := NewController(tr, 250)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.StartAcquisition())
	tr.setReadErr(errors.New("usb yanked"))

	// The consumer is woken by the end sentinel rather than left blocked.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, ok := c.Drain(100 * time.Millisecond)
		if !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("queue never signalled end of stream after fault")
		}
	}

	waitForState(t, c, Terminated)
	err = c.StartAcquisition()
	require.ErrorIs(t, err, ErrDeviceFault)
	assert.Contains(t, err.Error(), "usb yanked")
	require.ErrorIs(t, c.StopAcquisition(), ErrDeviceFault)
}

func TestControllerStartDuringIdleTransition(t *testing.T) {
	tr := newFakeTransport()
	c, err := NewController(tr, 250)
	require.NoError(t, err)
	defer c.Close()
	waitForState(t, c, Idle)

	// Race a start request against the run goroutine's IdleStarting -> Idle
	// transition, the interleave a caller hits when it starts acquisition
	// right after construction. The start must never be overwritten, so every
	// iteration has to settle in Signal within the deadline.
	for i := 0; i < 10; i++ {
		c.setState(IdleStarting)
		done := make(chan error, 1)
		go func() { done <- c.StartAcquisition() }()
		select {
		case err := <-done:
			require.NoError(t, err, "iteration %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: start request lost, StartAcquisition wedged", i)
		}
		require.Equal(t, Signal, c.State())
		require.NoError(t, c.StopAcquisition())
	}
}

func TestControllerStateResponsiveDuringRateChange(t *testing.T) {
	c, err := NewController(newFakeTransport(), 250)
	require.NoError(t, err)
	defer c.Close()
	waitForState(t, c, Idle)

	done := make(chan error, 1)
	go func() { done <- c.SetFrequency(500) }()
	time.Sleep(20 * time.Millisecond) // let the rate change enter its settle delays

	// State and Drain must not stall behind the rate change's wire I/O.
	start := time.Now()
	c.State()
	c.Drain(0)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, <-done)
	assert.Equal(t, 500, c.EEGRate())
}

func TestControllerCloseIsIdempotent(t *testing.T) {
	c, err := NewController(newFakeTransport(), 250)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, Terminated, c.State())
}
