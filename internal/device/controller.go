package device

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Command bytes of the iFocus wire protocol. These are bit-exact: any change
// breaks interoperability with the physical sensor.
const (
	cmdStartAcquisition = 0x01
	cmdStopAcquisition  = 0x02
	cmdRate250          = 0x04
	cmdRate500          = 0x05
)

const (
	// settleDelay is the pause around command writes; the firmware needs it
	// to process a command before the next byte arrives.
	settleDelay = 100 * time.Millisecond
	// connectTimeout bounds the connect handshake wait for first data.
	connectTimeout = 2 * time.Second
	// statePoll is the interval for bounded polling on state transitions.
	statePoll = 10 * time.Millisecond
	// handshakePoll is the connect-handshake poll interval while waiting for
	// the first inbound bytes.
	handshakePoll = 100 * time.Millisecond
	// readChunk is the per-read byte budget of the acquisition loop.
	readChunk = 256
)

// Controller owns a Transport and drives the connect / idle / acquire /
// terminate lifecycle of one iFocus device. A dedicated run goroutine is the
// only writer of the wire during acquisition; consumers interact exclusively
// through the state machine and the frame queue.
type Controller struct {
	tr Transport

	// opMu serializes the control-plane operations (start, stop, rate
	// change) so that wire I/O done outside the state lock cannot interleave
	// with a state transition that hands the wire to the run goroutine.
	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	fault   error
	queue   *frameQueue
	eegRate int

	done chan struct{}
}

// NewController selects the sample rate, performs the connect handshake and
// starts the controller's run goroutine. On any error the transport is closed
// and the controller is unusable.
func NewController(tr Transport, eegRate int) (*Controller, error) {
	c := &Controller{
		tr:    tr,
		state: Terminated,
		queue: newFrameQueue(),
		done:  make(chan struct{}),
	}
	if err := c.selectRate(eegRate); err != nil {
		tr.Close()
		return nil, err
	}
	if err := c.connect(); err != nil {
		tr.Close()
		return nil, err
	}
	c.state = IdleStarting
	go c.run()
	return c, nil
}

// EEGRate returns the negotiated EMG sample rate in Hz.
func (c *Controller) EEGRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eegRate
}

// IMURate returns the IMU sample rate in Hz, always 1/5 of the EMG rate.
func (c *Controller) IMURate() int {
	return c.EEGRate() / 5
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// selectRate writes the sample-rate command. The device acknowledges 500 Hz
// only on recent firmware; silence there means the firmware is too old.
func (c *Controller) selectRate(eegRate int) error {
	var cmd byte
	switch eegRate {
	case 250:
		cmd = cmdRate250
	case 500:
		cmd = cmdRate500
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidFrequency, eegRate)
	}
	if err := c.tr.Flush(); err != nil {
		return fmt.Errorf("device: flush before rate select: %w", err)
	}
	time.Sleep(settleDelay)
	if err := c.tr.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("device: rate select write: %w", err)
	}
	time.Sleep(settleDelay)
	ack, err := c.tr.ReadAvailable(readChunk)
	if err != nil {
		return fmt.Errorf("device: rate select read: %w", err)
	}
	if eegRate == 500 && len(ack) == 0 {
		return ErrUnsupportedFirmware
	}
	c.mu.Lock()
	c.eegRate = eegRate
	c.mu.Unlock()
	return nil
}

// connect performs the handshake: start a trial acquisition, wait up to
// connectTimeout for any inbound bytes, then immediately stop it again.
func (c *Controller) connect() error {
	if err := c.startData(); err != nil {
		return err
	}
	deadline := time.Now().Add(connectTimeout)
	for time.Now().Before(deadline) {
		data, err := c.tr.ReadAvailable(readChunk)
		if err != nil {
			return fmt.Errorf("device: handshake read: %w", err)
		}
		if len(data) > 0 {
			c.stopData()
			log.Printf("[device] connected, EMG rate %d Hz", c.eegRate)
			return nil
		}
		time.Sleep(handshakePoll)
	}
	c.stopData()
	return ErrConnectionTimeout
}

func (c *Controller) startData() error {
	c.tr.Flush()
	time.Sleep(settleDelay)
	if err := c.tr.Write([]byte{cmdStartAcquisition}); err != nil {
		return fmt.Errorf("device: start command: %w", err)
	}
	time.Sleep(settleDelay)
	return nil
}

func (c *Controller) stopData() error {
	if err := c.tr.Write([]byte{cmdStopAcquisition}); err != nil {
		return fmt.Errorf("device: stop command: %w", err)
	}
	time.Sleep(settleDelay)
	return nil
}

// run is the controller's worker goroutine. It owns the transport and the
// parser and is the only code that moves the machine out of the transition
// states.
func (c *Controller) run() {
	defer close(c.done)
	for {
		switch c.State() {
		case SignalStarting:
			c.acquire()
		case IdleStarting:
			// Conditional: a start request may have claimed the machine
			// between the read above and here; it must not be clobbered.
			c.casState(IdleStarting, Idle)
		case Idle:
			time.Sleep(statePoll)
		case TerminateStarting:
			// Best effort: the device may already be gone.
			c.tr.Write([]byte{cmdStopAcquisition})
			c.tr.Close()
			c.queue.end()
			c.setState(Terminated)
			log.Printf("[device] terminated")
			return
		default: // Terminated
			return
		}
	}
}

// acquire streams frames while the state remains Signal. Empty reads are
// normal and retried; only an I/O error is fatal. On leaving Signal for any
// reason the parser buffer is cleared and the queue is ended so a blocked
// consumer wakes instead of waiting forever.
func (c *Controller) acquire() {
	var parser Parser

	if err := c.startData(); err != nil {
		c.fail(err)
		return
	}
	// Conditional for the same reason as the IdleStarting transition: a stop
	// or terminate request issued during startData wins, the loop below never
	// runs and the tail quiesces the device.
	c.casState(SignalStarting, Signal)

	for c.State() == Signal {
		data, err := c.tr.ReadAvailable(readChunk)
		if err != nil {
			c.fail(fmt.Errorf("device: acquisition read: %w", err))
			break
		}
		if len(data) == 0 {
			time.Sleep(statePoll)
			continue
		}
		for _, f := range parser.Feed(data) {
			c.queue.push(f)
		}
	}

	parser.Reset()
	c.queue.end()

	// A stop request (IdleStarting) still has a live device to quiesce.
	if c.State() == IdleStarting {
		if err := c.stopData(); err != nil {
			c.fail(err)
		}
	}
}

// fail records a fatal fault and routes the machine toward Terminated.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.fault == nil {
		c.fault = err
	}
	c.state = TerminateStarting
	c.mu.Unlock()
	log.Printf("[device] fault: %v", err)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// casState moves from to to in one critical section and reports whether the
// transition happened. Transitions racing with public operations must use this
// so a concurrent state change is never overwritten.
func (c *Controller) casState(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// checkFault force-terminates and returns the stored reason if a fatal fault
// has been recorded. Every public operation calls this first.
func (c *Controller) checkFault() error {
	c.mu.Lock()
	fault := c.fault
	c.mu.Unlock()
	if fault == nil {
		return nil
	}
	c.Close()
	return fmt.Errorf("%w: %v", ErrDeviceFault, fault)
}

// StartAcquisition asks the device to stream and blocks, with bounded
// polling, until the state reaches Signal or Terminated.
func (c *Controller) StartAcquisition() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkFault(); err != nil {
		return err
	}
	c.mu.Lock()
	switch c.state {
	case Signal, SignalStarting:
		c.mu.Unlock()
		return nil
	case Terminated, TerminateStarting:
		c.mu.Unlock()
		return ErrTerminated
	}
	// Fresh queue per acquisition run; the previous run's end sentinel must
	// not leak into the new stream.
	c.queue = newFrameQueue()
	c.state = SignalStarting
	c.mu.Unlock()

	for {
		switch c.State() {
		case Signal:
			return nil
		case Terminated, TerminateStarting:
			if err := c.checkFault(); err != nil {
				return err
			}
			return ErrTerminated
		}
		time.Sleep(statePoll)
	}
}

// StopAcquisition stops streaming and blocks until Idle or Terminated.
// From Idle it is a no-op.
func (c *Controller) StopAcquisition() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkFault(); err != nil {
		return err
	}
	c.mu.Lock()
	switch c.state {
	case Idle, IdleStarting:
		c.mu.Unlock()
		return nil
	case Terminated, TerminateStarting:
		c.mu.Unlock()
		return ErrTerminated
	}
	c.state = IdleStarting
	c.mu.Unlock()

	for {
		switch c.State() {
		case Idle:
			return nil
		case Terminated, TerminateStarting:
			if err := c.checkFault(); err != nil {
				return err
			}
			return ErrTerminated
		}
		time.Sleep(statePoll)
	}
}

// SetFrequency changes the EMG sample rate. Only valid while idle.
func (c *Controller) SetFrequency(eegRate int) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkFault(); err != nil {
		return err
	}
	c.mu.Lock()
	switch c.state {
	case Signal, SignalStarting:
		c.mu.Unlock()
		return ErrAcquisitionActive
	case Terminated, TerminateStarting:
		c.mu.Unlock()
		return ErrTerminated
	}
	c.mu.Unlock()

	// The wire I/O runs without the state lock so State and Drain stay
	// responsive through the settle delays. opMu keeps any other control
	// operation from handing the wire to the run goroutine meanwhile, and
	// the run loop itself is parked in Idle.
	return c.selectRate(eegRate)
}

// Drain returns all frames currently queued, waiting up to timeout when the
// queue is empty. ok=false means the stream has ended (clean stop or fault);
// the caller should check the next control-plane call for the stored reason.
func (c *Controller) Drain(timeout time.Duration) (frames []Frame, ok bool) {
	c.mu.Lock()
	q := c.queue
	c.mu.Unlock()
	return q.drain(timeout)
}

// Close tears the connection down and blocks until Terminated. Idempotent;
// shutdown errors are swallowed by design.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == Terminated {
		c.mu.Unlock()
		return nil
	}
	c.state = TerminateStarting
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		log.Printf("[device] warning: run loop did not terminate in time")
	}
	return nil
}
