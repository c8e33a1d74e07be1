// Package transport provides the serial byte transport for the iFocus EMG
// sensor, plus a simulated transport for development and tests.
package transport

import (
	"fmt"
	"log"
	"time"

	"go.bug.st/serial"
)

const (
	// Baud is the fixed line rate of the iFocus sensor.
	Baud = 921600
	// readTimeout bounds a single read; expiry yields an empty read,
	// never an error.
	readTimeout = 100 * time.Millisecond
)

// SerialTransport is the production device.Transport over a USB-serial link.
type SerialTransport struct {
	portName string
	port     serial.Port
}

// Open opens the named serial port at the sensor's fixed line rate.
func Open(portName string) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", portName, err)
	}
	log.Printf("[transport] opened %s at %d baud", portName, Baud)
	return &SerialTransport{portName: portName, port: port}, nil
}

// PortName returns the underlying port path.
func (t *SerialTransport) PortName() string { return t.portName }

func (t *SerialTransport) Write(p []byte) error {
	if t.port == nil {
		return fmt.Errorf("transport: %s is closed", t.portName)
	}
	if _, err := t.port.Write(p); err != nil {
		return fmt.Errorf("transport: write %s: %w", t.portName, err)
	}
	return nil
}

func (t *SerialTransport) ReadAvailable(max int) ([]byte, error) {
	if t.port == nil {
		return nil, fmt.Errorf("transport: %s is closed", t.portName)
	}
	buf := make([]byte, max)
	n, err := t.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", t.portName, err)
	}
	return buf[:n], nil
}

func (t *SerialTransport) Flush() error {
	if t.port == nil {
		return nil
	}
	return t.port.ResetInputBuffer()
}

// Close releases the port. Idempotent and best-effort: close failures during
// shutdown are logged, not returned.
func (t *SerialTransport) Close() error {
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		log.Printf("[transport] warning: close %s: %v", t.portName, err)
	}
	t.port = nil
	return nil
}
