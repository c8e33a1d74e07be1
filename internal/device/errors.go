package device

import "errors"

var (
	// ErrConnectionTimeout is returned when the connect handshake sees no
	// inbound bytes within the handshake window.
	ErrConnectionTimeout = errors.New("device: connection failed, no data available")

	// ErrUnsupportedFirmware is returned when the device does not acknowledge
	// the 500 Hz rate select; old firmware only supports 250 Hz.
	ErrUnsupportedFirmware = errors.New("device: firmware does not support 500 Hz, update it or fall back to 250 Hz")

	// ErrInvalidFrequency is returned for EMG sample rates other than 250 or 500 Hz.
	ErrInvalidFrequency = errors.New("device: EMG sample rate must be 250 or 500 Hz")

	// ErrAcquisitionActive is returned when the sample rate is changed while
	// acquisition is running.
	ErrAcquisitionActive = errors.New("device: acquisition already started, stop it first")

	// ErrDeviceFault wraps a fatal I/O failure recorded by the acquisition
	// loop. Once set, every public operation force-terminates and returns it.
	ErrDeviceFault = errors.New("device: fatal I/O fault")

	// ErrTerminated is returned for operations on a terminated controller.
	ErrTerminated = errors.New("device: connection terminated")
)
