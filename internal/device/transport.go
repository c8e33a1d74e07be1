package device

// Transport is the byte-level serial link the controller drives. Only the
// controller touches it after construction. Implementations must treat
// "no data within the read timeout" as an empty read, not an error.
type Transport interface {
	// Write sends command bytes to the device.
	Write(p []byte) error
	// ReadAvailable returns whatever bytes are available within a short
	// timeout, up to max. An empty slice with a nil error means no data yet.
	ReadAvailable(max int) ([]byte, error)
	// Flush discards buffered inbound bytes.
	Flush() error
	// Close releases the link. Idempotent, best-effort.
	Close() error
}
