package device

// State is the device controller lifecycle state. Only the controller's run
// goroutine and its public operations mutate it; everything else observes.
type State int

const (
	// Terminated is both the initial state before a successful connect and
	// the terminal state. A terminated controller cannot be reused.
	Terminated State = iota
	// IdleStarting is the transition into Idle, entered after the connect
	// handshake and after a stop request.
	IdleStarting
	// Idle means connected with acquisition stopped.
	Idle
	// SignalStarting is the transition into Signal after a start request.
	SignalStarting
	// Signal means the acquisition loop is streaming frames.
	Signal
	// TerminateStarting is the transition into Terminated, entered on close
	// or on a fatal I/O fault.
	TerminateStarting
)

func (s State) String() string {
	switch s {
	case Terminated:
		return "terminated"
	case IdleStarting:
		return "idle-starting"
	case Idle:
		return "idle"
	case SignalStarting:
		return "signal-starting"
	case Signal:
		return "signal"
	case TerminateStarting:
		return "terminate-starting"
	default:
		return "unknown"
	}
}
