package emg

// Window is a fixed-capacity ring buffer of raw EMG samples. Once full,
// pushes overwrite the oldest entry, so memory stays bounded and a push is
// O(1). It is owned exclusively by the session's drain loop and is not safe
// for concurrent use.
type Window struct {
	buf   []float64
	head  int
	count int
}

// NewWindow creates a window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest when full.
func (w *Window) Push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Full reports whether the window has reached capacity.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Len returns the number of samples currently held.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Values returns the samples in arrival order as a fresh slice.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(start+i)%len(w.buf)]
	}
	return out
}

// Clear discards all samples.
func (w *Window) Clear() {
	w.head = 0
	w.count = 0
}
