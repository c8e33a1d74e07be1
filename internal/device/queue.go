package device

import (
	"sync"
	"time"
)

// frameQueue is the single handoff point between the acquisition goroutine
// (producer) and the session drain loop (consumer). The producer side is
// unbounded and never blocks: a stalled consumer grows memory rather than
// stalling acquisition. The consumer drains in batches with a bounded wait.
type frameQueue struct {
	mu     sync.Mutex
	frames []Frame
	ended  bool
	wake   chan struct{}
}

func newFrameQueue() *frameQueue {
	return &frameQueue{wake: make(chan struct{}, 1)}
}

func (q *frameQueue) push(f Frame) {
	q.mu.Lock()
	if q.ended {
		q.mu.Unlock()
		return
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()
	q.notify()
}

// end marks the stream as finished and wakes a blocked consumer. Idempotent.
func (q *frameQueue) end() {
	q.mu.Lock()
	q.ended = true
	q.mu.Unlock()
	q.notify()
}

func (q *frameQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drain returns every queued frame. When the queue is empty it waits up to
// timeout for new frames before returning. ok=false means the stream has
// ended and no frames remain; an empty batch with ok=true is the normal
// "no data yet" result and not an error.
func (q *frameQueue) drain(timeout time.Duration) (frames []Frame, ok bool) {
	if frames, ok, done := q.take(); done {
		return frames, ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.wake:
	case <-timer.C:
	}
	frames, ok, _ = q.take()
	return frames, ok
}

// take grabs all queued frames. done=false means the caller may block for
// more data (queue empty but still live).
func (q *frameQueue) take() (frames []Frame, ok, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) > 0 {
		frames = q.frames
		q.frames = nil
		return frames, true, true
	}
	if q.ended {
		return nil, false, true
	}
	return nil, true, false
}
