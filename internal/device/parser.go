package device

// Parser is a stateful byte-stream decoder. It accumulates transport bytes
// across reads and emits every complete frame, tolerating arbitrary
// fragmentation (a frame may arrive one byte at a time).
type Parser struct {
	buf []byte
}

// Feed appends data to the internal buffer and returns all frames that are
// now complete. Unconsumed trailing bytes are retained for the next call.
func (p *Parser) Feed(data []byte) []Frame {
	p.buf = append(p.buf, data...)
	var frames []Frame
	for {
		f, n, ok := Decode(p.buf)
		if !ok {
			break
		}
		p.buf = p.buf[n:]
		frames = append(frames, f)
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return frames
}

// Reset discards any partial frame. The controller calls this whenever it
// leaves the Signal state so a restart never straddles an old session's
// partial frame into a new one.
func (p *Parser) Reset() {
	p.buf = nil
}

// Pending reports how many buffered bytes are waiting for the rest of a frame.
func (p *Parser) Pending() int {
	return len(p.buf)
}
