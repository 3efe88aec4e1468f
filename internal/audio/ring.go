package audio

// ring is a fixed size sample history. It is not safe for concurrent use; the
// owner guards it.
type ring struct {
	buffer []float32
	index  int
}

func newRing(size int) *ring {
	return &ring{buffer: make([]float32, size)}
}

func (r *ring) write(in []float32) {
	if len(in) == 0 {
		return
	}

	if len(in) >= len(r.buffer) {
		copy(r.buffer, in[len(in)-len(r.buffer):])
		r.index = 0
		return
	}

	if r.index+len(in) <= len(r.buffer) {
		copy(r.buffer[r.index:], in)
		r.index += len(in)
		if r.index == len(r.buffer) {
			r.index = 0
		}
		return
	}

	remaining := len(r.buffer) - r.index
	copy(r.buffer[r.index:], in[:remaining])
	copy(r.buffer, in[remaining:])
	r.index = len(in) - remaining
}

// snapshot returns the history in chronological order.
func (r *ring) snapshot() []float32 {
	cp := make([]float32, len(r.buffer))
	if r.index == 0 {
		copy(cp, r.buffer)
		return cp
	}
	copy(cp, r.buffer[r.index:])
	copy(cp[len(r.buffer)-r.index:], r.buffer[:r.index])
	return cp
}
