package audio

import "sync"

// history keeps the most recent mono samples for analysis. The capture callback writes
// to it while the frame loop reads from it.
type history struct {
	mu      sync.Mutex
	samples []float64
	filled  int
}

func newHistory(size int) *history {
	return &history{samples: make([]float64, size)}
}

// push appends mono samples, discarding the oldest ones.
func (h *history) push(mono []float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := len(h.samples)
	if len(mono) >= size {
		copy(h.samples, mono[len(mono)-size:])
		h.filled = size
		return
	}
	copy(h.samples, h.samples[len(mono):])
	copy(h.samples[size-len(mono):], mono)
	h.filled = min(size, h.filled+len(mono))
}

// snapshot copies the buffered samples, oldest first, into dst.
func (h *history) snapshot(dst []float64) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append(dst[:0], h.samples[len(h.samples)-h.filled:]...)
}
