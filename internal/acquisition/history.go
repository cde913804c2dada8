// internal/acquisition/history.go
package acquisition

import "github.com/Pinkcliff/codeTest02/internal/sensor"

// DefaultCapacity is the history retention used when none is configured.
const DefaultCapacity = 1000

// history is a fixed-capacity ring of readings. Oldest is evicted first.
// Not synchronized; the manager lock guards it.
type history struct {
	buf  []sensor.Reading
	head int // index of the oldest entry
	n    int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &history{buf: make([]sensor.Reading, capacity)}
}

func (h *history) push(r sensor.Reading) {
	if h.n < len(h.buf) {
		h.buf[(h.head+h.n)%len(h.buf)] = r
		h.n++
		return
	}
	h.buf[h.head] = r
	h.head = (h.head + 1) % len(h.buf)
}

func (h *history) len() int { return h.n }

// snapshot copies the entries in insertion order.
func (h *history) snapshot() []sensor.Reading {
	out := make([]sensor.Reading, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}
