// SPDX-License-Identifier: MIT
package meter

// Sample is a single signed reading from the analog input.
type Sample int16

// Ring is a fixed-capacity circular store of the most recent samples.
// It is zero-seeded, so it always holds exactly Cap() entries; the first
// Cap() writes after construction replace the seed rather than grow it.
type Ring struct {
	buf   []Sample
	index int
}

// BufferSize returns the number of samples needed to cover windowMs at rateHz.
func BufferSize(windowMs, rateHz int) int {
	return (windowMs * rateHz) / 1000
}

// NewRing allocates a ring of the given capacity. Capacity must be positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("meter: ring capacity must be positive")
	}
	return &Ring{buf: make([]Sample, capacity)}
}

// Write stores s at the current position and advances it, wrapping at Cap().
func (r *Ring) Write(s Sample) {
	r.buf[r.index] = s
	r.index = (r.index + 1) % len(r.buf)
}

// Samples exposes the backing storage in position order. Callers must not
// modify or retain it across writes.
func (r *Ring) Samples() []Sample {
	return r.buf
}

// Snapshot returns a copy of the contents ordered oldest to newest.
func (r *Ring) Snapshot() []Sample {
	out := make([]Sample, 0, len(r.buf))
	out = append(out, r.buf[r.index:]...)
	return append(out, r.buf[:r.index]...)
}

// Index is the position the next Write will fill.
func (r *Ring) Index() int {
	return r.index
}

func (r *Ring) Cap() int {
	return len(r.buf)
}
