// SPDX-License-Identifier: MIT
package stft

// Ring is a fixed-capacity circular buffer of samples with independent write
// and read cursors. Both cursors wrap modulo the capacity.
//
// Ring is not safe for concurrent use. The engine owns exactly one writer and
// one reader per ring and sequences them on the audio thread, so no locking
// is needed.
type Ring struct {
	data  []float32
	write int // next slot to fill
	read  int // next slot to drain
}

// NewRing allocates a zero-filled ring. Capacity must be positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("stft: ring capacity must be positive")
	}
	return &Ring{data: make([]float32, capacity)}
}

// Reset zero-fills the backing store and places the cursors.
func (r *Ring) Reset(writeAt, readAt int) {
	clear(r.data)
	r.write = r.wrap(writeAt)
	r.read = r.wrap(readAt)
}

// Write stores x at the write index and advances it by one.
func (r *Ring) Write(x float32) {
	r.data[r.write] = x
	r.write++
	if r.write == len(r.data) {
		r.write = 0
	}
}

// Read loads the sample at the read index and advances it by one.
func (r *Ring) Read() float32 {
	x := r.data[r.read]
	r.read++
	if r.read == len(r.data) {
		r.read = 0
	}
	return x
}

// ReadClear is Read followed by zeroing the drained slot, leaving it ready
// for the next round of overlap-add accumulation.
func (r *Ring) ReadClear() float32 {
	x := r.data[r.read]
	r.data[r.read] = 0
	r.read++
	if r.read == len(r.data) {
		r.read = 0
	}
	return x
}

// Peek copies len(dst) samples starting at the read index into dst without
// moving the read index. len(dst) must not exceed the capacity.
func (r *Ring) Peek(dst []float32) {
	n := copy(dst, r.data[r.read:])
	if n < len(dst) {
		copy(dst[n:], r.data)
	}
}

// Skip advances the read index by n samples.
func (r *Ring) Skip(n int) {
	r.read = r.wrap(r.read + n)
}

// Accumulate adds src[i]*gain[i] into the slot write+i for every i, without
// moving the write index. len(gain) must be at least len(src).
func (r *Ring) Accumulate(src, gain []float64) {
	head := r.data[r.write:]
	if len(head) > len(src) {
		head = head[:len(src)]
	}
	for i := range head {
		head[i] += float32(src[i] * gain[i])
	}
	for i := len(head); i < len(src); i++ {
		r.data[i-len(head)] += float32(src[i] * gain[i])
	}
}

// Advance moves the write index forward by n samples.
func (r *Ring) Advance(n int) {
	r.write = r.wrap(r.write + n)
}

// Len returns the unread span, the forward distance from read to write.
func (r *Ring) Len() int {
	n := r.write - r.read
	if n < 0 {
		n += len(r.data)
	}
	return n
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.data) }

// WriteIndex returns the next slot to be filled.
func (r *Ring) WriteIndex() int { return r.write }

// ReadIndex returns the next slot to be drained.
func (r *Ring) ReadIndex() int { return r.read }

func (r *Ring) wrap(i int) int {
	i %= len(r.data)
	if i < 0 {
		i += len(r.data)
	}
	return i
}
