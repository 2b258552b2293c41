package audio

import "sync/atomic"

// Ring is a fixed-capacity single-producer single-consumer sample queue.
// Push and Pop never block or allocate, so Pop is safe in an audio callback.
type Ring struct {
	buf  []float32
	mask uint64
	head atomic.Uint64 // next read position, owned by the consumer
	tail atomic.Uint64 // next write position, owned by the producer
}

// NewRing returns a ring holding at least capacity samples. Capacity is
// rounded up to a power of two.
func NewRing(capacity int) *Ring {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Ring{buf: make([]float32, n), mask: uint64(n - 1)}
}

// Cap returns the ring capacity in samples.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of queued samples.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Push queues as many samples as fit and returns how many were accepted.
// The excess is dropped.
func (r *Ring) Push(samples []float32) int {
	tail := r.tail.Load()
	free := uint64(len(r.buf)) - (tail - r.head.Load())
	n := min(uint64(len(samples)), free)
	for i := uint64(0); i < n; i++ {
		r.buf[(tail+i)&r.mask] = samples[i]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// Pop fills out with queued samples and returns how many were copied. The
// remainder of out is left untouched.
func (r *Ring) Pop(out []float32) int {
	head := r.head.Load()
	avail := r.tail.Load() - head
	n := min(uint64(len(out)), avail)
	for i := uint64(0); i < n; i++ {
		out[i] = r.buf[(head+i)&r.mask]
	}
	r.head.Store(head + n)
	return int(n)
}
