package audio

import (
	"errors"
	"math"
	"sync/atomic"
)

// ErrBufferOverflow reports that the sample buffer ceiling was exceeded and
// the oldest samples were dropped. It is never fatal.
var ErrBufferOverflow = errors.New("audio: sample buffer overflow")

// DefaultBufferCeiling holds 30 seconds of 16 kHz audio.
const DefaultBufferCeiling = 30 * 16000

// SampleBuffer is a single-producer single-consumer ring of float32 samples
// between a real-time audio callback and a decode loop.
//
// Neither side ever takes a lock. Push is called only by the producer and
// Drain/Reset only by the consumer. When the ceiling is exceeded the producer
// drops the oldest samples by advancing the read position with a CAS; a
// consumer that raced with such a drop notices the failed CAS and re-reads.
type SampleBuffer struct {
	ring []atomic.Uint32 // float32 bits
	size uint64

	head atomic.Uint64 // total samples written
	tail atomic.Uint64 // total samples consumed or dropped

	dropped   atomic.Uint64
	overflows atomic.Uint64
}

// BufferStats is a snapshot of the overflow counters.
type BufferStats struct {
	Capacity  int
	Buffered  int
	Dropped   uint64 // samples discarded because the ceiling was reached
	Overflows uint64 // Push calls that had to drop samples
}

// NewSampleBuffer creates a buffer holding at most ceiling samples.
// A non-positive ceiling selects DefaultBufferCeiling.
func NewSampleBuffer(ceiling int) *SampleBuffer {
	if ceiling <= 0 {
		ceiling = DefaultBufferCeiling
	}
	return &SampleBuffer{
		ring: make([]atomic.Uint32, ceiling),
		size: uint64(ceiling),
	}
}

// Push appends samples. It never blocks and never allocates.
// It returns the number of samples dropped to stay under the ceiling.
func (b *SampleBuffer) Push(samples []float32) int {
	if len(samples) == 0 {
		return 0
	}

	dropped := 0
	if uint64(len(samples)) > b.size {
		cut := len(samples) - int(b.size)
		dropped += cut
		samples = samples[cut:]
	}
	n := uint64(len(samples))
	h := b.head.Load()

	// Make room by moving tail forward. Only the consumer competes for tail,
	// and it only ever moves it forward too, so this settles in a few tries.
	for {
		t := b.tail.Load()
		if h+n-t <= b.size {
			break
		}
		newTail := h + n - b.size
		if b.tail.CompareAndSwap(t, newTail) {
			dropped += int(newTail - t)
			break
		}
	}

	for i, s := range samples {
		b.ring[(h+uint64(i))%b.size].Store(math.Float32bits(s))
	}
	b.head.Store(h + n)

	if dropped > 0 {
		b.dropped.Add(uint64(dropped))
		b.overflows.Add(1)
	}
	return dropped
}

// Drain removes and returns every buffered sample in arrival order.
// The result is appended to dst[:0], so the consumer can hand back the
// slice returned by the previous call to avoid allocating.
func (b *SampleBuffer) Drain(dst []float32) []float32 {
	for {
		dst = dst[:0]
		t := b.tail.Load()
		h := b.head.Load()
		for i := t; i < h; i++ {
			dst = append(dst, math.Float32frombits(b.ring[i%b.size].Load()))
		}
		if b.tail.CompareAndSwap(t, h) {
			return dst
		}
		// The producer dropped samples under us; what we copied may be stale.
	}
}

// Len returns the number of buffered samples
func (b *SampleBuffer) Len() int {
	t := b.tail.Load()
	return int(b.head.Load() - t)
}

// Reset discards all buffered samples. Counters are kept.
func (b *SampleBuffer) Reset() {
	for {
		t := b.tail.Load()
		if b.tail.CompareAndSwap(t, b.head.Load()) {
			return
		}
	}
}

// Capacity returns the ceiling in samples
func (b *SampleBuffer) Capacity() int {
	return int(b.size)
}

// Stats returns the current overflow counters.
func (b *SampleBuffer) Stats() BufferStats {
	return BufferStats{
		Capacity:  int(b.size),
		Buffered:  b.Len(),
		Dropped:   b.dropped.Load(),
		Overflows: b.overflows.Load(),
	}
}
