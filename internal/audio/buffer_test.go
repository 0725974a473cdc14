package audio

import (
	"sync"
	"testing"
)

func TestSampleBufferPushDrain(t *testing.T) {
	b := NewSampleBuffer(8)
	if dropped := b.Push([]float32{1, 2, 3}); dropped != 0 {
		t.Fatalf("expected no drop, got %d", dropped)
	}
	b.Push([]float32{4, 5})
	if b.Len() != 5 {
		t.Fatalf("expected 5 buffered samples, got %d", b.Len())
	}

	got := b.Drain(nil)
	want := []float32{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after drain, got %d", b.Len())
	}
	if again := b.Drain(got); len(again) != 0 {
		t.Fatalf("expected nothing on second drain, got %v", again)
	}
}

func TestSampleBufferDropsOldest(t *testing.T) {
	b := NewSampleBuffer(4)
	b.Push([]float32{1, 2, 3})
	if dropped := b.Push([]float32{4, 5, 6}); dropped != 2 {
		t.Fatalf("expected 2 dropped samples, got %d", dropped)
	}

	got := b.Drain(nil)
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	stats := b.Stats()
	if stats.Dropped != 2 || stats.Overflows != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSampleBufferOversizedPush(t *testing.T) {
	b := NewSampleBuffer(3)
	b.Push([]float32{9})
	dropped := b.Push([]float32{1, 2, 3, 4, 5})
	if dropped != 3 {
		t.Fatalf("expected 3 dropped samples, got %d", dropped)
	}
	got := b.Drain(nil)
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Fatalf("expected newest samples [3 4 5], got %v", got)
	}
}

func TestSampleBufferReset(t *testing.T) {
	b := NewSampleBuffer(0)
	if b.Capacity() != DefaultBufferCeiling {
		t.Fatalf("expected default capacity, got %d", b.Capacity())
	}
	b.Push([]float32{1, 2})
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after reset, got %d", b.Len())
	}
	b.Push([]float32{7})
	if got := b.Drain(nil); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected [7], got %v", got)
	}
}

// One producer and one consumer running concurrently must never lose order
// or invent samples, even while the producer is overflowing the ring.
func TestSampleBufferConcurrentOrder(t *testing.T) {
	b := NewSampleBuffer(64)
	const total = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		chunk := make([]float32, 10)
		for i := 0; i < total; i += len(chunk) {
			for j := range chunk {
				chunk[j] = float32(i + j)
			}
			b.Push(chunk)
		}
	}()

	var received []float32
	var buf []float32
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		buf = b.Drain(buf)
		received = append(received, buf...)
	}

	for i := 1; i < len(received); i++ {
		if received[i] <= received[i-1] {
			t.Fatalf("samples out of order at %d: %v then %v", i, received[i-1], received[i])
		}
	}
	stats := b.Stats()
	if uint64(len(received))+stats.Dropped != total {
		t.Fatalf("received %d + dropped %d != pushed %d", len(received), stats.Dropped, total)
	}
}
