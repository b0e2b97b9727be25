package async

import (
	"sync"
	"testing"
)

// TestBufferSegmentReuse verifies that sequential commands on one segment
// keep their slot size and never trigger an arena swap.
func TestBufferSegmentReuse(t *testing.T) {
	p := NewBufferPool(4, 1024)

	var seg BufferSegment
	buf := p.GetNextBuffer(512, &seg)
	if len(buf) != 1024 {
		t.Fatalf("Expected full slot of 1024 bytes, got %d", len(buf))
	}
	if p.HasBufferChanged(seg) {
		t.Errorf("Segment should not be stale right after issuance")
	}

	// a second acquisition within slot size must not swap the arena
	p.GetNextBuffer(1024, &seg)
	if p.HasBufferChanged(seg) {
		t.Errorf("Acquisition within slot size must not swap the arena")
	}
}

// TestBufferGrow verifies that a demand above the slot size grows the
// arena and invalidates previously issued segments.
func TestBufferGrow(t *testing.T) {
	p := NewBufferPool(4, 1024)

	var old BufferSegment
	p.GetNextBuffer(512, &old)

	var big BufferSegment
	buf := p.GetNextBuffer(4096, &big)
	if len(buf) < 4096 {
		t.Fatalf("Expected at least 4096 bytes after grow, got %d", len(buf))
	}
	if p.SlotSize() != 4096 {
		t.Errorf("Expected slot size 4096 after grow, got %d", p.SlotSize())
	}

	if !p.HasBufferChanged(old) {
		t.Errorf("Segment issued before the swap must be reported stale")
	}
	if p.HasBufferChanged(big) {
		t.Errorf("Segment issued from the new arena must not be stale")
	}
}

// TestBufferCursorWraparound verifies that running past the arena's end
// allocates a fresh arena instead of overlapping slots.
func TestBufferCursorWraparound(t *testing.T) {
	p := NewBufferPool(2, 1024)

	var a, b, c BufferSegment
	p.GetNextBuffer(100, &a)
	p.GetNextBuffer(100, &b)
	if a.Offset == b.Offset {
		t.Fatalf("Two live segments share offset %d", a.Offset)
	}

	// third issuance exceeds the 2-slot arena
	p.GetNextBuffer(100, &c)
	if !p.HasBufferChanged(a) || !p.HasBufferChanged(b) {
		t.Errorf("Segments of the replaced arena must be reported stale")
	}
}

// TestBufferPoolConcurrentIssue hammers the pool from many goroutines and
// checks that every returned slice matches its segment's size.
func TestBufferPoolConcurrentIssue(t *testing.T) {
	p := NewBufferPool(16, 512)

	const goroutines = 8
	const iterations = 1000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var seg BufferSegment
			for i := 0; i < iterations; i++ {
				size := 64 + (id*iterations+i)%600 // occasionally above slot size
				buf := p.GetNextBuffer(size, &seg)
				if len(buf) < size {
					t.Errorf("Got %d bytes for a %d byte demand", len(buf), size)
					return
				}
				if len(buf) != seg.Size {
					t.Errorf("Slice length %d does not match segment size %d", len(buf), seg.Size)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}
