package async

import (
	"sync"
)

// --------------------------------------------------------------------------
// Buffer Segment
// --------------------------------------------------------------------------

// BufferSegment describes one slot of the shared arena. A segment is used
// exclusively by one in-flight command at a time. Its size never shrinks;
// when a command demands more than the current slot size the whole arena
// is replaced and every segment re-acquired lazily.
type BufferSegment struct {
	Offset int
	Size   int

	generation uint64
}

// --------------------------------------------------------------------------
// Buffer Pool
// --------------------------------------------------------------------------

// BufferPool owns a contiguous byte arena sliced into fixed-size
// per-command buffers. All mutations of arena and cursor happen under one
// lock; issuance is O(1) amortized.
type BufferPool struct {
	mu sync.Mutex

	arena       []byte
	slotSize    int
	maxCommands int
	cursor      int
	generation  uint64
}

// NewBufferPool creates an arena with maxCommands slots of initialSize
// bytes each.
func NewBufferPool(maxCommands, initialSize int) *BufferPool {
	if maxCommands <= 0 {
		maxCommands = 1
	}
	if initialSize <= 0 {
		initialSize = 1024
	}
	return &BufferPool{
		arena:       make([]byte, maxCommands*initialSize),
		slotSize:    initialSize,
		maxCommands: maxCommands,
	}
}

// GetNextBuffer assigns seg a region of at least requiredSize bytes from
// the shared arena and returns the backing slice. When requiredSize
// exceeds the current slot size, or the cursor would run past the arena, a
// new arena is allocated and the assignment retried against it. Segments
// issued from an older arena keep their old backing memory alive until
// their owners re-acquire; HasBufferChanged tells them to.
func (p *BufferPool) GetNextBuffer(requiredSize int, seg *BufferSegment) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if requiredSize > p.slotSize {
		p.replaceArena(requiredSize)
		metricBufferRegrows.Inc()
	}
	if p.cursor+p.slotSize > len(p.arena) {
		p.replaceArena(p.slotSize)
	}

	seg.Offset = p.cursor
	seg.Size = p.slotSize
	seg.generation = p.generation
	p.cursor += p.slotSize

	return p.arena[seg.Offset : seg.Offset+seg.Size]
}

// HasBufferChanged reports whether the arena was swapped since the segment
// was issued, meaning the segment's sizing assumption is stale and its
// owner must re-acquire.
func (p *BufferPool) HasBufferChanged(seg BufferSegment) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return seg.generation != p.generation
}

// SlotSize returns the current per-command buffer size.
func (p *BufferPool) SlotSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slotSize
}

// replaceArena swaps in a fresh arena sized for the larger of the
// requested and the current slot size. Callers hold p.mu.
func (p *BufferPool) replaceArena(requiredSize int) {
	if requiredSize < p.slotSize {
		requiredSize = p.slotSize
	}
	p.slotSize = requiredSize
	p.arena = make([]byte, p.slotSize*p.maxCommands)
	p.cursor = 0
	p.generation++
}
