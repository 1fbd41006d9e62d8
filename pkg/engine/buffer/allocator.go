package buffer

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/wavelang/engine/pkg/graph"
)

// PoolSpec describes one primitive-typed free list to preallocate.
type PoolSpec struct {
	Primitive  graph.Primitive
	BufferSize int // max frames per buffer
	Count      int // number of buffers in this pool
}

// pool is a lock-free, fixed-capacity free list for one primitive type. It
// is backed by a single contiguous slice of Buffer values allocated once at
// Initialize; free-list membership is tracked with a Treiber-stack style
// singly linked list threaded through an index array, mutated with CAS —
// the same compare-and-swap retry shape the thread pool's ring queue uses
// for its cursors.
type pool struct {
	storage []Buffer
	next    []int32 // next[i] = index of the next free slot after i, or -1
	head    atomic.Int32
	free    atomic.Int32 // count of slots currently in the free list
}

const noNext = int32(-1)

func newPool(spec PoolSpec) *pool {
	p := &pool{
		storage: make([]Buffer, spec.Count),
		next:    make([]int32, spec.Count),
	}
	for i := range p.storage {
		switch spec.Primitive {
		case graph.PrimitiveReal:
			// Over-allocate by simdAlignment bytes and start the buffer at
			// the first element whose address is simdAlignment-aligned.
			raw := make([]float32, spec.BufferSize+simdAlignment/4)
			off := 0
			for off < len(raw)-spec.BufferSize-1 && uintptr(unsafe.Pointer(&raw[off]))%simdAlignment != 0 {
				off++
			}
			p.storage[i] = Buffer{Primitive: graph.PrimitiveReal, Real: raw[off : off+spec.BufferSize : off+spec.BufferSize]}
		case graph.PrimitiveBool:
			p.storage[i] = Buffer{Primitive: graph.PrimitiveBool, Bool: make([]bool, spec.BufferSize)}
		default:
			p.storage[i] = Buffer{Primitive: spec.Primitive}
		}
		if i == spec.Count-1 {
			p.next[i] = noNext
		} else {
			p.next[i] = int32(i + 1)
		}
	}
	if spec.Count == 0 {
		p.head.Store(noNext)
	} else {
		p.head.Store(0)
	}
	p.free.Store(int32(spec.Count))
	return p
}

// allocate pops a slot off the free list in O(1) without blocking; an empty
// pool is a sizing bug, not a wait condition.
func (p *pool) allocate() int {
	for {
		head := p.head.Load()
		if head == noNext {
			panic("buffer allocator: pool exhausted")
		}
		newHead := p.next[head]
		if p.head.CompareAndSwap(head, newHead) {
			p.free.Add(-1)
			return int(head)
		}
	}
}

// release pushes a slot back onto the free list.
func (p *pool) release(slot int) {
	for {
		head := p.head.Load()
		p.next[slot] = head
		if p.head.CompareAndSwap(head, int32(slot)) {
			p.free.Add(1)
			return
		}
	}
}

func (p *pool) freeCount() int {
	return int(p.free.Load())
}

func (p *pool) capacity() int {
	return len(p.storage)
}

// Allocator is the process-wide, fixed-size buffer pool: one free list per
// primitive type, sized from the graph's max-concurrency figures at
// Initialize and never resized.
type Allocator struct {
	pools map[graph.Primitive]*pool
}

// NewAllocator builds the backing pools. specs must be an upper bound on
// simultaneous live buffers per primitive, computed by the buffer manager
// from graph metadata.
func NewAllocator(specs []PoolSpec) *Allocator {
	a := &Allocator{pools: make(map[graph.Primitive]*pool, len(specs))}
	for _, s := range specs {
		a.pools[s.Primitive] = newPool(s)
	}
	return a
}

// Allocate pops a free buffer of the given primitive. Panics if the pool is
// exhausted; this is a programmer-error invariant (the pool was proven by
// construction to be an upper bound, so exhaustion means the graph's
// concurrency metadata or the allocator's sizing was wrong).
func (a *Allocator) Allocate(p graph.Primitive) Handle {
	pl, ok := a.pools[p]
	if !ok || pl.capacity() == 0 {
		panic(fmt.Sprintf("buffer allocator: no pool for primitive %s", p))
	}
	slot := pl.allocate()
	return newHandle(p, slot)
}

// Free returns a handle's buffer to its pool.
func (a *Allocator) Free(h Handle) {
	if !h.Valid() {
		panic("buffer allocator: free of invalid handle")
	}
	pl := a.pools[h.primitive]
	pl.release(h.index())
}

// Get resolves a handle to its backing buffer.
func (a *Allocator) Get(h Handle) *Buffer {
	pl := a.pools[h.primitive]
	return &pl.storage[h.index()]
}

// FreeCount reports the number of buffers currently available for a
// primitive, used by property tests to assert every buffer handle is
// returned by the end of a chunk.
func (a *Allocator) FreeCount(p graph.Primitive) int {
	pl, ok := a.pools[p]
	if !ok {
		return 0
	}
	return pl.freeCount()
}

// Capacity reports the total pool size for a primitive.
func (a *Allocator) Capacity(p graph.Primitive) int {
	pl, ok := a.pools[p]
	if !ok {
		return 0
	}
	return pl.capacity()
}
