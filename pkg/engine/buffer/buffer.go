// Package buffer implements the fixed-size, SIMD-aligned audio buffer pool
// and the per-chunk buffer manager that ties buffer lifetime to the task
// graph's usage counts.
package buffer

import (
	"github.com/wavelang/engine/pkg/graph"
)

// simdAlignment is the alignment, in bytes, buffers are padded to. The spec
// only requires 128-bit (16-byte) alignment; the allocator over-allocates
// by this many bytes per buffer and hands back a sub-slice whose backing
// array address is aligned.
const simdAlignment = 16

// Buffer owns a contiguous block of samples for one primitive type, aligned
// for SIMD use. The Constant flag is set by the producing task to mean
// "only Real[0] (or Bool[0]) is meaningful; broadcast it across all
// frames" rather than physically replicating the value.
type Buffer struct {
	Primitive graph.Primitive
	Constant  bool

	Real []float32
	Bool []bool
}

// Reset clears the constant flag and zeroes the buffer. Called when a
// buffer is handed to a new producing task: a freshly allocated buffer
// never carries stale content into a new producer, so no task downstream
// can observe a previous chunk's samples through a recycled handle.
func (b *Buffer) Reset(frames int) {
	b.Constant = false
	switch b.Primitive {
	case graph.PrimitiveReal:
		for i := 0; i < frames && i < len(b.Real); i++ {
			b.Real[i] = 0
		}
	case graph.PrimitiveBool:
		for i := 0; i < frames && i < len(b.Bool); i++ {
			b.Bool[i] = false
		}
	}
}

// SampleAt returns the value at frame i, honoring the constant broadcast.
func (b *Buffer) SampleAt(i int) float32 {
	if b.Constant {
		return b.Real[0]
	}
	return b.Real[i]
}

// Handle is an index into a primitive-typed free-list pool owned by the
// Allocator. It is opaque to callers; Allocator.Get resolves it to a
// *Buffer.
type Handle struct {
	primitive graph.Primitive
	slot      int32
}

// Valid reports whether this handle refers to an allocated slot. The zero
// Handle is invalid so buffer-context tables can use it as "unset" without
// a separate boolean.
func (h Handle) Valid() bool {
	return h.slot != 0
}

func newHandle(p graph.Primitive, slot int) Handle {
	// slot+1 so the zero value of Handle is reliably "unset"; index()
	// below compensates when indexing into the backing store.
	return Handle{primitive: p, slot: int32(slot + 1)}
}

func (h Handle) index() int { return int(h.slot - 1) }
