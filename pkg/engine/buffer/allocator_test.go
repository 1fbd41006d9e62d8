package buffer

import (
	"testing"

	"github.com/wavelang/engine/pkg/graph"
)

func TestAllocatorAllocateFreeRoundTrip(t *testing.T) {
	a := NewAllocator([]PoolSpec{{Primitive: graph.PrimitiveReal, BufferSize: 64, Count: 2}})

	if got := a.FreeCount(graph.PrimitiveReal); got != 2 {
		t.Fatalf("FreeCount() = %d, want 2", got)
	}

	h1 := a.Allocate(graph.PrimitiveReal)
	h2 := a.Allocate(graph.PrimitiveReal)
	if got := a.FreeCount(graph.PrimitiveReal); got != 0 {
		t.Fatalf("FreeCount() after two allocations = %d, want 0", got)
	}

	a.Free(h1)
	if got := a.FreeCount(graph.PrimitiveReal); got != 1 {
		t.Fatalf("FreeCount() after one free = %d, want 1", got)
	}
	a.Free(h2)
	if got := a.FreeCount(graph.PrimitiveReal); got != 2 {
		t.Fatalf("FreeCount() after both freed = %d, want 2", got)
	}
}

func TestAllocatorExhaustionPanics(t *testing.T) {
	a := NewAllocator([]PoolSpec{{Primitive: graph.PrimitiveReal, BufferSize: 8, Count: 1}})
	a.Allocate(graph.PrimitiveReal)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when the pool is exhausted")
		}
	}()
	a.Allocate(graph.PrimitiveReal)
}

func TestAllocatorMissingPoolPanics(t *testing.T) {
	a := NewAllocator([]PoolSpec{{Primitive: graph.PrimitiveReal, BufferSize: 8, Count: 1}})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when no pool exists for the primitive")
		}
	}()
	a.Allocate(graph.PrimitiveBool)
}

func TestBufferResetClearsConstantAndSamples(t *testing.T) {
	a := NewAllocator([]PoolSpec{{Primitive: graph.PrimitiveReal, BufferSize: 4, Count: 1}})
	h := a.Allocate(graph.PrimitiveReal)
	b := a.Get(h)
	b.Constant = true
	b.Real[0] = 5

	b.Reset(4)
	if b.Constant {
		t.Fatalf("Reset() left Constant true")
	}
	for i, v := range b.Real {
		if v != 0 {
			t.Fatalf("Reset() left Real[%d] = %v, want 0", i, v)
		}
	}
}

func TestHandleZeroValueInvalid(t *testing.T) {
	var h Handle
	if h.Valid() {
		t.Fatalf("zero Handle reported Valid()")
	}
}
