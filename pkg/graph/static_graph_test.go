package graph

import "testing"

func realIn(bufIdx int) Argument {
	return Argument{Kind: ArgRealIn, Scalar: ElementRef{IsBuffer: true, BufferIndex: bufIdx}}
}

func realOut(bufIdx int) Argument {
	return Argument{Kind: ArgRealOut, Scalar: ElementRef{IsBuffer: true, BufferIndex: bufIdx}}
}

func TestBuilderCountsBufferUsages(t *testing.T) {
	b := NewGraphBuilder()
	buf := b.DeclareBuffer(PrimitiveReal)

	// One producer, two consumers, plus the graph output's own reference.
	b.AddTask(0, []Argument{realOut(buf)}, 0, []int{1, 2})
	b.AddTask(0, []Argument{realIn(buf)}, 1, nil)
	b.AddTask(0, []Argument{realIn(buf)}, 1, nil)
	b.AddBufferOutput(buf)

	g := b.Build()
	if got := g.BufferUsages(buf); got != 4 {
		t.Fatalf("BufferUsages = %d, want 4 (out + 2 in + output)", got)
	}
}

func TestBuilderCountsArrayElementUsages(t *testing.T) {
	b := NewGraphBuilder()
	buf := b.DeclareBuffer(PrimitiveReal)
	b.AddTask(0, []Argument{{
		Kind: ArgRealArrayIn,
		Elements: []ElementRef{
			{IsBuffer: true, BufferIndex: buf},
			{ConstReal: 1},
			{IsBuffer: true, BufferIndex: buf},
		},
	}}, 0, nil)

	g := b.Build()
	if got := g.BufferUsages(buf); got != 2 {
		t.Fatalf("BufferUsages = %d, want 2 (constant elements don't count)", got)
	}
}

func TestBuildCollectsInitialTasks(t *testing.T) {
	b := NewGraphBuilder()
	b.AddTask(0, nil, 0, []int{2})
	b.AddTask(0, nil, 0, []int{2})
	b.AddTask(0, nil, 2, nil)

	g := b.Build()
	initial := g.InitialTasks()
	if len(initial) != 2 || initial[0] != 0 || initial[1] != 1 {
		t.Fatalf("InitialTasks = %v, want [0 1]", initial)
	}
}

func TestMaxTaskConcurrencyIsWidestLayer(t *testing.T) {
	// Diamond: one root fans out to three middle tasks that all join into a
	// single sink. The widest layer is the middle one.
	b := NewGraphBuilder()
	b.AddTask(0, nil, 0, []int{1, 2, 3})
	b.AddTask(0, nil, 1, []int{4})
	b.AddTask(0, nil, 1, []int{4})
	b.AddTask(0, nil, 1, []int{4})
	b.AddTask(0, nil, 3, nil)

	g := b.Build()
	if got := g.MaxTaskConcurrency(); got != 3 {
		t.Fatalf("MaxTaskConcurrency = %d, want 3", got)
	}
}

func TestMaxTaskConcurrencyDegenerateGraph(t *testing.T) {
	g := NewGraphBuilder().Build()
	if got := g.MaxTaskConcurrency(); got != 1 {
		t.Fatalf("MaxTaskConcurrency = %d for an empty graph, want 1", got)
	}
}

func TestMaxBufferConcurrencyCountsPerPrimitive(t *testing.T) {
	b := NewGraphBuilder()
	b.DeclareBuffer(PrimitiveReal)
	b.DeclareBuffer(PrimitiveReal)
	b.DeclareBuffer(PrimitiveBool)

	g := b.Build()
	if got := g.MaxBufferConcurrency(PrimitiveReal); got != 2 {
		t.Fatalf("MaxBufferConcurrency(real) = %d, want 2", got)
	}
	if got := g.MaxBufferConcurrency(PrimitiveBool); got != 1 {
		t.Fatalf("MaxBufferConcurrency(bool) = %d, want 1", got)
	}
}

func TestAddBufferOutputMarksSharedOutputs(t *testing.T) {
	b := NewGraphBuilder()
	buf := b.DeclareBuffer(PrimitiveReal)
	other := b.DeclareBuffer(PrimitiveReal)
	b.AddBufferOutput(buf)
	b.AddBufferOutput(other)
	b.AddBufferOutput(buf)

	g := b.Build()
	outs := g.Outputs()
	if !outs[0].SharesBufferWithOutput || !outs[2].SharesBufferWithOutput {
		t.Fatalf("outputs 0 and 2 alias the same buffer but aren't marked shared: %+v", outs)
	}
	if outs[1].SharesBufferWithOutput {
		t.Fatalf("output 1 has a private buffer but is marked shared")
	}
}

func TestRemainActiveOutputDefaultsToAlwaysActive(t *testing.T) {
	g := NewGraphBuilder().Build()
	if got := g.RemainActiveOutputIndex(); got != -1 {
		t.Fatalf("RemainActiveOutputIndex = %d, want -1 (always active)", got)
	}
}

func TestLibraryRegisterAndLookup(t *testing.T) {
	lib := NewLibrary()
	idx := lib.Register(TaskFunction{Name: "first", Function: func(TaskContext) {}})
	idx2 := lib.Register(TaskFunction{Name: "second", Function: func(TaskContext) {}})

	if idx != 0 || idx2 != 1 {
		t.Fatalf("Register indices = %d, %d, want 0, 1", idx, idx2)
	}
	if got := lib.Lookup(idx2).Name; got != "second" {
		t.Fatalf("Lookup(%d).Name = %q, want %q", idx2, got, "second")
	}
	if got := lib.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
}
