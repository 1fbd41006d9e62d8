package graph

// StaticGraph is a flattened, precomputed implementation of Graph suitable
// for graphs built programmatically (tests, embedders) or deserialized from
// the front-end compiler's on-disk format. All of the derived concurrency
// figures are computed once at Build time so the hot path never recomputes
// them.
type StaticGraph struct {
	tasks   []Task
	buffers []bufferMeta
	outputs []OutputSpec

	initialTasks    []int
	maxTaskConc     int
	maxBufferConc   map[Primitive]int
	remainActiveIdx int
}

type bufferMeta struct {
	primitive Primitive
	usages    int
}

// GraphBuilder assembles a StaticGraph incrementally. It mirrors how a
// front-end compiler would emit a graph: declare buffers, declare tasks with
// their wiring, declare outputs, then Build.
type GraphBuilder struct {
	tasks           []Task
	buffers         []bufferMeta
	outputs         []OutputSpec
	remainActiveIdx int
}

// NewGraphBuilder returns an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{remainActiveIdx: -1}
}

// DeclareBuffer registers a new buffer of the given primitive and returns
// its index. Usage count accumulates automatically as AddTask/AddOutput
// reference the buffer; it does not need to be supplied up front.
func (b *GraphBuilder) DeclareBuffer(p Primitive) int {
	b.buffers = append(b.buffers, bufferMeta{primitive: p})
	return len(b.buffers) - 1
}

// AddTask appends a task. predecessorCount and successors must be
// consistent with the DAG the caller intends; StaticGraph does not
// re-derive edges from arguments.
func (b *GraphBuilder) AddTask(functionIndex int, args []Argument, predecessorCount int32, successors []int) int {
	b.countArgumentUsages(args)
	b.tasks = append(b.tasks, Task{
		FunctionIndex:    functionIndex,
		Arguments:        args,
		PredecessorCount: predecessorCount,
		Successors:       successors,
	})
	return len(b.tasks) - 1
}

func (b *GraphBuilder) countArgumentUsages(args []Argument) {
	for _, a := range args {
		if a.Kind.IsArray() {
			for _, e := range a.Elements {
				if e.IsBuffer {
					b.buffers[e.BufferIndex].usages++
				}
			}
			continue
		}
		if a.Scalar.IsBuffer {
			b.buffers[a.Scalar.BufferIndex].usages++
		}
	}
}

// AddOutput appends a constant output.
func (b *GraphBuilder) AddOutput(value float32) int {
	b.outputs = append(b.outputs, OutputSpec{IsConstant: true, ConstantValue: value})
	return len(b.outputs) - 1
}

// AddBufferOutput appends an output backed by a graph buffer.
func (b *GraphBuilder) AddBufferOutput(bufferIndex int) int {
	b.buffers[bufferIndex].usages++
	idx := len(b.outputs)
	b.outputs = append(b.outputs, OutputSpec{BufferIndex: bufferIndex})
	for i := range b.outputs {
		if i == idx {
			continue
		}
		if !b.outputs[i].IsConstant && b.outputs[i].BufferIndex == bufferIndex {
			b.outputs[i].SharesBufferWithOutput = true
			b.outputs[idx].SharesBufferWithOutput = true
		}
	}
	return idx
}

// SetRemainActiveOutput designates which output index is the distinguished
// remain-active boolean. Pass -1 (the default) to mean "always active".
func (b *GraphBuilder) SetRemainActiveOutput(outputIndex int) {
	b.remainActiveIdx = outputIndex
}

// SetBufferPrimitive is only needed when a buffer is declared but never
// referenced by a task argument (so its primitive would otherwise be
// inferred solely from DeclareBuffer, which already records it — kept for
// symmetry with compilers that declare type separately from allocation).
func (b *GraphBuilder) SetBufferPrimitive(i int, p Primitive) {
	b.buffers[i].primitive = p
}

// Build finalizes the graph, computing initial-task and concurrency figures.
func (b *GraphBuilder) Build() *StaticGraph {
	g := &StaticGraph{
		tasks:           b.tasks,
		buffers:         b.buffers,
		outputs:         b.outputs,
		maxBufferConc:   make(map[Primitive]int),
		remainActiveIdx: b.remainActiveIdx,
	}

	for i, t := range g.tasks {
		if t.PredecessorCount == 0 {
			g.initialTasks = append(g.initialTasks, i)
		}
	}

	g.maxTaskConc = estimateMaxTaskConcurrency(g.tasks)
	g.maxBufferConc = estimateMaxBufferConcurrency(g.tasks, g.buffers)

	return g
}

// estimateMaxTaskConcurrency computes an upper bound on tasks in flight at
// once by simulating topological layers: a task becomes ready only once all
// its predecessors have retired, so the width of each layer bounds
// concurrency within that layer, and the overall bound is the widest layer.
func estimateMaxTaskConcurrency(tasks []Task) int {
	remaining := make([]int32, len(tasks))
	for i, t := range tasks {
		remaining[i] = t.PredecessorCount
	}

	var ready []int
	for i, t := range tasks {
		if t.PredecessorCount == 0 {
			ready = append(ready, i)
		}
	}

	maxWidth := len(ready)
	for len(ready) > 0 {
		var next []int
		for _, idx := range ready {
			for _, succ := range tasks[idx].Successors {
				remaining[succ]--
				if remaining[succ] == 0 {
					next = append(next, succ)
				}
			}
		}
		if len(next) > maxWidth {
			maxWidth = len(next)
		}
		ready = next
	}
	if maxWidth == 0 {
		maxWidth = 1
	}
	return maxWidth
}

// estimateMaxBufferConcurrency sizes, per primitive, the largest number of
// buffers of that type that can be simultaneously live. It conservatively
// counts one buffer per distinct graph buffer index of that primitive,
// which is always a valid (if not maximally tight) upper bound; a
// compiler-side optimizer is expected to produce tighter figures by
// reusing indices whose live ranges don't overlap.
func estimateMaxBufferConcurrency(tasks []Task, buffers []bufferMeta) map[Primitive]int {
	counts := make(map[Primitive]int)
	for _, b := range buffers {
		counts[b.primitive]++
	}
	if len(buffers) == 0 {
		counts[PrimitiveReal] = 1
	}
	return counts
}

func (g *StaticGraph) TaskCount() int   { return len(g.tasks) }
func (g *StaticGraph) BufferCount() int { return len(g.buffers) }

func (g *StaticGraph) MaxTaskConcurrency() int { return g.maxTaskConc }

func (g *StaticGraph) MaxBufferConcurrency(p Primitive) int {
	return g.maxBufferConc[p]
}

func (g *StaticGraph) OutputCount() int      { return len(g.outputs) }
func (g *StaticGraph) Outputs() []OutputSpec { return g.outputs }

func (g *StaticGraph) BufferUsages(i int) int          { return g.buffers[i].usages }
func (g *StaticGraph) BufferPrimitive(i int) Primitive { return g.buffers[i].primitive }

func (g *StaticGraph) TaskPredecessorCount(i int) int32 { return g.tasks[i].PredecessorCount }
func (g *StaticGraph) TaskSuccessors(i int) []int       { return g.tasks[i].Successors }
func (g *StaticGraph) TaskFunctionIndex(i int) int      { return g.tasks[i].FunctionIndex }
func (g *StaticGraph) TaskArguments(i int) []Argument   { return g.tasks[i].Arguments }

func (g *StaticGraph) InitialTasks() []int { return g.initialTasks }

func (g *StaticGraph) RemainActiveOutputIndex() int { return g.remainActiveIdx }
