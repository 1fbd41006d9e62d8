package buffer

import (
	"sync/atomic"

	"github.com/wavelang/engine/pkg/engine/mixer"
	"github.com/wavelang/engine/pkg/engine/stage"
	"github.com/wavelang/engine/pkg/graph"
)

// graphContext is the persistent per-buffer-index state for one stage:
// which handle (if any) currently backs graph buffer i, and how many more
// argument-occurrences must consume it before it is reclaimed. It is reset
// at the start of every voice/FX run from the graph's static usage counts.
type graphContext struct {
	handles  []Handle
	hasValue []bool // handles[i] is meaningful iff hasValue[i]
	usages   []atomic.Int32
}

func newGraphContext(bufferCount int) *graphContext {
	return &graphContext{
		handles:  make([]Handle, bufferCount),
		hasValue: make([]bool, bufferCount),
		usages:   make([]atomic.Int32, bufferCount),
	}
}

func (gc *graphContext) reset(g graph.Graph) {
	for i := 0; i < len(gc.handles); i++ {
		gc.hasValue[i] = false
		gc.usages[i].Store(int32(g.BufferUsages(i)))
	}
}

// Manager owns a buffer Allocator plus the per-(stage, graph-buffer-index)
// contexts, and carries the chunk-time buffer lifetimes, voice accumulation
// and channel mixing the executor drives.
type Manager struct {
	alloc *Allocator

	voiceCtx *graphContext
	fxCtx    *graphContext

	frames int

	// audio output indices per stage: every graph output except the
	// distinguished remain-active one, which never carries signal
	voiceAudio []int
	fxAudio    []int

	// voice accumulation: one slot per voice-graph audio output
	voiceAccum   []Handle
	voiceAccumHV []bool
	voicesRun    int

	// fx output storage: one slot per fx-graph audio output
	fxOutput   []Handle
	fxOutputHV []bool
	fxRan      bool

	// channel-mix scratch, reused across stages
	channelBufs   []Handle
	channelBufsHV []bool

	// mixer scratch, sized once at construction so the per-chunk mix and
	// interleave paths never allocate
	mixInputs   []mixer.Source
	chanSources []mixer.Source
	mixOuts     [][]float32
	mixHandles  []Handle

	outputChannelCount int
}

// NewManager builds the buffer manager's allocator from the supplied pool
// specs (computed by ComputePoolSpecs) and preallocates per-stage contexts
// sized from the graphs' buffer counts.
func NewManager(specs []PoolSpec, voiceGraph, fxGraph graph.Graph, outputChannelCount int) *Manager {
	m := &Manager{
		alloc:              NewAllocator(specs),
		outputChannelCount: outputChannelCount,
	}
	if voiceGraph != nil {
		m.voiceCtx = newGraphContext(voiceGraph.BufferCount())
		m.voiceAudio = audioOutputIndices(voiceGraph)
		m.voiceAccum = make([]Handle, len(m.voiceAudio))
		m.voiceAccumHV = make([]bool, len(m.voiceAudio))
	}
	if fxGraph != nil {
		m.fxCtx = newGraphContext(fxGraph.BufferCount())
		m.fxAudio = audioOutputIndices(fxGraph)
		m.fxOutput = make([]Handle, len(m.fxAudio))
		m.fxOutputHV = make([]bool, len(m.fxAudio))
	}
	m.channelBufs = make([]Handle, outputChannelCount)
	m.channelBufsHV = make([]bool, outputChannelCount)

	maxAudio := len(m.voiceAudio)
	if len(m.fxAudio) > maxAudio {
		maxAudio = len(m.fxAudio)
	}
	m.mixInputs = make([]mixer.Source, maxAudio)
	m.chanSources = make([]mixer.Source, outputChannelCount)
	m.mixOuts = make([][]float32, outputChannelCount)
	m.mixHandles = make([]Handle, outputChannelCount)
	return m
}

// audioOutputIndices lists a graph's signal-carrying outputs: everything
// except the remain-active output, which is control state read once per
// stage run rather than audio to accumulate or mix.
func audioOutputIndices(g graph.Graph) []int {
	remainIdx := g.RemainActiveOutputIndex()
	out := make([]int, 0, g.OutputCount())
	for i := 0; i < g.OutputCount(); i++ {
		if i == remainIdx {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (m *Manager) ctxFor(s stage.Stage) *graphContext {
	if s == stage.Voice {
		return m.voiceCtx
	}
	return m.fxCtx
}

// Allocator exposes the underlying pool, mainly so tests can assert
// everything was returned at chunk end.
func (m *Manager) Allocator() *Allocator { return m.alloc }

// BeginChunk resets per-chunk bookkeeping ahead of any stage run.
func (m *Manager) BeginChunk(frames int) {
	m.frames = frames
	m.voicesRun = 0
	m.fxRan = false
	for i := range m.voiceAccumHV {
		m.voiceAccumHV[i] = false
	}
	for i := range m.fxOutputHV {
		m.fxOutputHV[i] = false
	}
	for i := range m.channelBufsHV {
		m.channelBufsHV[i] = false
	}
}

// InitializeBuffersForGraph resets every buffer context slot for the given
// stage's graph ahead of a voice/FX run.
func (m *Manager) InitializeBuffersForGraph(s stage.Stage, g graph.Graph) {
	m.ctxFor(s).reset(g)
}

// AllocateOutputBuffers allocates a fresh handle for every out argument of
// task, and asserts in/inout arguments already have one.
func (m *Manager) AllocateOutputBuffers(s stage.Stage, g graph.Graph, taskIndex int) {
	ctx := m.ctxFor(s)
	for _, arg := range g.TaskArguments(taskIndex) {
		switch arg.Kind {
		case graph.ArgRealOut:
			idx := arg.BufferIndex()
			if ctx.hasValue[idx] {
				panic("buffer manager: out argument on an already-allocated buffer")
			}
			prim := g.BufferPrimitive(idx)
			h := m.alloc.Allocate(prim)
			ctx.handles[idx] = h
			ctx.hasValue[idx] = true
			m.alloc.Get(h).Reset(m.frames)
		case graph.ArgRealInout:
			idx := arg.BufferIndex()
			if !ctx.hasValue[idx] {
				panic("buffer manager: inout argument has no live handle")
			}
		default:
			if arg.Kind.IsArray() {
				for _, e := range arg.Elements {
					if e.IsBuffer && !ctx.hasValue[e.BufferIndex] {
						panic("buffer manager: in argument has no live handle")
					}
				}
			} else if arg.Scalar.IsBuffer && !ctx.hasValue[arg.Scalar.BufferIndex] {
				panic("buffer manager: in argument has no live handle")
			}
		}
	}
}

// DecrementBufferUsages decrements the remaining-usage counter for every
// non-constant argument referenced by task, freeing handles that reach
// zero. An inout argument is decremented once: the graph's usage total
// counts occurrences in Arguments, and an inout occupies a single argument
// slot for both its read and its write.
func (m *Manager) DecrementBufferUsages(s stage.Stage, g graph.Graph, taskIndex int) {
	ctx := m.ctxFor(s)
	for _, arg := range g.TaskArguments(taskIndex) {
		if arg.Kind == graph.ArgRealOut || arg.Kind == graph.ArgRealInout {
			m.decrementOne(ctx, arg.BufferIndex())
			continue
		}
		if arg.Kind.IsArray() {
			for _, e := range arg.Elements {
				if e.IsBuffer {
					m.decrementOne(ctx, e.BufferIndex)
				}
			}
			continue
		}
		if arg.Scalar.IsBuffer {
			m.decrementOne(ctx, arg.Scalar.BufferIndex)
		}
	}
}

func (m *Manager) decrementOne(ctx *graphContext, bufIdx int) {
	remaining := ctx.usages[bufIdx].Add(-1)
	if remaining == 0 {
		if !ctx.hasValue[bufIdx] {
			panic("buffer manager: double-free of buffer handle")
		}
		m.alloc.Free(ctx.handles[bufIdx])
		ctx.hasValue[bufIdx] = false
	}
}

// ResolveInput returns the live buffer backing a graph buffer index for the
// given stage, or nil if unset (a programmer-error condition by the time a
// task actually dereferences it).
func (m *Manager) ResolveInput(s stage.Stage, bufferIndex int) *Buffer {
	ctx := m.ctxFor(s)
	if !ctx.hasValue[bufferIndex] {
		return nil
	}
	return m.alloc.Get(ctx.handles[bufferIndex])
}
