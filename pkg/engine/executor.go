package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wavelang/engine/pkg/diagnostics"
	"github.com/wavelang/engine/pkg/engine/buffer"
	"github.com/wavelang/engine/pkg/engine/controller"
	"github.com/wavelang/engine/pkg/engine/pool"
	"github.com/wavelang/engine/pkg/engine/stage"
	"github.com/wavelang/engine/pkg/engine/taskmem"
	"github.com/wavelang/engine/pkg/engine/voice"
	"github.com/wavelang/engine/pkg/graph"
	"github.com/wavelang/engine/pkg/profiler"
)

// execState is the executor's single-atomic-word state machine.
type execState int32

const (
	stateUninitialized execState = iota
	stateInitialized
	stateRunning
	stateTerminating
)

// taskScratch is the per-(stage, task) persistent working set: the reusable
// task context plus its preallocated argument buffer. One exists per task
// per stage, built at Initialize; the per-chunk path only writes fields
// into it, never allocates. A task never runs concurrently with itself
// (stage runs are serial, and within a run each task fires once), so the
// scratch needs no synchronization beyond the scheduler's own
// happens-before edges.
type taskScratch struct {
	ctx  execContext
	args []graph.ResolvedArgument
}

// stageRuntime bundles everything task execution needs for one stage, so
// RunTask can go from a descriptor to work with two field loads.
type stageRuntime struct {
	graph   graph.Graph
	pred    []atomic.Int32
	mem     *taskmem.Manager
	scratch []taskScratch
	spans   []int // profiler span ids per task; nil when profiling is off
}

// Executor is the top-level state machine and chunk driver: it owns every
// sub-component for the lifetime of the engine and is the sole entry point
// a driver shim calls into.
type Executor struct {
	state atomic.Int32

	settings Settings
	library  *graph.Library

	pool     *pool.Pool
	bufMgr   *buffer.Manager
	voices   *voice.Allocator
	ctrl     *controller.Manager
	ctrlView controllerView
	console  *diagnostics.Console
	profiler *profiler.Profiler

	voiceGraph graph.Graph
	fxGraph    graph.Graph
	maxVoices  int

	stages [2]stageRuntime

	voiceViews  []voiceView
	ctrlQueue   []controller.Event
	voiceEvents []voice.Event

	chunkSeq uint64

	tasksRemaining atomic.Int32
	doneSem        *semaphore.Weighted

	fxEverActive bool

	shutdownSem *semaphore.Weighted
}

// New constructs an Executor in the Uninitialized state.
func New(library *graph.Library) *Executor {
	return &Executor{library: library}
}

// Initialize sizes every sub-component from the runtime instrument and
// settings, then invokes every task's Initializer callback before
// publishing the Initialized state. Returns an error if settings are
// invalid or the call is out of order, since a library should not panic on
// caller-supplied configuration. Every buffer the per-chunk path touches is
// allocated here; after this returns, Execute performs no heap allocation.
func (e *Executor) Initialize(settings Settings) error {
	if !e.state.CompareAndSwap(int32(stateUninitialized), int32(stateInitialized)) {
		return fmt.Errorf("engine: Initialize called outside the Uninitialized state")
	}
	if err := settings.RuntimeInstrument.Validate(); err != nil {
		e.state.Store(int32(stateUninitialized))
		return err
	}

	e.settings = settings
	e.voiceGraph = settings.RuntimeInstrument.VoiceGraph
	e.fxGraph = settings.RuntimeInstrument.FxGraph
	e.maxVoices = settings.RuntimeInstrument.EffectiveMaxVoices()
	e.fxEverActive = settings.RuntimeInstrument.ActivateFxImmediately

	// A re-Initialize after Shutdown must not inherit the previous
	// instrument's stage state.
	e.stages = [2]stageRuntime{}
	e.voices = nil
	e.voiceViews = nil

	specs := buffer.ComputePoolSpecs(buffer.PoolSizingInput{
		VoiceGraph:         e.voiceGraph,
		FxGraph:            e.fxGraph,
		MaxVoices:          e.maxVoices,
		OutputChannelCount: settings.OutputChannelCount,
		MaxBufferSize:      settings.MaxBufferSize,
	})
	e.bufMgr = buffer.NewManager(specs, e.voiceGraph, e.fxGraph, settings.OutputChannelCount)

	e.ctrl = controller.NewManager(settings.MaxControllerParameters, settings.ControllerEventQueueSize)
	e.ctrlView = controllerView{m: e.ctrl}
	if settings.ControllerEventQueueSize > 0 {
		e.ctrlQueue = make([]controller.Event, settings.ControllerEventQueueSize)
	}
	eventCap := settings.ControllerEventQueueSize
	if eventCap < 1 {
		eventCap = 64
	}
	e.voiceEvents = make([]voice.Event, 0, eventCap)

	if settings.EventConsoleEnabled {
		e.console = diagnostics.NewConsole(16 * 1024)
	}
	if settings.ProfilingEnabled {
		chunkSeconds := 0.0
		if settings.SampleRate > 0 {
			chunkSeconds = float64(settings.MaxBufferSize) / settings.SampleRate
		}
		e.profiler = profiler.New(chunkSeconds, settings.ProfilingThreshold, profiler.NoopRecorder{})
	}

	if e.voiceGraph != nil {
		e.voices = voice.NewAllocator(e.maxVoices)
		e.voiceViews = make([]voiceView, e.maxVoices)
		for i := range e.voiceViews {
			e.voiceViews[i].v = e.voices.Voice(i)
		}
		e.stages[stage.Voice] = e.buildStageRuntime(stage.Voice, e.voiceGraph, e.maxVoices)
	}
	if e.fxGraph != nil {
		e.stages[stage.Fx] = e.buildStageRuntime(stage.Fx, e.fxGraph, 1)
	}

	maxTasks := maxOf(graphTaskCount(e.voiceGraph), graphTaskCount(e.fxGraph))
	if maxTasks < 1 {
		maxTasks = 1
	}
	e.pool = pool.New(settings.ThreadCount, maxTasks, true)

	e.doneSem = semaphore.NewWeighted(1)
	e.doneSem.Acquire(context.Background(), 1)
	e.shutdownSem = semaphore.NewWeighted(1)
	e.shutdownSem.Acquire(context.Background(), 1)

	e.runInitializers(stage.Voice)
	e.runInitializers(stage.Fx)

	e.state.Store(int32(stateInitialized))
	return nil
}

// buildStageRuntime assembles one stage's persistent execution state: the
// task-memory arena (sized by each task's MemoryQuery), the predecessor
// counters, the per-task scratch contexts, and profiler span registrations.
func (e *Executor) buildStageRuntime(s stage.Stage, g graph.Graph, voiceCount int) stageRuntime {
	rt := stageRuntime{
		graph: g,
		pred:  make([]atomic.Int32, g.TaskCount()),
		mem: taskmem.New(taskmem.Layout{
			TaskSizes:  e.memoryQuerySizes(g),
			VoiceCount: voiceCount,
		}),
		scratch: make([]taskScratch, g.TaskCount()),
	}

	for i := range rt.scratch {
		sc := &rt.scratch[i]
		sc.args = newArgBuffer(g, i)
		sc.ctx = execContext{
			args:      sc.args,
			ctrlView:  &e.ctrlView,
			console:   e.console,
			stageName: s.String(),
			taskIndex: i,
		}
		if s == stage.Fx {
			sc.ctx.voiceView = noVoice{}
		}
	}

	if e.profiler != nil {
		rt.spans = make([]int, g.TaskCount())
		for i := range rt.spans {
			tf := e.library.Lookup(g.TaskFunctionIndex(i))
			rt.spans[i] = e.profiler.RegisterSpan(fmt.Sprintf("%s:%s", s, tf.Name))
		}
	}
	return rt
}

func graphTaskCount(g graph.Graph) int {
	if g == nil {
		return 0
	}
	return g.TaskCount()
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// memoryQuerySizes invokes every task's MemoryQuery callback (constant args
// only) to size the task-memory arena.
func (e *Executor) memoryQuerySizes(g graph.Graph) []int {
	sizes := make([]int, g.TaskCount())
	for i := 0; i < g.TaskCount(); i++ {
		tf := e.library.Lookup(g.TaskFunctionIndex(i))
		if tf.MemoryQuery == nil {
			continue
		}
		args := newArgBuffer(g, i)
		resolveConstantArgumentsInto(args, g, i)
		ctx := &execContext{
			sampleRate: e.settings.SampleRate,
			args:       args,
			voiceView:  noVoice{},
		}
		sizes[i] = tf.MemoryQuery(ctx)
	}
	return sizes
}

func (e *Executor) runInitializers(s stage.Stage) {
	rt := &e.stages[s]
	if rt.graph == nil {
		return
	}
	for i := 0; i < rt.graph.TaskCount(); i++ {
		tf := e.library.Lookup(rt.graph.TaskFunctionIndex(i))
		if tf.Initializer == nil {
			continue
		}
		sc := &rt.scratch[i]
		resolveConstantArgumentsInto(sc.args, rt.graph, i)
		sc.ctx.sampleRate = e.settings.SampleRate
		sc.ctx.memory = rt.mem.Slice(i, 0)
		if s == stage.Voice {
			sc.ctx.voiceView = noVoice{}
		}
		tf.Initializer(&sc.ctx)
	}
}

// Execute runs one chunk: the Initialized→Running and
// Terminating→Uninitialized transitions, then the chunk loop if Running,
// else silence.
func (e *Executor) Execute(chunk ChunkContext) error {
	e.state.CompareAndSwap(int32(stateInitialized), int32(stateRunning))

	if e.state.CompareAndSwap(int32(stateTerminating), int32(stateUninitialized)) {
		e.shutdownSem.Release(1)
		writeSilence(chunk.OutputBuffer)
		return nil
	}

	if execState(e.state.Load()) != stateRunning {
		writeSilence(chunk.OutputBuffer)
		return nil
	}

	if chunk.Frames > e.settings.MaxBufferSize {
		return fmt.Errorf("engine: chunk frames %d exceeds max_buffer_size %d", chunk.Frames, e.settings.MaxBufferSize)
	}
	if chunk.SampleRate != e.settings.SampleRate {
		return fmt.Errorf("engine: chunk sample rate %v differs from configured %v", chunk.SampleRate, e.settings.SampleRate)
	}

	e.runChunk(chunk)
	return nil
}

func writeSilence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}

// Shutdown tears the engine down: a fast path from Initialized, or a slow
// path that waits for the in-flight chunk (if any) to notice Terminating
// and release the shutdown semaphore.
func (e *Executor) Shutdown() error {
	if e.state.CompareAndSwap(int32(stateInitialized), int32(stateUninitialized)) {
		return e.teardown()
	}
	if e.state.CompareAndSwap(int32(stateRunning), int32(stateTerminating)) {
		e.shutdownSem.Acquire(context.Background(), 1)
		return e.teardown()
	}
	return fmt.Errorf("engine: Shutdown called outside Initialized/Running")
}

func (e *Executor) teardown() error {
	if e.pool == nil {
		return nil
	}
	if remaining := e.pool.Stop(); remaining != 0 {
		return fmt.Errorf("engine: %d tasks still queued at shutdown", remaining)
	}
	return nil
}

func (e *Executor) runChunk(chunk ChunkContext) {
	e.chunkSeq++
	if e.profiler != nil {
		e.profiler.BeginChunk()
	}

	e.bufMgr.BeginChunk(chunk.Frames)

	events := chunk.ControllerEvents
	if e.settings.ProcessControllerEvents != nil {
		duration := 0.0
		if chunk.SampleRate > 0 {
			duration = float64(chunk.Frames) / chunk.SampleRate
		}
		n := e.settings.ProcessControllerEvents(e.ctrlQueue, chunk.BufferTimeSec, duration)
		if n > len(e.ctrlQueue) {
			n = len(e.ctrlQueue)
		}
		if n < 0 {
			n = 0
		}
		events = e.ctrlQueue[:n]
	}
	e.ctrl.Process(events)

	if e.voiceGraph != nil {
		e.voices.AllocateForChunk(e.collectVoiceEvents(), chunk.SampleRate, chunk.Frames)

		any := false
		for _, idx := range e.voices.ActiveIndices() {
			any = true
			e.runVoice(idx, chunk)
		}
		if any {
			e.fxEverActive = e.fxEverActive || e.fxGraph != nil
		}
	}

	fxActive := e.fxGraph != nil && (e.settings.RuntimeInstrument.ActivateFxImmediately || e.fxEverActive)

	if fxActive {
		remainActive := e.runStage(stage.Fx, 0, 0, chunk, true)
		if !remainActive {
			e.fxEverActive = e.settings.RuntimeInstrument.ActivateFxImmediately
		}
		e.bufMgr.StoreFxOutput(e.fxGraph)
		e.bufMgr.MixFxOutputToChannelBuffers()
	} else {
		e.bufMgr.MixVoiceAccumulationBuffersToChannelBuffers()
	}

	e.bufMgr.MixChannelBuffersToOutputBuffer(chunk.OutputFormat, chunk.OutputBuffer)
}

// collectVoiceEvents converts this chunk's note events into the voice
// allocator's shape, reusing the executor's preallocated buffer.
func (e *Executor) collectVoiceEvents() []voice.Event {
	e.voiceEvents = e.voiceEvents[:0]
	for _, ev := range e.ctrl.NoteEvents() {
		e.voiceEvents = append(e.voiceEvents, voice.Event{
			TimestampSec: ev.TimestampSec,
			NoteOn:       ev.Kind == controller.KindNoteOn,
			Note:         ev.Note,
			Velocity:     ev.Velocity,
		})
	}
	return e.voiceEvents
}

func (e *Executor) runVoice(idx int, chunk ChunkContext) {
	v := e.voices.Voice(idx)
	remainActive := e.runStage(stage.Voice, idx, v.ChunkOffsetSamples, chunk, false)
	e.bufMgr.AccumulateVoiceOutput(e.voiceGraph, int(v.ChunkOffsetSamples))
	if !remainActive {
		e.voices.DisableVoice(idx)
	}
}

// runStage runs one graph to completion for one (stage, voice) pair. When
// seedFx is set (the FX stage), the voice-summed signal is published into
// the FX graph's input buffer slots after the buffer contexts are reset and
// before any task is submitted (see buffer.Manager.SeedFxInput).
func (e *Executor) runStage(s stage.Stage, voiceIdx int, chunkOffset int32, chunk ChunkContext, seedFx bool) bool {
	rt := &e.stages[s]
	g := rt.graph
	if g == nil {
		return true
	}

	effectiveFrames := chunk.Frames - int(chunkOffset)
	if effectiveFrames < 0 {
		effectiveFrames = 0
	}

	if s == stage.Voice {
		e.voiceViews[voiceIdx].frames = int32(effectiveFrames)
		v := e.voices.Voice(voiceIdx)
		if v.ActivatedThisChunk {
			e.runVoiceInitializers(rt, voiceIdx, effectiveFrames, chunk.SampleRate)
		}
	}

	for i := range rt.pred {
		rt.pred[i].Store(g.TaskPredecessorCount(i))
	}
	e.bufMgr.InitializeBuffersForGraph(s, g)
	if seedFx {
		e.bufMgr.SeedFxInput(g)
	}

	if g.TaskCount() > 0 {
		e.tasksRemaining.Store(int32(g.TaskCount()))
		for _, idx := range g.InitialTasks() {
			e.pool.AddTask(pool.Task{
				Runner:     e,
				Stage:      int32(s),
				Voice:      int32(voiceIdx),
				Index:      int32(idx),
				Frames:     int32(effectiveFrames),
				SampleRate: chunk.SampleRate,
			})
		}
		e.pool.Resume()
		e.doneSem.Acquire(context.Background(), 1)
		e.pool.Pause()
	}

	return e.bufMgr.ProcessRemainActiveOutput(s, g)
}

func (e *Executor) runVoiceInitializers(rt *stageRuntime, voiceIdx, effectiveFrames int, sampleRate float64) {
	g := rt.graph
	for i := 0; i < g.TaskCount(); i++ {
		tf := e.library.Lookup(g.TaskFunctionIndex(i))
		if tf.VoiceInitializer == nil {
			continue
		}
		sc := &rt.scratch[i]
		resolveConstantArgumentsInto(sc.args, g, i)
		sc.ctx.sampleRate = sampleRate
		sc.ctx.bufferSize = effectiveFrames
		sc.ctx.memory = rt.mem.Slice(i, voiceIdx)
		sc.ctx.voiceView = &e.voiceViews[voiceIdx]
		sc.ctx.chunkSeq = e.chunkSeq
		tf.VoiceInitializer(&sc.ctx)
	}
}

// RunTask implements pool.Runner: the per-task execution a worker (or the
// inline zero-thread drain) performs when it picks up a descriptor.
// Allocate outputs, marshal arguments into the task's persistent scratch,
// run the function, retire buffer usages, then wake any successors that
// just became ready. Nothing here allocates; every buffer it touches was
// sized at Initialize.
func (e *Executor) RunTask(t pool.Task) {
	s := stage.Stage(t.Stage)
	rt := &e.stages[s]
	g := rt.graph
	taskIndex := int(t.Index)
	voiceIdx := int(t.Voice)

	e.bufMgr.AllocateOutputBuffers(s, g, taskIndex)

	sc := &rt.scratch[taskIndex]
	resolveArgumentsInto(sc.args, e.bufMgr, s, g, taskIndex)
	sc.ctx.sampleRate = t.SampleRate
	sc.ctx.bufferSize = int(t.Frames)
	sc.ctx.memory = rt.mem.Slice(taskIndex, voiceIdx)
	sc.ctx.chunkSeq = e.chunkSeq
	if s == stage.Voice {
		sc.ctx.voiceView = &e.voiceViews[voiceIdx]
	}

	tf := e.library.Lookup(g.TaskFunctionIndex(taskIndex))
	if e.profiler != nil {
		t0 := time.Now()
		tf.Function(&sc.ctx)
		e.profiler.RecordSpan(rt.spans[taskIndex], time.Since(t0))
	} else {
		tf.Function(&sc.ctx)
	}

	e.bufMgr.DecrementBufferUsages(s, g, taskIndex)

	for _, succ := range g.TaskSuccessors(taskIndex) {
		if rt.pred[succ].Add(-1) == 0 {
			e.pool.AddTask(pool.Task{
				Runner:     e,
				Stage:      t.Stage,
				Voice:      t.Voice,
				Index:      int32(succ),
				Frames:     t.Frames,
				SampleRate: t.SampleRate,
			})
		}
	}

	if e.tasksRemaining.Add(-1) == 0 {
		e.doneSem.Release(1)
	}
}
