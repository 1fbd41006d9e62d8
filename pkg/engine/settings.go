// Package engine implements the execution engine's top-level state machine:
// Executor ties together the thread pool, buffer manager, voice allocator,
// controller event manager, task memory and profiler to run a runtime
// instrument's voice and FX graphs one chunk at a time.
package engine

import (
	"github.com/wavelang/engine/pkg/engine/controller"
	"github.com/wavelang/engine/pkg/engine/mixer"
	"github.com/wavelang/engine/pkg/instrument"
)

// Settings is the Initialize input: everything the executor needs to size
// its resources once, up front, before the real-time loop starts.
type Settings struct {
	RuntimeInstrument instrument.RuntimeInstrument

	// ThreadCount is the worker pool size; 0 runs every task inline on the
	// calling (audio) goroutine.
	ThreadCount int

	SampleRate    float64
	MaxBufferSize int

	InputChannelCount  int
	OutputChannelCount int

	ControllerEventQueueSize int
	MaxControllerParameters  int

	// ProcessControllerEvents is the driver callback invoked once per chunk
	// with the engine's preallocated event queue slice (sized by
	// ControllerEventQueueSize), the chunk's buffer time and its duration in
	// seconds; it returns how many entries it filled. When nil, the engine
	// reads ChunkContext.ControllerEvents instead, which suits drivers that
	// already batch events per chunk themselves.
	ProcessControllerEvents func(queue []controller.Event, bufferTimeSec, durationSec float64) int

	EventConsoleEnabled bool
	ProfilingEnabled    bool
	// ProfilingThreshold is a fraction (0..1) of one chunk's real-time
	// budget past which the profiler reports an overrun.
	ProfilingThreshold float64
}

// ChunkContext is the per-chunk Execute input.
type ChunkContext struct {
	SampleRate       float64
	Frames           int
	BufferTimeSec    float64
	ControllerEvents []controller.Event

	InputChannelCount int
	InputBuffer       []float32 // interleaved, channel-major; may be nil

	OutputChannelCount int
	OutputFormat       mixer.SampleFormat
	OutputBuffer       []float32 // interleaved, channel-major; caller-owned
}
