package engine

import (
	"github.com/wavelang/engine/pkg/diagnostics"
	"github.com/wavelang/engine/pkg/engine/controller"
	"github.com/wavelang/engine/pkg/engine/voice"
	"github.com/wavelang/engine/pkg/graph"
)

// execContext is the concrete graph.TaskContext handed to a task function's
// Function/Initializer/VoiceInitializer callback. One persistent context
// lives per (stage, task), allocated at Initialize and reused every chunk;
// only the per-run fields (sample rate, buffer size, memory window, chunk
// sequence, voice view) are written between uses.
type execContext struct {
	sampleRate float64
	bufferSize int
	args       []graph.ResolvedArgument
	memory     []byte
	voiceView  graph.VoiceView
	ctrlView   graph.ControllerView

	console   *diagnostics.Console
	chunkSeq  uint64
	stageName string
	taskIndex int
}

func (c *execContext) SampleRate() float64 { return c.sampleRate }
func (c *execContext) BufferSize() int     { return c.bufferSize }

func (c *execContext) Arg(index int) graph.ResolvedArgument {
	return c.args[index]
}

func (c *execContext) Memory() []byte { return c.memory }

func (c *execContext) Voice() graph.VoiceView { return c.voiceView }

func (c *execContext) Controller() graph.ControllerView { return c.ctrlView }

func (c *execContext) Emit(severity graph.EventSeverity, message string) {
	if c.console == nil {
		return
	}
	c.console.Push(diagnostics.Event{
		ChunkSeq:  c.chunkSeq,
		Stage:     c.stageName,
		TaskIndex: c.taskIndex,
		Severity:  severity,
		Message:   message,
	})
}

// noVoice is the always-zero VoiceView handed to FX-stage tasks, which run
// once per chunk rather than per voice and have no note to observe. It is
// zero-size, so storing it in the VoiceView interface never allocates.
type noVoice struct{}

func (noVoice) NoteID() int32            { return 0 }
func (noVoice) NoteVelocity() float32    { return 0 }
func (noVoice) NoteReleaseSample() int32 { return 0 }

// voiceView adapts *voice.Voice, plus the effective buffer size (for the
// not-yet-released convention: NoteReleaseSample == BufferSize when the
// voice hasn't released this chunk), to graph.VoiceView. One persistent
// value lives per voice slot; the executor updates frames at the top of
// each stage run and task contexts hold a pointer, so handing it to the
// interface never allocates.
type voiceView struct {
	v      *voice.Voice
	frames int32
}

func (vv *voiceView) NoteID() int32         { return vv.v.NoteID }
func (vv *voiceView) NoteVelocity() float32 { return vv.v.NoteVelocity }

// NoteReleaseSample is reported relative to the effective chunk, which for a
// voice triggered mid-chunk starts at its ChunkOffsetSamples rather than at
// frame 0.
func (vv *voiceView) NoteReleaseSample() int32 {
	r := vv.v.NoteReleaseSample - vv.v.ChunkOffsetSamples
	if r < 0 {
		return 0
	}
	if r > vv.frames {
		return vv.frames
	}
	return r
}

// controllerView adapts *controller.Manager to graph.ControllerView. The
// controller package stores its per-chunk update slices as
// graph.ParameterEvent directly, so the lookup is a straight pass-through
// with no per-call copy. One value lives on the executor; contexts hold a
// pointer.
type controllerView struct {
	m *controller.Manager
}

func (cv *controllerView) GetParameterChangeEvents(id uint32) (float64, []graph.ParameterEvent) {
	return cv.m.GetParameterChangeEvents(id)
}
