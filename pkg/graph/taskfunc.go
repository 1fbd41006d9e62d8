package graph

// TaskContext is passed to every task-function callback. It is deliberately
// narrow: callbacks see only what the execution model grants them at
// that lifecycle point. The concrete engine package fills in a richer
// context that embeds this one; front-end-agnostic task functions should
// depend only on this interface wherever possible.
type TaskContext interface {
	SampleRate() float64
	BufferSize() int

	// Arg returns the marshaled argument for the given index into the
	// task's Arguments slice, with buffer references already resolved to
	// live []float32 (or []bool) slices by the engine.
	Arg(index int) ResolvedArgument

	// Memory returns this task's persistent byte slice (for this stage,
	// task and, for voice-stage tasks, voice). It is zeroed on first use
	// and preserved verbatim across chunks.
	Memory() []byte

	Voice() VoiceView
	Controller() ControllerView
	Emit(severity EventSeverity, message string)
}

// ResolvedArgument is what a task function actually sees: constants stay as
// constants, buffer references become slices plus the buffer's constant
// flag (so a task can special-case broadcast inputs cheaply).
type ResolvedArgument struct {
	Kind ArgumentKind

	RealBuf   []float32
	BoolBuf   []bool
	IsConst   bool // true if the buffer (or scalar) is a constant broadcast
	RealConst float32
	BoolConst bool
	StrConst  string

	// Elements mirrors Argument.Elements for array arguments, each entry
	// resolved the same way.
	Elements []ResolvedArgument
}

// VoiceView is the read-only surface a task function sees of the voice it
// is executing for (meaningless, always a zero value, for FX-stage tasks).
type VoiceView interface {
	NoteID() int32
	NoteVelocity() float32
	// NoteReleaseSample returns frames into the current effective chunk at
	// which release occurred, or BufferSize() if not yet released.
	NoteReleaseSample() int32
}

// ControllerView is the read-only surface a task function sees of the
// controller event manager.
type ControllerView interface {
	// GetParameterChangeEvents returns the pre-chunk settled value for the
	// parameter plus the sorted slice of in-chunk updates.
	GetParameterChangeEvents(id uint32) (previous float64, events []ParameterEvent)
}

// ParameterEvent is one timestamped parameter-change update.
type ParameterEvent struct {
	TimestampSec float64
	Value        float64
}

// EventSeverity classifies a soft failure or diagnostic emitted through the
// event interface during task execution.
type EventSeverity int

const (
	EventInfo EventSeverity = iota
	EventWarn
	EventError
)

// TaskFunction is the process-wide registry entry a task's FunctionIndex
// resolves to. Only Function is required; the others are optional
// lifecycle hooks the executor fires at initialize and voice-start time.
type TaskFunction struct {
	Name string

	// MemoryQuery reports how many bytes of persistent memory this task
	// needs (per voice, for voice-stage tasks). Reads only constant
	// arguments. Optional; nil means zero bytes.
	MemoryQuery func(ctx TaskContext) int

	// Initializer fires once per task at engine Initialize. Reads only
	// constant arguments.
	Initializer func(ctx TaskContext)

	// VoiceInitializer fires once per voice, the chunk that voice starts.
	VoiceInitializer func(ctx TaskContext)

	// Function is the hot path, invoked once per (stage, voice, task) per
	// chunk.
	Function func(ctx TaskContext)
}

// Library is the process-wide task-function registry, built once at
// program start and handed to the executor by reference for its lifetime.
// Modeling it as an explicit value (rather than process-wide globals)
// follows the redesign called out for the original engine's native-module
// registry.
type Library struct {
	functions []TaskFunction
}

// NewLibrary returns an empty registry.
func NewLibrary() *Library {
	return &Library{}
}

// Register appends a task function and returns its index, which is the
// value a compiled graph's Task.FunctionIndex must reference.
func (l *Library) Register(fn TaskFunction) int {
	l.functions = append(l.functions, fn)
	return len(l.functions) - 1
}

// Lookup returns the task function at index i. Out-of-range access is a
// programmer error (graph/library mismatch) and panics rather than
// returning a zero value that would silently skip work.
func (l *Library) Lookup(i int) *TaskFunction {
	return &l.functions[i]
}

// Len returns the number of registered task functions.
func (l *Library) Len() int {
	return len(l.functions)
}
