// Package diagnostics implements the engine's event console: a lock-free,
// drop-on-overflow channel for soft-failure and informational events
// raised by task functions mid-chunk, consumed off the real-time path by a
// structured logger.
package diagnostics

import "github.com/wavelang/engine/pkg/graph"

// Severity mirrors graph.EventSeverity so this package doesn't force every
// caller to import the graph package just to log a message.
type Severity = graph.EventSeverity

const (
	Info  = graph.EventInfo
	Warn  = graph.EventWarn
	Error = graph.EventError
)

// Event is one console message as raised by a task, tagged with the chunk
// sequence number and task that produced it so a consumer can correlate it
// with a profiler span. The chunk is identified by a counter rather than a
// string so producing an event never formats or allocates an id on the
// audio thread; consumers scope the counter with the profiler's run id.
type Event struct {
	ChunkSeq  uint64
	Stage     string
	TaskIndex int
	Severity  Severity
	Message   string
}
