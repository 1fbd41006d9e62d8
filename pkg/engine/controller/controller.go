// Package controller implements the engine's controller event manager: a
// double-buffered, per-chunk sorted queue of timestamped note and
// parameter-change events, indexed by parameter id for O(1) lookup during
// task execution.
package controller

import "github.com/wavelang/engine/pkg/graph"

// EventKind distinguishes the three controller event shapes a driver can
// deliver.
type EventKind int

const (
	KindNoteOn EventKind = iota
	KindNoteOff
	KindParameterChange
)

// Event is one timestamped controller event as delivered by the driver.
type Event struct {
	TimestampSec float64
	Kind         EventKind

	Note     int32
	Velocity float32

	ParameterID    uint32
	ParameterValue float64
}

// ParameterEvent is the (timestamp, value) pair a task function observes
// for one in-chunk update. It aliases the graph package's type so the
// manager's slices flow to task functions without a per-lookup copy.
type ParameterEvent = graph.ParameterEvent

// parameterState tracks, per parameter id, what a task needs to answer
// GetParameterChangeEvents in O(1): the settled value from before this
// chunk, the value as of the end of this chunk, which chunk these fields
// were last updated in, and the slice of this chunk's updates.
type parameterState struct {
	lastActiveChunkIndex uint64
	previousValue        float64
	nextPreviousValue    float64
	events               []ParameterEvent
}

// Manager owns the open-addressed parameter table and the current chunk's
// sorted event buffer. Every buffer is sized once at construction from the
// driver's queue capacity; Process reuses them chunk over chunk without
// allocating.
type Manager struct {
	table      map[uint32]*parameterState
	sorted     []Event
	noteEvents []Event
	paramPool  []ParameterEvent

	chunkIndex uint64
}

// NewManager builds a controller event manager. maxParameters bounds the
// number of distinct parameter ids that can be tracked; WaveLang task
// graphs reference parameters by small dense ids assigned at compile time,
// so a Go map sized with that capacity hint behaves like an open-addressed
// table without the engine hand-rolling probing. eventQueueSize is the
// driver's per-chunk event capacity; the sort and grouping buffers are
// preallocated to it so the per-chunk path stays allocation-free.
func NewManager(maxParameters, eventQueueSize int) *Manager {
	if eventQueueSize < 1 {
		eventQueueSize = 1
	}
	return &Manager{
		table:      make(map[uint32]*parameterState, maxParameters),
		sorted:     make([]Event, 0, eventQueueSize),
		noteEvents: make([]Event, 0, eventQueueSize),
		paramPool:  make([]ParameterEvent, 0, eventQueueSize),
	}
}

// Process ingests one chunk's events: stable-sort note events first by
// timestamp, then parameter-change events grouped by parameter id (offset
// to avoid collision with the note-event prefix) and by timestamp within a
// group, then walk the sorted result updating each referenced parameter's
// state. Event slices handed out for the previous chunk are invalidated
// here; they are only ever valid for the chunk that produced them.
func (m *Manager) Process(events []Event) {
	m.chunkIndex++
	m.noteEvents = m.noteEvents[:0]
	m.paramPool = m.paramPool[:0]

	m.sorted = append(m.sorted[:0], events...)
	sortEvents(m.sorted)

	var i int
	for i = 0; i < len(m.sorted) && m.sorted[i].Kind != KindParameterChange; i++ {
		m.noteEvents = append(m.noteEvents, m.sorted[i])
	}

	for i < len(m.sorted) {
		id := m.sorted[i].ParameterID
		start := len(m.paramPool)
		j := i
		for j < len(m.sorted) && m.sorted[j].Kind == KindParameterChange && m.sorted[j].ParameterID == id {
			m.paramPool = append(m.paramPool, ParameterEvent{TimestampSec: m.sorted[j].TimestampSec, Value: m.sorted[j].ParameterValue})
			j++
		}
		m.updateParameter(id, m.paramPool[start:len(m.paramPool):len(m.paramPool)])
		i = j
	}
}

// sortEvents is a stable insertion sort over the chunk's event buffer. The
// buffer is bounded by the driver's queue capacity and typically tiny, so
// insertion sort beats a general-purpose sort here and, unlike the sort
// package's closure-based API, performs no allocation.
func sortEvents(s []Event) {
	for i := 1; i < len(s); i++ {
		e := s[i]
		ge := sortGroup(e)
		j := i - 1
		for j >= 0 && eventAfter(s[j], e, ge) {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = e
	}
}

// eventAfter reports whether a must sort strictly after an event e of group
// ge; equal keys keep their arrival order, which is what makes the sort
// stable.
func eventAfter(a, e Event, ge int) bool {
	ga := sortGroup(a)
	if ga != ge {
		return ga > ge
	}
	return a.TimestampSec > e.TimestampSec
}

// sortGroup orders note events (group 0) before parameter-change events,
// which are grouped by parameter id offset by 1 so every id lands in its own
// contiguous run and no id collides with the note-event prefix. Timestamps
// only order events within a group.
func sortGroup(e Event) int {
	if e.Kind == KindParameterChange {
		return 1 + int(e.ParameterID)
	}
	return 0
}

func (m *Manager) updateParameter(id uint32, group []ParameterEvent) {
	st, ok := m.table[id]
	if !ok {
		st = &parameterState{}
		m.table[id] = st
	}
	st.lastActiveChunkIndex = m.chunkIndex
	st.previousValue = st.nextPreviousValue
	st.nextPreviousValue = group[len(group)-1].Value
	st.events = group
}

// GetParameterChangeEvents is the task-facing lookup:
// if the parameter was touched this chunk, return its recorded slice and
// pre-chunk value; otherwise return no events and the last settled value.
func (m *Manager) GetParameterChangeEvents(id uint32) (previous float64, events []ParameterEvent) {
	st, ok := m.table[id]
	if !ok {
		return 0, nil
	}
	if st.lastActiveChunkIndex == m.chunkIndex {
		return st.previousValue, st.events
	}
	return st.nextPreviousValue, nil
}

// NoteEvents returns this chunk's note on/off events in timestamp order,
// consumed by the voice allocator. The slice is reused; it is valid only
// until the next Process call.
func (m *Manager) NoteEvents() []Event {
	return m.noteEvents
}
