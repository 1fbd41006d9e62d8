package profiler

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Measurement is the rolling summary kept for one registered span (a single
// task of one stage, or any other named section of the chunk loop).
type Measurement struct {
	Count int
	Min   float64
	Max   float64
	Last  float64
	Total float64
}

// Mean returns the measurement's running average, or 0 if nothing has been
// recorded yet.
func (m Measurement) Mean() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Total / float64(m.Count)
}

// span is one registered slot's raw counters, kept as integer nanoseconds.
// A slot has at most one writer at any instant: the scheduler never runs
// the same (stage, task) concurrently with itself, and stage runs are
// serial on the audio thread, so plain fields suffice and RecordSpan takes
// no lock.
type span struct {
	name       string
	count      uint64
	lastNanos  int64
	minNanos   int64
	maxNanos   int64
	totalNanos int64
}

// Profiler times registered spans within a chunk and checks the accumulated
// chunk time against the profiling threshold, reporting overruns through a
// Recorder so a host application can alert on real-time deadline misses
// without the engine itself knowing how those alerts are delivered. All
// spans are registered before the real-time loop starts; the per-span
// record path touches only that span's slot plus one shared atomic
// accumulator, with no lock and no allocation.
type Profiler struct {
	runID    string
	spans    []span
	recorder Recorder

	budgetNanos    int64 // wall time a chunk is allowed: chunk_size / sample_rate
	thresholdNanos int64 // overrun boundary: threshold fraction of budgetNanos

	chunkNanos atomic.Int64 // time accumulated by spans since BeginChunk
}

// New builds a Profiler. chunkSeconds is the real-time budget for one chunk
// (chunk_size / sample_rate); threshold is a fraction of that budget past
// which RecordError(span, "overrun") fires. A nil recorder is replaced with
// NoopRecorder. The run id, a UUID stamped once here, correlates this
// engine run's diagnostics and metrics across consumers.
func New(chunkSeconds, threshold float64, recorder Recorder) *Profiler {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	budget := int64(chunkSeconds * float64(time.Second))
	return &Profiler{
		runID:          uuid.New().String(),
		recorder:       recorder,
		budgetNanos:    budget,
		thresholdNanos: int64(threshold * float64(budget)),
	}
}

// RunID returns the UUID assigned to this profiler at construction.
func (p *Profiler) RunID() string { return p.runID }

// RegisterSpan reserves a slot for a named span and returns its id. Must be
// called before the real-time loop starts; ids index the slot table
// directly.
func (p *Profiler) RegisterSpan(name string) int {
	p.spans = append(p.spans, span{name: name})
	return len(p.spans) - 1
}

// BeginChunk resets the per-chunk overrun accumulator.
func (p *Profiler) BeginChunk() {
	p.chunkNanos.Store(0)
}

// RecordSpan records one execution of a registered span. Lock-free: slot
// counters have a single writer by construction, and the shared chunk
// accumulator is a plain atomic add.
func (p *Profiler) RecordSpan(id int, d time.Duration) {
	nanos := int64(d)
	s := &p.spans[id]
	s.count++
	s.lastNanos = nanos
	s.totalNanos += nanos
	if s.count == 1 || nanos < s.minNanos {
		s.minNanos = nanos
	}
	if nanos > s.maxNanos {
		s.maxNanos = nanos
	}

	total := p.chunkNanos.Add(nanos)

	p.recorder.RecordOperation(s.name, "ok")
	p.recorder.RecordDuration(s.name, d.Seconds())
	if p.thresholdNanos > 0 && total > p.thresholdNanos {
		p.recorder.RecordError(s.name, "overrun")
	}
}

// Report returns a snapshot of every registered span's Measurement, keyed
// by name. Slot counters are written without synchronization on the
// real-time path, so call this between chunks (or accept approximate
// figures for spans recorded mid-read).
func (p *Profiler) Report() map[string]Measurement {
	out := make(map[string]Measurement, len(p.spans))
	for i := range p.spans {
		s := &p.spans[i]
		out[s.name] = Measurement{
			Count: int(s.count),
			Min:   time.Duration(s.minNanos).Seconds(),
			Max:   time.Duration(s.maxNanos).Seconds(),
			Last:  time.Duration(s.lastNanos).Seconds(),
			Total: time.Duration(s.totalNanos).Seconds(),
		}
	}
	return out
}
