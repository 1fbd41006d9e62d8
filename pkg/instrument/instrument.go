// Package instrument describes a compiled WaveLang instrument: the task
// graphs the execution engine runs plus the per-instrument globals the
// front-end compiler decided at compile time (voice count, preferred
// sample rate and chunk size, whether the FX graph runs before any voice
// has sounded).
package instrument

import (
	"fmt"

	"github.com/wavelang/engine/pkg/graph"
)

// RuntimeInstrument is the unit the executor initializes from. At least one
// of VoiceGraph or FxGraph must be present.
type RuntimeInstrument struct {
	VoiceGraph graph.Graph
	FxGraph    graph.Graph

	// MaxVoices bounds concurrent voice instances; ignored (treated as 0)
	// when VoiceGraph is nil.
	MaxVoices int

	// SampleRate, when non-zero, is a rate the instrument requires,
	// overriding whatever the host would otherwise configure.
	SampleRate float64

	// ChunkSize, when non-zero, is a frame count the instrument requires.
	ChunkSize int

	// ActivateFxImmediately makes the FX graph run starting with the first
	// chunk, even before any voice has ever been active, instead of
	// waiting for the first voice accumulation to produce input.
	ActivateFxImmediately bool
}

// Validate checks the struct-level invariants an executor relies on before
// it may initialize from this instrument.
func (ri RuntimeInstrument) Validate() error {
	if ri.VoiceGraph == nil && ri.FxGraph == nil {
		return fmt.Errorf("instrument: must declare a voice graph, an fx graph, or both")
	}
	if ri.VoiceGraph != nil && ri.MaxVoices < 1 {
		return fmt.Errorf("instrument: voice graph present but max_voices = %d, want >= 1", ri.MaxVoices)
	}
	if ri.SampleRate < 0 {
		return fmt.Errorf("instrument: sample_rate = %v, want >= 0", ri.SampleRate)
	}
	if ri.ChunkSize < 0 {
		return fmt.Errorf("instrument: chunk_size = %d, want >= 0", ri.ChunkSize)
	}
	return nil
}

// EffectiveMaxVoices returns MaxVoices when a voice graph is present, 0
// otherwise — the value the executor should use to size voice-scoped
// resources (the voice allocator, per-voice task memory, the voice
// accumulation buffer).
func (ri RuntimeInstrument) EffectiveMaxVoices() int {
	if ri.VoiceGraph == nil {
		return 0
	}
	return ri.MaxVoices
}
