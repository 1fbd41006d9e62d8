// Package voice implements the engine's voice allocator: it maps incoming
// note-on/note-off events onto a fixed set of voice slots and tracks each
// voice's activation and release timing within the current chunk.
package voice

// Voice is the persistent per-slot state the executor and task functions
// observe. It never reallocates; the same Voice value is reused across
// chunks for the lifetime of the engine.
type Voice struct {
	Active             bool
	ActivatedThisChunk bool
	NoteID             int32
	NoteVelocity       float32

	// ChunkOffsetSamples is the sample index within the chunk at which
	// this voice began producing output this chunk: 0 for voices carried
	// over from a previous chunk, non-zero for a voice newly triggered
	// mid-chunk.
	ChunkOffsetSamples int32

	// NoteReleaseSample is the frame offset within the current chunk at
	// which release occurred: the chunk's frame count if the voice has not
	// yet released, 0 on every chunk after the one the release landed in.
	NoteReleaseSample int32

	released             bool   // note-off has been seen for this voice
	activatedAtChunkStep uint64 // monotonically increasing "age" for steal-oldest
}

// Event is one timestamped note event for the chunk being processed.
type Event struct {
	TimestampSec float64
	NoteOn       bool // false means NoteOff
	Note         int32
	Velocity     float32
}

// Allocator assigns notes to slots: note-on claims the lowest-index
// inactive slot, stealing the oldest active voice if none is free;
// note-off locates the voice holding that note id and records its release
// offset without deactivating it (release is a fade the voice graph itself
// decides to honor via remain-active).
type Allocator struct {
	voices []Voice
	clock  uint64 // bumped once per allocation, used to find "oldest"
	active []int  // reused ActiveIndices result, capacity maxVoices
}

// NewAllocator builds maxVoices persistent slots.
func NewAllocator(maxVoices int) *Allocator {
	return &Allocator{
		voices: make([]Voice, maxVoices),
		active: make([]int, 0, maxVoices),
	}
}

// Voices returns the persistent voice slots, ordered by slot index.
func (a *Allocator) Voices() []Voice { return a.voices }

// Voice returns a pointer to slot i's persistent state, allowing task
// functions' VoiceView to read it live and the executor to mutate it.
func (a *Allocator) Voice(i int) *Voice { return &a.voices[i] }

// Len returns the number of voice slots.
func (a *Allocator) Len() int { return len(a.voices) }

// AllocateForChunk resets every voice's per-chunk fields (carried voices
// start at offset 0; a voice released in an earlier chunk reports release
// sample 0, one not yet released reports this chunk's frame count), then
// applies the chunk's note events in timestamp order, converting timestamps
// to clamped sample offsets.
func (a *Allocator) AllocateForChunk(events []Event, sampleRate float64, frames int) {
	for i := range a.voices {
		v := &a.voices[i]
		v.ActivatedThisChunk = false
		v.ChunkOffsetSamples = 0
		if v.released {
			v.NoteReleaseSample = 0
		} else {
			v.NoteReleaseSample = int32(frames)
		}
	}

	for _, e := range events {
		offset := clampOffset(e.TimestampSec, sampleRate, frames)
		if e.NoteOn {
			a.noteOn(e.Note, e.Velocity, offset, int32(frames))
		} else {
			a.noteOff(e.Note, offset)
		}
	}
}

func clampOffset(timestampSec, sampleRate float64, frames int) int32 {
	if frames == 0 {
		return 0
	}
	s := int32(timestampSec*sampleRate + 0.5)
	if s < 0 {
		return 0
	}
	if int(s) >= frames {
		return int32(frames - 1)
	}
	return s
}

func (a *Allocator) noteOn(note int32, velocity float32, offset, frames int32) {
	slot := a.findInactive()
	if slot < 0 {
		slot = a.findOldestActive()
	}
	a.clock++
	v := &a.voices[slot]
	v.Active = true
	v.ActivatedThisChunk = true
	v.NoteID = note
	v.NoteVelocity = velocity
	v.ChunkOffsetSamples = offset
	v.NoteReleaseSample = frames
	v.released = false
	v.activatedAtChunkStep = a.clock
}

func (a *Allocator) noteOff(note int32, offset int32) {
	for i := range a.voices {
		v := &a.voices[i]
		if v.Active && !v.released && v.NoteID == note {
			v.released = true
			if v.NoteReleaseSample > offset {
				v.NoteReleaseSample = offset
			}
		}
	}
}

func (a *Allocator) findInactive() int {
	for i := range a.voices {
		if !a.voices[i].Active {
			return i
		}
	}
	return -1
}

func (a *Allocator) findOldestActive() int {
	oldest := -1
	var oldestStep uint64 = ^uint64(0)
	for i := range a.voices {
		if a.voices[i].Active && a.voices[i].activatedAtChunkStep < oldestStep {
			oldest = i
			oldestStep = a.voices[i].activatedAtChunkStep
		}
	}
	if oldest < 0 {
		oldest = 0
	}
	return oldest
}

// DisableVoice is called by the executor when a voice's graph reports
// remain-active=false.
func (a *Allocator) DisableVoice(i int) {
	a.voices[i].Active = false
}

// ActiveIndices returns the slot indices that are active this chunk, in
// ascending order, the iteration order that keeps voice accumulation
// deterministic. The returned slice is reused; it is valid only until the
// next ActiveIndices call.
func (a *Allocator) ActiveIndices() []int {
	a.active = a.active[:0]
	for i := range a.voices {
		if a.voices[i].Active {
			a.active = append(a.active, i)
		}
	}
	return a.active
}
