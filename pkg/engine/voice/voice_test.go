package voice

import "testing"

func TestNoteOnClaimsLowestInactiveSlot(t *testing.T) {
	a := NewAllocator(4)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 60, Velocity: 1}}, 48000, 512)

	active := a.ActiveIndices()
	if len(active) != 1 || active[0] != 0 {
		t.Fatalf("ActiveIndices() = %v, want [0]", active)
	}
	if got := a.Voice(0).NoteID; got != 60 {
		t.Fatalf("NoteID = %d, want 60", got)
	}
}

func TestNoteOnStealsOldestWhenFull(t *testing.T) {
	a := NewAllocator(2)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 1}}, 48000, 512)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 2}}, 48000, 512)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 3}}, 48000, 512)

	active := a.ActiveIndices()
	if len(active) != 2 {
		t.Fatalf("expected 2 active voices, got %d", len(active))
	}
	notes := map[int32]bool{}
	for _, i := range active {
		notes[a.Voice(i).NoteID] = true
	}
	if notes[1] {
		t.Fatalf("expected the oldest voice (note 1) to have been stolen")
	}
	if !notes[2] || !notes[3] {
		t.Fatalf("expected notes 2 and 3 to remain active, got %v", notes)
	}
}

func TestNoteOffRecordsReleaseWithoutDeactivating(t *testing.T) {
	a := NewAllocator(2)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 60}}, 48000, 512)
	a.AllocateForChunk([]Event{{TimestampSec: 0.002, NoteOn: false, Note: 60}}, 48000, 512)

	v := a.Voice(0)
	if !v.Active {
		t.Fatalf("expected voice to remain active after note-off (fades honor remain-active)")
	}
	if v.NoteReleaseSample != 96 {
		t.Fatalf("NoteReleaseSample = %d, want 96 (0.002s * 48000)", v.NoteReleaseSample)
	}
}

func TestCarriedVoiceOffsetResetsToZero(t *testing.T) {
	a := NewAllocator(1)
	// Mid-chunk trigger: sample 256 of a 512-frame, 48kHz chunk.
	a.AllocateForChunk([]Event{{TimestampSec: 256.0 / 48000.0, NoteOn: true, Note: 60}}, 48000, 512)
	if got := a.Voice(0).ChunkOffsetSamples; got != 256 {
		t.Fatalf("ChunkOffsetSamples = %d on the trigger chunk, want 256", got)
	}

	a.AllocateForChunk(nil, 48000, 512)
	if got := a.Voice(0).ChunkOffsetSamples; got != 0 {
		t.Fatalf("ChunkOffsetSamples = %d on a carried chunk, want 0", got)
	}
}

func TestReleaseReportsZeroOnLaterChunks(t *testing.T) {
	a := NewAllocator(1)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 60}}, 48000, 512)
	a.AllocateForChunk([]Event{{TimestampSec: 0.002, NoteOn: false, Note: 60}}, 48000, 512)
	if got := a.Voice(0).NoteReleaseSample; got != 96 {
		t.Fatalf("NoteReleaseSample = %d on the release chunk, want 96", got)
	}

	a.AllocateForChunk(nil, 48000, 512)
	if got := a.Voice(0).NoteReleaseSample; got != 0 {
		t.Fatalf("NoteReleaseSample = %d on the chunk after release, want 0", got)
	}
}

func TestUnreleasedVoiceReportsChunkFrames(t *testing.T) {
	a := NewAllocator(1)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 60}}, 48000, 512)
	a.AllocateForChunk(nil, 48000, 128)
	if got := a.Voice(0).NoteReleaseSample; got != 128 {
		t.Fatalf("NoteReleaseSample = %d for an unreleased voice in a 128-frame chunk, want 128", got)
	}
}

func TestClampOffsetHandlesZeroFrames(t *testing.T) {
	a := NewAllocator(1)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 1}}, 48000, 0)
	if got := a.Voice(0).ChunkOffsetSamples; got != 0 {
		t.Fatalf("ChunkOffsetSamples = %d, want 0 for a zero-frame chunk", got)
	}
}

func TestDisableVoiceFreesSlotForReuse(t *testing.T) {
	a := NewAllocator(1)
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 1}}, 48000, 512)
	a.DisableVoice(0)
	if a.Voice(0).Active {
		t.Fatalf("expected voice to be inactive after DisableVoice")
	}
	a.AllocateForChunk([]Event{{NoteOn: true, Note: 2}}, 48000, 512)
	if got := a.Voice(0).NoteID; got != 2 {
		t.Fatalf("expected the freed slot to be reused, got note %d", got)
	}
}

func TestActiveIndicesAscending(t *testing.T) {
	a := NewAllocator(4)
	a.AllocateForChunk([]Event{
		{NoteOn: true, Note: 1},
		{NoteOn: true, Note: 2},
		{NoteOn: true, Note: 3},
	}, 48000, 512)
	active := a.ActiveIndices()
	for i := 1; i < len(active); i++ {
		if active[i-1] >= active[i] {
			t.Fatalf("ActiveIndices() not ascending: %v", active)
		}
	}
}
