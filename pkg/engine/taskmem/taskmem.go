// Package taskmem implements the engine's task memory manager: a single
// contiguous arena sliced per (stage, task, voice), zeroed once at
// initialize and handed out as disjoint byte windows that persist across
// chunks for the lifetime of the engine.
package taskmem

// alignment is the byte boundary every task's memory window starts on.
const alignment = 64

// Layout describes one stage's memory requirements before the arena is
// allocated: per-task byte sizes plus how many voice copies each task
// needs (1 for the FX stage, max_voices for the voice stage).
type Layout struct {
	TaskSizes  []int
	VoiceCount int
}

// Manager owns the backing arena and the table mapping (task, voice) to a
// byte window within it, for one stage. The executor keeps one Manager per
// stage (voice, FX).
type Manager struct {
	arena  []byte
	offset [][]int // offset[task][voice]
	size   []int   // size[task]
}

// New allocates the arena for a stage and precomputes every (task, voice)
// window's offset, aligning each task's region (across all its voice
// copies) to alignment bytes.
func New(layout Layout) *Manager {
	m := &Manager{
		offset: make([][]int, len(layout.TaskSizes)),
		size:   make([]int, len(layout.TaskSizes)),
	}

	voices := layout.VoiceCount
	if voices < 1 {
		voices = 1
	}

	cursor := 0
	for t, size := range layout.TaskSizes {
		m.size[t] = size
		perVoice := alignUp(size, alignment)
		m.offset[t] = make([]int, voices)
		for v := 0; v < voices; v++ {
			m.offset[t][v] = cursor
			cursor += perVoice
		}
	}

	m.arena = make([]byte, cursor) // zero-initialized by Go's allocator
	return m
}

func alignUp(n, align int) int {
	if n == 0 {
		// Still reserve alignment bytes so every task, even one with no
		// persistent state, gets a distinct non-overlapping window other
		// code can safely slice (and so the "first call" zero-flag
		// convention has somewhere to live if a task turns out to need
		// one bytes of memory later without resizing the arena layout).
		return align
	}
	return ((n + align - 1) / align) * align
}

// Slice returns the persistent byte window for (task, voice). voice is
// ignored (always window 0) for stages with VoiceCount <= 1, i.e. the FX
// stage.
func (m *Manager) Slice(task, voice int) []byte {
	voices := len(m.offset[task])
	if voice >= voices {
		voice = 0
	}
	start := m.offset[task][voice]
	return m.arena[start : start+m.size[task]]
}

// ArenaSize reports the total bytes reserved, for diagnostics and tests.
func (m *Manager) ArenaSize() int {
	return len(m.arena)
}
