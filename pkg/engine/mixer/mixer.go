// Package mixer implements the N-to-M channel mixing policy and the
// sample-format convert-and-interleave stage that turns channel buffers
// into the driver's output slab.
package mixer

// Source is one channel's worth of samples as the mixer sees it: either a
// real slice, or a constant broadcast across frames.
type Source struct {
	Samples  []float32
	Constant bool
}

func (s Source) at(i int) float32 {
	if s.Constant {
		return s.Samples[0]
	}
	return s.Samples[i]
}

// Mix applies the N-to-M channel policy. Callers take the cheaper swap path
// themselves when N == M; Mix is only invoked for the remaining cases:
//   - 1 input, M outputs: copy the single buffer to every output.
//   - N inputs, 1 output: sum then multiply by 1/N.
//   - any other N, M: zero every output (placeholder policy, see DESIGN.md).
func Mix(inputs []Source, outputs [][]float32, frames int) {
	n := len(inputs)
	m := len(outputs)

	switch {
	case n == 1 && m >= 1:
		for ch := 0; ch < m; ch++ {
			for i := 0; i < frames; i++ {
				outputs[ch][i] = inputs[0].at(i)
			}
		}
	case m == 1 && n >= 1:
		inv := float32(1.0 / float64(n))
		out := outputs[0]
		for i := 0; i < frames; i++ {
			var sum float32
			for _, in := range inputs {
				sum += in.at(i)
			}
			out[i] = sum * inv
		}
	default:
		for ch := 0; ch < m; ch++ {
			for i := range outputs[ch] {
				outputs[ch][i] = 0
			}
		}
	}
}

// SampleFormat identifies the driver's wire format for convert-and-
// interleave. Float32 is the only format drivers currently request.
type SampleFormat int

const (
	Float32 SampleFormat = iota
)

// InterleaveFloat32 converts channel-major buffers into a frame-major,
// interleaved slab: out[frame*channels+channel]. Constant-flagged channels
// are broadcast to every frame without being materialized first.
func InterleaveFloat32(channels []Source, frames int, out []float32) {
	numCh := len(channels)
	for frame := 0; frame < frames; frame++ {
		base := frame * numCh
		for ch := 0; ch < numCh; ch++ {
			out[base+ch] = channels[ch].at(frame)
		}
	}
}
