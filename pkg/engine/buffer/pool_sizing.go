package buffer

import "github.com/wavelang/engine/pkg/graph"

// PoolSizingInput bundles the figures ComputePoolSpecs needs from the
// runtime instrument and the engine settings.
type PoolSizingInput struct {
	VoiceGraph         graph.Graph // nil if absent
	FxGraph            graph.Graph // nil if absent
	MaxVoices          int
	OutputChannelCount int
	MaxBufferSize      int
}

// audioOutputCount is the number of signal-carrying outputs: everything
// except the remain-active output, which never materializes an audio
// buffer of its own.
func audioOutputCount(g graph.Graph) int {
	n := g.OutputCount()
	if g.RemainActiveOutputIndex() >= 0 {
		n--
	}
	return n
}

// ComputePoolSpecs sizes each primitive's free list: sum each stage's
// max buffer concurrency per primitive, then add the reserve buffers for
// constant outputs, aliased outputs, voice accumulation and channel-mix
// scratch.
func ComputePoolSpecs(in PoolSizingInput) []PoolSpec {
	totals := make(map[graph.Primitive]int)

	addGraph := func(g graph.Graph) {
		if g == nil {
			return
		}
		for _, p := range []graph.Primitive{graph.PrimitiveReal, graph.PrimitiveBool} {
			totals[p] += g.MaxBufferConcurrency(p)
		}
		remainIdx := g.RemainActiveOutputIndex()
		for i, out := range g.Outputs() {
			if i == remainIdx {
				continue
			}
			if out.IsConstant {
				totals[graph.PrimitiveReal]++
			}
			if out.SharesBufferWithOutput {
				totals[graph.PrimitiveReal]++
			}
		}
	}

	addGraph(in.VoiceGraph)
	addGraph(in.FxGraph)

	if in.VoiceGraph != nil && in.MaxVoices > 1 {
		totals[graph.PrimitiveReal] += audioOutputCount(in.VoiceGraph)
	}

	hostChannelMismatch := false
	if in.VoiceGraph != nil && audioOutputCount(in.VoiceGraph) != in.OutputChannelCount {
		hostChannelMismatch = true
	}
	if in.FxGraph != nil && audioOutputCount(in.FxGraph) != in.OutputChannelCount {
		hostChannelMismatch = true
	}
	if hostChannelMismatch {
		totals[graph.PrimitiveReal] += in.OutputChannelCount
	}

	// Always reserve at least one buffer per primitive actually used so a
	// degenerate (empty) graph still has somewhere to materialize a
	// constant output.
	if totals[graph.PrimitiveReal] == 0 {
		totals[graph.PrimitiveReal] = 1
	}

	specs := make([]PoolSpec, 0, len(totals))
	for p, count := range totals {
		if count == 0 {
			continue
		}
		specs = append(specs, PoolSpec{Primitive: p, BufferSize: in.MaxBufferSize, Count: count})
	}
	return specs
}
