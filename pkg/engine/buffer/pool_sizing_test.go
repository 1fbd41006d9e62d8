package buffer

import (
	"testing"

	"github.com/wavelang/engine/pkg/graph"
)

func specFor(specs []PoolSpec, p graph.Primitive) PoolSpec {
	for _, s := range specs {
		if s.Primitive == p {
			return s
		}
	}
	return PoolSpec{}
}

func buildGraph(realBuffers, outputs int) graph.Graph {
	b := graph.NewGraphBuilder()
	bufs := make([]int, realBuffers)
	for i := range bufs {
		bufs[i] = b.DeclareBuffer(graph.PrimitiveReal)
	}
	for i := 0; i < outputs; i++ {
		b.AddBufferOutput(bufs[i%realBuffers])
	}
	return b.Build()
}

func TestComputePoolSpecsSingleVoiceMatchingChannels(t *testing.T) {
	g := buildGraph(2, 2)
	specs := ComputePoolSpecs(PoolSizingInput{
		VoiceGraph:         g,
		MaxVoices:          1,
		OutputChannelCount: 2,
		MaxBufferSize:      64,
	})

	// max_voices = 1 and matching channel counts: no accumulation or
	// channel-mix reserve, just the graph's own concurrency bound.
	real := specFor(specs, graph.PrimitiveReal)
	if real.Count != 2 {
		t.Fatalf("real pool count = %d, want 2 (concurrency only)", real.Count)
	}
	if real.BufferSize != 64 {
		t.Fatalf("real pool buffer size = %d, want 64", real.BufferSize)
	}
}

func TestComputePoolSpecsReservesVoiceAccumulation(t *testing.T) {
	g := buildGraph(2, 2)
	specs := ComputePoolSpecs(PoolSizingInput{
		VoiceGraph:         g,
		MaxVoices:          4,
		OutputChannelCount: 2,
		MaxBufferSize:      64,
	})

	real := specFor(specs, graph.PrimitiveReal)
	if real.Count != 4 {
		t.Fatalf("real pool count = %d, want 4 (2 concurrency + 2 accumulation targets)", real.Count)
	}
}

func TestComputePoolSpecsReservesChannelMixScratch(t *testing.T) {
	g := buildGraph(1, 1)
	specs := ComputePoolSpecs(PoolSizingInput{
		VoiceGraph:         g,
		MaxVoices:          1,
		OutputChannelCount: 2,
		MaxBufferSize:      64,
	})

	real := specFor(specs, graph.PrimitiveReal)
	if real.Count != 3 {
		t.Fatalf("real pool count = %d, want 3 (1 concurrency + 2 channel-mix scratch)", real.Count)
	}
}

func TestComputePoolSpecsReservesForConstantAndSharedOutputs(t *testing.T) {
	b := graph.NewGraphBuilder()
	buf := b.DeclareBuffer(graph.PrimitiveReal)
	b.AddBufferOutput(buf)
	b.AddBufferOutput(buf) // aliases the first: both get marked shared
	b.AddOutput(0.5)       // constant output needs a materialization buffer
	g := b.Build()

	specs := ComputePoolSpecs(PoolSizingInput{
		VoiceGraph:         g,
		MaxVoices:          1,
		OutputChannelCount: 3,
		MaxBufferSize:      8,
	})

	// 1 concurrency + 2 shared-output copies + 1 constant materialization;
	// output count (3) matches the host channel count so no mix scratch.
	real := specFor(specs, graph.PrimitiveReal)
	if real.Count != 4 {
		t.Fatalf("real pool count = %d, want 4", real.Count)
	}
}

func TestComputePoolSpecsEmptyGraphStillGetsARealBuffer(t *testing.T) {
	g := graph.NewGraphBuilder().Build()
	specs := ComputePoolSpecs(PoolSizingInput{
		FxGraph:            g,
		OutputChannelCount: 1,
		MaxBufferSize:      8,
	})
	real := specFor(specs, graph.PrimitiveReal)
	if real.Count < 1 {
		t.Fatalf("real pool count = %d, want at least 1 for a degenerate graph", real.Count)
	}
}
