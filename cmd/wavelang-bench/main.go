// Command wavelang-bench is a minimal standalone driver for the execution
// engine: it builds a small voice+FX instrument entirely out of the task
// functions in pkg/engine/taskfn, drives it for a fixed number of chunks as
// a free-running oscillator, and reports throughput. It stands in for the
// real audio/MIDI driver shims a production host would supply.
package main

import (
	"flag"
	"fmt"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/wavelang/engine/pkg/cpuspec"
	"github.com/wavelang/engine/pkg/engine"
	"github.com/wavelang/engine/pkg/engine/controller"
	"github.com/wavelang/engine/pkg/engine/mixer"
	"github.com/wavelang/engine/pkg/engine/taskfn"
	"github.com/wavelang/engine/pkg/graph"
	"github.com/wavelang/engine/pkg/instrument"
)

func main() {
	chunks := flag.Int("chunks", 200, "number of chunks to render")
	frames := flag.Int("frames", 512, "frames per chunk")
	voices := flag.Int("voices", 8, "max concurrent voices")
	threads := flag.Int("threads", -1, "worker thread count; -1 auto-detects from CPU topology")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Sugar().Infof(format, args...)
	}))
	if err != nil {
		logger.Warn("maxprocs: failed to adjust GOMAXPROCS", zap.Error(err))
	} else {
		defer undo()
	}

	threadCount := *threads
	if threadCount < 0 {
		spec := cpuspec.Detect()
		threadCount = spec.OptimalThreadCount()
		logger.Info("detected CPU topology",
			zap.String("brand", spec.BrandName),
			zap.Int("physical_cores", spec.PhysicalCores),
			zap.Int("logical_cores", spec.LogicalCores),
			zap.Int("chosen_thread_count", threadCount))
	}

	lib := graph.NewLibrary()
	idx := taskfn.RegisterAll(lib)

	const sampleRate = 48000.0
	voiceGraph := buildVoiceGraph(idx)
	fxGraph := buildFxGraph(idx)

	// The driver-side event feed: a single note-on at the very start, the
	// way a MIDI shim would hand the engine its per-chunk event batch.
	delivered := false
	processEvents := func(queue []controller.Event, bufferTimeSec, durationSec float64) int {
		if delivered {
			return 0
		}
		delivered = true
		queue[0] = controller.Event{TimestampSec: 0, Kind: controller.KindNoteOn, Note: 60, Velocity: 1}
		return 1
	}

	exec := engine.New(lib)
	err = exec.Initialize(engine.Settings{
		RuntimeInstrument: instrument.RuntimeInstrument{
			VoiceGraph: voiceGraph,
			FxGraph:    fxGraph,
			MaxVoices:  *voices,
		},
		ThreadCount:              threadCount,
		SampleRate:               sampleRate,
		MaxBufferSize:            *frames,
		OutputChannelCount:       2,
		ControllerEventQueueSize: 64,
		MaxControllerParameters:  16,
		ProcessControllerEvents:  processEvents,
		EventConsoleEnabled:      true,
		ProfilingEnabled:         true,
		ProfilingThreshold:       0.8,
	})
	if err != nil {
		logger.Fatal("initialize failed", zap.Error(err))
	}
	defer exec.Shutdown()

	out := make([]float32, *frames*2)
	start := time.Now()
	for i := 0; i < *chunks; i++ {
		chunk := engine.ChunkContext{
			SampleRate:         sampleRate,
			Frames:             *frames,
			BufferTimeSec:      float64(i) * float64(*frames) / sampleRate,
			OutputChannelCount: 2,
			OutputFormat:       mixer.Float32,
			OutputBuffer:       out,
		}
		if err := exec.Execute(chunk); err != nil {
			logger.Fatal("execute failed", zap.Error(err))
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("rendered %d chunks (%d frames each) in %s — %.1f chunks/sec\n",
		*chunks, *frames, elapsed, float64(*chunks)/elapsed.Seconds())
}

// buildVoiceGraph wires oscillator -> envelope -> pan into a stereo voice
// output. It declares no remain-active output, so the graph reports every
// voice as still active on every chunk.
func buildVoiceGraph(idx taskfn.Indices) *graph.StaticGraph {
	b := graph.NewGraphBuilder()

	oscOut := b.DeclareBuffer(graph.PrimitiveReal)
	envOut := b.DeclareBuffer(graph.PrimitiveReal)
	gainOut := b.DeclareBuffer(graph.PrimitiveReal)
	left := b.DeclareBuffer(graph.PrimitiveReal)
	right := b.DeclareBuffer(graph.PrimitiveReal)

	// AddTask assigns sequential indices, so the successor lists below
	// reference the index each later call is about to receive: osc (0) and
	// envelope (1) both feed gain (2), which feeds pan (3).
	const (
		oscTaskIdx  = 0
		envTaskIdx  = 1
		gainTaskIdx = 2
		panTaskIdx  = 3
	)

	b.AddTask(idx.OscillatorSine, []graph.Argument{
		constReal(220),
		outBuf(oscOut),
	}, 0, []int{gainTaskIdx})

	b.AddTask(idx.EnvelopeADSR, []graph.Argument{
		constReal(0.01), constReal(0.2), constReal(0.7), constReal(0.3),
		outBuf(envOut),
	}, 0, []int{gainTaskIdx})

	b.AddTask(idx.Gain, []graph.Argument{
		bufIn(oscOut), bufIn(envOut), outBuf(gainOut),
	}, 2, []int{panTaskIdx})

	b.AddTask(idx.Pan, []graph.Argument{
		bufIn(gainOut), constReal(0), outBuf(left), outBuf(right),
	}, 1, nil)

	b.AddBufferOutput(left)
	b.AddBufferOutput(right)

	return b.Build()
}

// buildFxGraph applies a fixed -6dB trim to the voice-summed stereo signal.
// SeedFxInput publishes the voice accumulation into buffer indices 0 and 1,
// matching the two declared input buffers here.
func buildFxGraph(idx taskfn.Indices) *graph.StaticGraph {
	b := graph.NewGraphBuilder()

	inLeft := b.DeclareBuffer(graph.PrimitiveReal)
	inRight := b.DeclareBuffer(graph.PrimitiveReal)
	outLeft := b.DeclareBuffer(graph.PrimitiveReal)
	outRight := b.DeclareBuffer(graph.PrimitiveReal)

	b.AddTask(idx.Gain, []graph.Argument{
		bufIn(inLeft), constReal(0.5), outBuf(outLeft),
	}, 0, nil)
	b.AddTask(idx.Gain, []graph.Argument{
		bufIn(inRight), constReal(0.5), outBuf(outRight),
	}, 0, nil)

	b.AddBufferOutput(outLeft)
	b.AddBufferOutput(outRight)

	return b.Build()
}

func constReal(v float32) graph.Argument {
	return graph.Argument{Kind: graph.ArgRealIn, Scalar: graph.ElementRef{ConstReal: v}}
}

func bufIn(i int) graph.Argument {
	return graph.Argument{Kind: graph.ArgRealIn, Scalar: graph.ElementRef{IsBuffer: true, BufferIndex: i}}
}

func outBuf(i int) graph.Argument {
	return graph.Argument{Kind: graph.ArgRealOut, Scalar: graph.ElementRef{IsBuffer: true, BufferIndex: i}}
}
