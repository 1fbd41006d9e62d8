package taskfn

import (
	"math"
	"testing"

	"github.com/wavelang/engine/pkg/dsp/delay"
	"github.com/wavelang/engine/pkg/dsp/dynamics"
	"github.com/wavelang/engine/pkg/dsp/envelope"
	"github.com/wavelang/engine/pkg/dsp/filter"
	"github.com/wavelang/engine/pkg/dsp/modulation"
	"github.com/wavelang/engine/pkg/dsp/oscillator"
	"github.com/wavelang/engine/pkg/graph"
)

// fakeCtx is a minimal graph.TaskContext for exercising one task function in
// isolation, without going through the executor.
type fakeCtx struct {
	sampleRate float64
	bufferSize int
	args       []graph.ResolvedArgument
	memory     []byte
	voice      fakeVoice
}

func (c *fakeCtx) SampleRate() float64                   { return c.sampleRate }
func (c *fakeCtx) BufferSize() int                       { return c.bufferSize }
func (c *fakeCtx) Arg(i int) graph.ResolvedArgument       { return c.args[i] }
func (c *fakeCtx) Memory() []byte                         { return c.memory }
func (c *fakeCtx) Voice() graph.VoiceView                 { return c.voice }
func (c *fakeCtx) Controller() graph.ControllerView       { return nil }
func (c *fakeCtx) Emit(graph.EventSeverity, string)       {}

type fakeVoice struct {
	releaseSample int32
}

func (v fakeVoice) NoteID() int32            { return 0 }
func (v fakeVoice) NoteVelocity() float32    { return 1 }
func (v fakeVoice) NoteReleaseSample() int32 { return v.releaseSample }

func constIn(v float32) graph.ResolvedArgument {
	return graph.ResolvedArgument{Kind: graph.ArgRealIn, IsConst: true, RealConst: v}
}

func bufIn(s []float32) graph.ResolvedArgument {
	return graph.ResolvedArgument{Kind: graph.ArgRealIn, RealBuf: s}
}

func bufOut(n int) graph.ResolvedArgument {
	return graph.ResolvedArgument{Kind: graph.ArgRealOut, RealBuf: make([]float32, n)}
}

func TestGainAppliesPerSample(t *testing.T) {
	ctx := &fakeCtx{
		bufferSize: 4,
		args:       []graph.ResolvedArgument{bufIn([]float32{1, 2, 3, 4}), constIn(0.5), bufOut(4)},
		voice:      fakeVoice{releaseSample: 4},
	}
	Gain(ctx)
	out := ctx.args[2].RealBuf
	want := []float32{0.5, 1, 1.5, 2}
	for i, v := range want {
		if out[i] != v {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestOscillatorSineProducesContinuousPhaseAcrossChunks(t *testing.T) {
	mem := make([]byte, sizeOf[oscillator.Oscillator]())
	ctx := &fakeCtx{
		sampleRate: 48000,
		bufferSize: 4,
		args:       []graph.ResolvedArgument{constIn(1000), bufOut(4)},
		memory:     mem,
		voice:      fakeVoice{releaseSample: 4},
	}
	oscillatorVoiceInitializer(ctx)
	OscillatorSine(ctx)
	first := append([]float32(nil), ctx.args[1].RealBuf...)

	ctx.args[1] = bufOut(4)
	OscillatorSine(ctx)
	second := ctx.args[1].RealBuf

	if first[3] == second[0] {
		t.Fatalf("expected phase to keep advancing across chunks, got a repeat at the boundary")
	}
	for _, v := range first {
		if math.Abs(float64(v)) > 1.0001 {
			t.Fatalf("sine sample out of range: %v", v)
		}
	}
}

func TestEnvelopeADSRReleasesWhenReleaseBoundaryFallsInChunk(t *testing.T) {
	mem := make([]byte, sizeOf[envelope.ADSR]())
	ctx := &fakeCtx{
		sampleRate: 48000,
		bufferSize: 8,
		args:       []graph.ResolvedArgument{constIn(0.001), constIn(0.001), constIn(0.8), constIn(0.05), bufOut(8)},
		memory:     mem,
		voice:      fakeVoice{releaseSample: 8}, // not released this chunk
	}
	envelopeVoiceInitializer(ctx)
	EnvelopeADSR(ctx)
	beforeRelease := ctx.args[4].RealBuf[7]

	ctx.voice = fakeVoice{releaseSample: 0} // released at the start of the next chunk
	ctx.args[4] = bufOut(8)
	EnvelopeADSR(ctx)
	afterRelease := ctx.args[4].RealBuf[7]

	if afterRelease >= beforeRelease {
		t.Fatalf("expected value to decay after release: before=%v after=%v", beforeRelease, afterRelease)
	}
}

func TestPanSplitsMonoToStereo(t *testing.T) {
	ctx := &fakeCtx{
		bufferSize: 2,
		args: []graph.ResolvedArgument{
			bufIn([]float32{1, 1}),
			constIn(0), // centered
			bufOut(2),
			bufOut(2),
		},
	}
	Pan(ctx)
	left := ctx.args[2].RealBuf
	right := ctx.args[3].RealBuf
	if left[0] != right[0] {
		t.Fatalf("centered pan should be equal on both channels: left=%v right=%v", left[0], right[0])
	}
}

func TestDryWetMixFullyWetEqualsWetSignal(t *testing.T) {
	ctx := &fakeCtx{
		bufferSize: 3,
		args: []graph.ResolvedArgument{
			bufIn([]float32{1, 1, 1}),
			bufIn([]float32{2, 2, 2}),
			constIn(1), // 100% wet
			bufOut(3),
		},
	}
	DryWetMix(ctx)
	for i, v := range ctx.args[3].RealBuf {
		if v != 2 {
			t.Fatalf("out[%d] = %v, want 2 (fully wet)", i, v)
		}
	}
}

func TestBiquadLowpassAttenuatesHighFrequency(t *testing.T) {
	mem := make([]byte, sizeOf[filter.Biquad]())
	const n = 256
	in := make([]float32, n)
	for i := range in {
		// Nyquist-adjacent tone: a lowpass well below it should attenuate hard.
		if i%2 == 0 {
			in[i] = 1
		} else {
			in[i] = -1
		}
	}
	ctx := &fakeCtx{
		sampleRate: 48000,
		bufferSize: n,
		args:       []graph.ResolvedArgument{bufIn(in), constIn(500), constIn(0.707), bufOut(n)},
		memory:     mem,
	}
	biquadVoiceInitializer(ctx)
	BiquadLowpass(ctx)
	out := ctx.args[3].RealBuf

	var inPeak, outPeak float32
	for i := n / 2; i < n; i++ {
		if v := abs32(in[i]); v > inPeak {
			inPeak = v
		}
		if v := abs32(out[i]); v > outPeak {
			outPeak = v
		}
	}
	if outPeak >= inPeak {
		t.Fatalf("expected lowpass to attenuate a near-Nyquist tone: in peak=%v out peak=%v", inPeak, outPeak)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestDelayLineDelaysBySampleCount(t *testing.T) {
	mem := make([]byte, sizeOf[delay.Line]())
	ctx := &fakeCtx{
		sampleRate: 48000,
		bufferSize: 1,
		args:       []graph.ResolvedArgument{bufIn([]float32{0}), constIn(1), constIn(0), bufOut(1)},
		memory:     mem,
	}
	delayVoiceInitializer(ctx)

	const delaySamples = 4
	ctx.args[2] = constIn(delaySamples)

	var lastNonZeroAt = -1
	for i := 0; i < delaySamples+2; i++ {
		in := float32(0)
		if i == 0 {
			in = 1
		}
		ctx.args[0] = bufIn([]float32{in})
		ctx.args[3] = bufOut(1)
		DelayLine(ctx)
		if ctx.args[3].RealBuf[0] != 0 {
			lastNonZeroAt = i
		}
	}
	if lastNonZeroAt < delaySamples {
		t.Fatalf("expected the impulse to reappear at or after sample %d, last saw it at %d", delaySamples, lastNonZeroAt)
	}
}

func TestCompressorProcessReducesGainAboveThreshold(t *testing.T) {
	mem := make([]byte, sizeOf[dynamics.Compressor]())
	const n = 64
	in := make([]float32, n)
	for i := range in {
		in[i] = 1 // well above a -20dB threshold
	}
	ctx := &fakeCtx{
		sampleRate: 48000,
		bufferSize: n,
		args: []graph.ResolvedArgument{
			bufIn(in), constIn(-20), constIn(4), constIn(0.001), constIn(0.05), bufOut(n),
		},
		memory: mem,
	}
	compressorVoiceInitializer(ctx)
	CompressorProcess(ctx)
	out := ctx.args[5].RealBuf
	if out[n-1] >= in[n-1] {
		t.Fatalf("expected compressor to reduce gain above threshold, got out=%v in=%v", out[n-1], in[n-1])
	}
}

func TestLFOTremoloModulatesAmplitude(t *testing.T) {
	mem := make([]byte, sizeOf[modulation.LFO]())
	const n = 512
	in := make([]float32, n)
	for i := range in {
		in[i] = 1
	}
	ctx := &fakeCtx{
		sampleRate: 48000,
		bufferSize: n,
		args:       []graph.ResolvedArgument{bufIn(in), constIn(100), constIn(1), bufOut(n)},
		memory:     mem,
	}
	lfoVoiceInitializer(ctx)
	LFOTremolo(ctx)
	out := ctx.args[3].RealBuf

	var min, max float32 = out[0], out[0]
	for _, v := range out {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max-min < 0.1 {
		t.Fatalf("expected tremolo to vary output amplitude over the buffer, got range [%v, %v]", min, max)
	}
}
