// Package taskfn registers the concrete task functions a compiled WaveLang
// graph's FunctionIndex resolves to: thin graph.TaskFunction adapters over
// the stateless pkg/dsp helpers, plus the handful of stateful generators
// (oscillator, envelope) that need a per-voice memory slice.
package taskfn

import (
	"unsafe"

	"github.com/wavelang/engine/pkg/dsp/delay"
	"github.com/wavelang/engine/pkg/dsp/dynamics"
	"github.com/wavelang/engine/pkg/dsp/envelope"
	"github.com/wavelang/engine/pkg/dsp/filter"
	"github.com/wavelang/engine/pkg/dsp/gain"
	"github.com/wavelang/engine/pkg/dsp/mix"
	"github.com/wavelang/engine/pkg/dsp/modulation"
	"github.com/wavelang/engine/pkg/dsp/oscillator"
	"github.com/wavelang/engine/pkg/dsp/pan"
	"github.com/wavelang/engine/pkg/graph"
)

// memoryAs reinterprets a task's persistent memory slice as *T without
// copying. Callers are responsible for sizing Memory() with sizeOf[T]() in
// MemoryQuery.
func memoryAs[T any](b []byte) *T {
	return (*T)(unsafe.Pointer(&b[0]))
}

// sizeOf reports the byte size a MemoryQuery callback should reserve for T.
func sizeOf[T any]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func readReal(ra graph.ResolvedArgument, i int) float32 {
	if ra.IsConst {
		return ra.RealConst
	}
	return ra.RealBuf[i]
}

// Indices is the set of task-function registry indices RegisterAll hands
// back, for graph builders to reference by name instead of magic numbers.
type Indices struct {
	Gain           int
	OscillatorSine int
	EnvelopeADSR   int
	Pan            int
	DryWetMix      int
	BiquadLowpass  int
	DelayLine      int
	Compressor     int
	LFOTremolo     int
}

// RegisterAll registers every task function this package provides and
// returns their library indices.
func RegisterAll(lib *graph.Library) Indices {
	return Indices{
		Gain:           lib.Register(graph.TaskFunction{Name: "gain", Function: Gain}),
		OscillatorSine: lib.Register(graph.TaskFunction{Name: "oscillator_sine", MemoryQuery: oscillatorMemoryQuery, VoiceInitializer: oscillatorVoiceInitializer, Function: OscillatorSine}),
		EnvelopeADSR:   lib.Register(graph.TaskFunction{Name: "envelope_adsr", MemoryQuery: envelopeMemoryQuery, VoiceInitializer: envelopeVoiceInitializer, Function: EnvelopeADSR}),
		Pan:            lib.Register(graph.TaskFunction{Name: "pan", Function: Pan}),
		DryWetMix:      lib.Register(graph.TaskFunction{Name: "dry_wet_mix", Function: DryWetMix}),
		BiquadLowpass:  lib.Register(graph.TaskFunction{Name: "biquad_lowpass", MemoryQuery: biquadMemoryQuery, VoiceInitializer: biquadVoiceInitializer, Function: BiquadLowpass}),
		DelayLine:      lib.Register(graph.TaskFunction{Name: "delay_line", MemoryQuery: delayMemoryQuery, VoiceInitializer: delayVoiceInitializer, Function: DelayLine}),
		Compressor:     lib.Register(graph.TaskFunction{Name: "compressor", MemoryQuery: compressorMemoryQuery, VoiceInitializer: compressorVoiceInitializer, Function: CompressorProcess}),
		LFOTremolo:     lib.Register(graph.TaskFunction{Name: "lfo_tremolo", MemoryQuery: lfoMemoryQuery, VoiceInitializer: lfoVoiceInitializer, Function: LFOTremolo}),
	}
}

// Gain implements args (in, gain) -> out as out[i] = gain.Apply(in[i], g[i]),
// grounded on pkg/dsp/gain's per-sample Apply.
func Gain(ctx graph.TaskContext) {
	in := ctx.Arg(0)
	g := ctx.Arg(1)
	out := ctx.Arg(2).RealBuf
	n := ctx.BufferSize()
	for i := 0; i < n; i++ {
		out[i] = gain.Apply(readReal(in, i), readReal(g, i))
	}
}

func oscillatorMemoryQuery(ctx graph.TaskContext) int {
	return sizeOf[oscillator.Oscillator]()
}

// oscillatorVoiceInitializer constructs a fresh oscillator at voice-trigger
// time, reading the frequency constant (args[0]) to seed it.
func oscillatorVoiceInitializer(ctx graph.TaskContext) {
	freq := float64(readReal(ctx.Arg(0), 0))
	osc := oscillator.New(ctx.SampleRate())
	osc.SetFrequency(freq)
	*memoryAs[oscillator.Oscillator](ctx.Memory()) = *osc
}

// OscillatorSine implements args (frequency) -> out, generating a
// continuously-phased sine wave across chunk boundaries via its persistent
// per-voice memory.
func OscillatorSine(ctx graph.TaskContext) {
	osc := memoryAs[oscillator.Oscillator](ctx.Memory())
	out := ctx.Arg(1).RealBuf
	osc.ProcessSine(out[:ctx.BufferSize()])
}

func envelopeMemoryQuery(ctx graph.TaskContext) int {
	return sizeOf[envelope.ADSR]()
}

// envelopeVoiceInitializer constructs a fresh ADSR at voice-trigger time and
// immediately triggers its attack stage, reading args (attack, decay,
// sustain, release) in seconds/0-1.
func envelopeVoiceInitializer(ctx graph.TaskContext) {
	a := float64(readReal(ctx.Arg(0), 0))
	d := float64(readReal(ctx.Arg(1), 0))
	s := float64(readReal(ctx.Arg(2), 0))
	r := float64(readReal(ctx.Arg(3), 0))
	env := envelope.New(ctx.SampleRate())
	env.SetADSR(a, d, s, r)
	env.Trigger()
	*memoryAs[envelope.ADSR](ctx.Memory()) = *env
}

// EnvelopeADSR implements args (attack, decay, sustain, release) -> out,
// releasing once per chunk when the voice's release boundary falls inside
// it. A release landing mid-buffer is honored from that chunk forward
// rather than sample-accurately within the buffer.
func EnvelopeADSR(ctx graph.TaskContext) {
	env := memoryAs[envelope.ADSR](ctx.Memory())
	n := ctx.BufferSize()
	if int(ctx.Voice().NoteReleaseSample()) < n {
		env.Release()
	}
	out := ctx.Arg(4).RealBuf
	env.Process(out[:n])
}

// Pan implements args (mono, pan) -> (left, right), grounded on
// pkg/dsp/pan's constant-power Process.
func Pan(ctx graph.TaskContext) {
	mono := ctx.Arg(0).RealBuf
	p := readReal(ctx.Arg(1), 0)
	left := ctx.Arg(2).RealBuf
	right := ctx.Arg(3).RealBuf
	n := ctx.BufferSize()
	pan.Process(mono[:n], p, pan.ConstantPower, left[:n], right[:n])
}

// DryWetMix implements args (dry, wet, amount) -> out, grounded on
// pkg/dsp/mix's DryWetBufferTo.
func DryWetMix(ctx graph.TaskContext) {
	dry := ctx.Arg(0).RealBuf
	wet := ctx.Arg(1).RealBuf
	amount := readReal(ctx.Arg(2), 0)
	out := ctx.Arg(3).RealBuf
	n := ctx.BufferSize()
	mix.DryWetBufferTo(dry[:n], wet[:n], amount, out[:n])
}

func biquadMemoryQuery(ctx graph.TaskContext) int {
	return sizeOf[filter.Biquad]()
}

// biquadVoiceInitializer builds a single-channel lowpass biquad, reading
// args (_, cutoffHz, q, _) — indices must line up with BiquadLowpass below.
func biquadVoiceInitializer(ctx graph.TaskContext) {
	cutoff := float64(readReal(ctx.Arg(1), 0))
	q := float64(readReal(ctx.Arg(2), 0))
	bq := filter.NewBiquad(1)
	bq.SetLowpass(ctx.SampleRate(), cutoff, q)
	*memoryAs[filter.Biquad](ctx.Memory()) = *bq
}

// BiquadLowpass implements args (in, cutoffHz, q) -> out, grounded on
// pkg/dsp/filter's Biquad.Process (in place, so out is copied from in
// first since Process mutates its buffer argument).
func BiquadLowpass(ctx graph.TaskContext) {
	bq := memoryAs[filter.Biquad](ctx.Memory())
	in := ctx.Arg(0).RealBuf
	out := ctx.Arg(3).RealBuf
	n := ctx.BufferSize()
	copy(out[:n], in[:n])
	bq.Process(out[:n], 0)
}

func delayMemoryQuery(ctx graph.TaskContext) int {
	return sizeOf[delay.Line]()
}

// delayVoiceInitializer builds a delay line sized from args
// (_, maxDelaySeconds, _, _) — indices must line up with DelayLine below.
func delayVoiceInitializer(ctx graph.TaskContext) {
	maxDelay := float64(readReal(ctx.Arg(1), 0))
	line := delay.New(maxDelay, ctx.SampleRate())
	*memoryAs[delay.Line](ctx.Memory()) = *line
}

// DelayLine implements args (in, maxDelaySeconds, delaySamples) -> out,
// grounded on pkg/dsp/delay's Line.Process.
func DelayLine(ctx graph.TaskContext) {
	line := memoryAs[delay.Line](ctx.Memory())
	in := ctx.Arg(0).RealBuf
	delaySamples := float64(readReal(ctx.Arg(2), 0))
	out := ctx.Arg(3).RealBuf
	n := ctx.BufferSize()
	for i := 0; i < n; i++ {
		out[i] = line.Process(in[i], delaySamples)
	}
}

func compressorMemoryQuery(ctx graph.TaskContext) int {
	return sizeOf[dynamics.Compressor]()
}

// compressorVoiceInitializer builds a compressor reading args
// (_, thresholdDb, ratio, attackSec, releaseSec, _) — indices must line up
// with CompressorProcess below.
func compressorVoiceInitializer(ctx graph.TaskContext) {
	threshold := float64(readReal(ctx.Arg(1), 0))
	ratio := float64(readReal(ctx.Arg(2), 0))
	attack := float64(readReal(ctx.Arg(3), 0))
	release := float64(readReal(ctx.Arg(4), 0))
	c := dynamics.NewCompressor(ctx.SampleRate())
	c.SetThreshold(threshold)
	c.SetRatio(ratio)
	c.SetAttack(attack)
	c.SetRelease(release)
	*memoryAs[dynamics.Compressor](ctx.Memory()) = *c
}

// CompressorProcess implements args (in, thresholdDb, ratio, attackSec,
// releaseSec) -> out, grounded on pkg/dsp/dynamics's Compressor.ProcessBuffer.
func CompressorProcess(ctx graph.TaskContext) {
	c := memoryAs[dynamics.Compressor](ctx.Memory())
	in := ctx.Arg(0).RealBuf
	out := ctx.Arg(5).RealBuf
	n := ctx.BufferSize()
	c.ProcessBuffer(in[:n], out[:n])
}

func lfoMemoryQuery(ctx graph.TaskContext) int {
	return sizeOf[modulation.LFO]()
}

// lfoVoiceInitializer builds a sine LFO reading args (_, rateHz, depth, _) —
// indices must line up with LFOTremolo below.
func lfoVoiceInitializer(ctx graph.TaskContext) {
	rate := float64(readReal(ctx.Arg(1), 0))
	depth := float64(readReal(ctx.Arg(2), 0))
	l := modulation.NewLFO(ctx.SampleRate())
	l.SetFrequency(rate)
	l.SetDepth(depth)
	*memoryAs[modulation.LFO](ctx.Memory()) = *l
}

// LFOTremolo implements args (in, rateHz, depth) -> out, amplitude-modulating
// in by a unipolar LFO, grounded on pkg/dsp/modulation's LFO.Process.
func LFOTremolo(ctx graph.TaskContext) {
	l := memoryAs[modulation.LFO](ctx.Memory())
	in := ctx.Arg(0).RealBuf
	out := ctx.Arg(3).RealBuf
	n := ctx.BufferSize()
	for i := 0; i < n; i++ {
		mod := float32((l.Process() + 1) / 2)
		out[i] = in[i] * mod
	}
}
