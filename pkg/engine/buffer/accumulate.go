package buffer

import (
	"math"

	"github.com/wavelang/engine/pkg/engine/mixer"
	"github.com/wavelang/engine/pkg/engine/stage"
	"github.com/wavelang/engine/pkg/graph"
)

// sanitizeInfNaN replaces non-finite samples with silence in place. A
// runaway filter or divide-by-zero in one voice must not be allowed to
// poison the shared channel/output buffers every other voice mixes into.
func sanitizeInfNaN(s []float32) {
	for i, v := range s {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			s[i] = 0
		}
	}
}

// consumeGraphOutput resolves one graph output to a (handle, buffer) pair
// the caller now owns outright. A compiler is expected to count a graph
// output as one more usage occurrence of its backing buffer (GraphBuilder
// does this in AddBufferOutput); by the time every task in the stage has
// finished, that leaves exactly one usage remaining — the output's own —
// which this call retires. Retiring it here transfers ownership to the
// caller instead of releasing the slot to the allocator, since the output
// pipeline (accumulation, FX storage, channel mix) still needs to read it.
func (m *Manager) consumeGraphOutput(s stage.Stage, g graph.Graph, outIdx int) (Handle, *Buffer) {
	out := g.Outputs()[outIdx]

	if out.IsConstant {
		h := m.alloc.Allocate(graph.PrimitiveReal)
		b := m.alloc.Get(h)
		b.Constant = true
		if len(b.Real) == 0 {
			b.Real = make([]float32, 1)
		}
		b.Real[0] = out.ConstantValue
		return h, b
	}

	ctx := m.ctxFor(s)
	bufIdx := out.BufferIndex
	if !ctx.hasValue[bufIdx] {
		panic("buffer manager: graph output buffer has no live handle")
	}
	h := ctx.handles[bufIdx]

	if out.SharesBufferWithOutput {
		src := m.alloc.Get(h)
		h2 := m.alloc.Allocate(graph.PrimitiveReal)
		dst := m.alloc.Get(h2)
		dst.Constant = src.Constant
		copy(dst.Real, src.Real)
		ctx.usages[bufIdx].Add(-1)
		ctx.hasValue[bufIdx] = false
		return h2, dst
	}

	ctx.usages[bufIdx].Add(-1)
	ctx.hasValue[bufIdx] = false
	return h, m.alloc.Get(h)
}

// shiftAndZeroFill shifts a buffer's valid region forward by offset samples
// (for a voice that started mid-chunk) and zero-fills the prefix.
// A constant buffer is first expanded to a full per-frame buffer, since a
// single broadcast value cannot carry a silent prefix.
func shiftAndZeroFill(b *Buffer, offset, frames int) {
	if offset <= 0 || offset >= frames {
		return
	}
	if b.Constant {
		for i := 1; i < frames; i++ {
			b.Real[i] = b.Real[0]
		}
		b.Constant = false
	}
	for i := frames - 1; i >= offset; i-- {
		b.Real[i] = b.Real[i-offset]
	}
	for i := 0; i < offset; i++ {
		b.Real[i] = 0
	}
}

// addInto sums src into dst honoring an optional sample offset on src,
// leaving dst's pre-offset region (when offset > 0) unmodified.
func addInto(dst, src *Buffer, offset, frames int) {
	if src.Constant {
		v := src.Real[0]
		for i := offset; i < frames; i++ {
			dst.Real[i] += v
		}
		return
	}
	for i := offset; i < frames; i++ {
		dst.Real[i] += src.Real[i]
	}
}

// AccumulateVoiceOutput folds one voice's graph outputs into the per-chunk
// accumulation slots: swap on the first voice processed this chunk
// (ownership transfer, no copy), add on subsequent voices, honoring each
// voice's chunk-offset.
func (m *Manager) AccumulateVoiceOutput(g graph.Graph, chunkOffsetSamples int) {
	first := m.voicesRun == 0
	m.voicesRun++

	for slot, outIdx := range m.voiceAudio {
		h, buf := m.consumeGraphOutput(stage.Voice, g, outIdx)
		if buf.Constant {
			sanitizeInfNaN(buf.Real[:1])
		} else {
			sanitizeInfNaN(buf.Real[:m.frames])
		}

		if chunkOffsetSamples > 0 {
			shiftAndZeroFill(buf, chunkOffsetSamples, m.frames)
		}

		if first {
			m.voiceAccum[slot] = h
			m.voiceAccumHV[slot] = true
			continue
		}

		acc := m.alloc.Get(m.voiceAccum[slot])
		addInto(acc, buf, chunkOffsetSamples, m.frames)
		m.alloc.Free(h)
	}
}

// SeedFxInput publishes the voice stage's accumulated output as the FX
// graph's own input buffers, one per voice-graph audio output at graph
// buffer indices [0, n). A compiler emitting an FX graph that consumes the
// voice-summed signal is expected to declare its first n buffers for
// exactly this purpose. When no voice produced output this chunk (an
// FX-only instrument, or an immediately-active FX stage with zero active
// voices), silence is materialized instead so FX still sees a well-defined
// input.
func (m *Manager) SeedFxInput(g graph.Graph) {
	ctx := m.fxCtx
	n := len(m.voiceAccum)
	if n > g.BufferCount() {
		n = g.BufferCount()
	}
	for i := 0; i < n; i++ {
		if i < len(m.voiceAccumHV) && m.voiceAccumHV[i] {
			ctx.handles[i] = m.voiceAccum[i]
			ctx.hasValue[i] = true
			m.voiceAccumHV[i] = false
			continue
		}
		h := m.alloc.Allocate(graph.PrimitiveReal)
		b := m.alloc.Get(h)
		b.Reset(m.frames)
		ctx.handles[i] = h
		ctx.hasValue[i] = true
	}
}

// StoreFxOutput moves the FX graph's audio output buffers into the
// FX-output slots, analogous to the first-voice swap path above.
func (m *Manager) StoreFxOutput(g graph.Graph) {
	for slot, outIdx := range m.fxAudio {
		h, _ := m.consumeGraphOutput(stage.Fx, g, outIdx)
		m.fxOutput[slot] = h
		m.fxOutputHV[slot] = true
	}
	m.fxRan = true
}

// ProcessRemainActiveOutput reads the graph's distinguished remain-active
// output for the stage just run, then retires the output's own usage of its
// backing buffer (the audio sweep never touches it, so this is the last
// consumer). A graph with no such output (index -1) always remains active.
func (m *Manager) ProcessRemainActiveOutput(s stage.Stage, g graph.Graph) bool {
	idx := g.RemainActiveOutputIndex()
	if idx < 0 {
		return true
	}
	out := g.Outputs()[idx]
	if out.IsConstant {
		return out.ConstantValue != 0
	}
	active := true
	if buf := m.ResolveInput(s, out.BufferIndex); buf != nil {
		if buf.Primitive == graph.PrimitiveBool {
			active = buf.Bool[0]
		} else {
			active = buf.Real[0] != 0
		}
	}
	m.decrementOne(m.ctxFor(s), out.BufferIndex)
	return active
}

// MixVoiceAccumulationBuffersToChannelBuffers hands the voice-summed signal
// to the channel stage: swap when channel counts already match, otherwise
// run the channel mixer into fresh channel buffers and free the
// accumulation buffers.
func (m *Manager) MixVoiceAccumulationBuffersToChannelBuffers() {
	if len(m.voiceAccum) == m.outputChannelCount {
		for i := range m.voiceAccum {
			if !m.voiceAccumHV[i] {
				m.channelBufs[i] = Handle{}
				m.channelBufsHV[i] = false
				continue
			}
			m.channelBufs[i] = m.voiceAccum[i]
			m.channelBufsHV[i] = true
		}
		return
	}

	m.mixDown(m.voiceAccum, m.voiceAccumHV)
}

// MixFxOutputToChannelBuffers mirrors MixVoiceAccumulationBuffersToChannelBuffers
// for the FX stage. If FX did not run this chunk, every channel buffer is
// zero-filled.
func (m *Manager) MixFxOutputToChannelBuffers() {
	if !m.fxRan {
		for ch := 0; ch < m.outputChannelCount; ch++ {
			h := m.alloc.Allocate(graph.PrimitiveReal)
			b := m.alloc.Get(h)
			for i := range b.Real {
				b.Real[i] = 0
			}
			m.channelBufs[ch] = h
			m.channelBufsHV[ch] = true
		}
		return
	}

	if len(m.fxOutput) == m.outputChannelCount {
		for i := range m.fxOutput {
			if !m.fxOutputHV[i] {
				m.channelBufs[i] = Handle{}
				m.channelBufsHV[i] = false
				continue
			}
			m.channelBufs[i] = m.fxOutput[i]
			m.channelBufsHV[i] = true
		}
		return
	}

	m.mixDown(m.fxOutput, m.fxOutputHV)
}

// silentSample is the shared one-sample broadcast source standing in for
// any stage slot that produced no signal this chunk (e.g. a voice graph
// with zero active voices). Read-only by convention; nothing ever writes
// through a constant source.
var silentSample = []float32{0}

// mixDown runs the channel mixer over a set of source handles, frees them,
// and stores the mixed-down result in the channel-buffer slots. Slots that
// were never filled this chunk mix as silence. All scratch is preallocated
// on the Manager; nothing here allocates.
func (m *Manager) mixDown(srcHandles []Handle, srcHV []bool) {
	n := len(srcHandles)
	inputs := m.mixInputs[:n]
	for i := 0; i < n; i++ {
		if !srcHV[i] {
			inputs[i] = mixer.Source{Samples: silentSample, Constant: true}
			continue
		}
		b := m.alloc.Get(srcHandles[i])
		inputs[i] = mixer.Source{Samples: b.Real, Constant: b.Constant}
	}

	outs := m.mixOuts
	handles := m.mixHandles
	for ch := 0; ch < m.outputChannelCount; ch++ {
		h := m.alloc.Allocate(graph.PrimitiveReal)
		handles[ch] = h
		outs[ch] = m.alloc.Get(h).Real
	}
	mixer.Mix(inputs, outs, m.frames)

	for i := 0; i < n; i++ {
		if srcHV[i] {
			m.alloc.Free(srcHandles[i])
			srcHV[i] = false
		}
	}
	for ch := 0; ch < m.outputChannelCount; ch++ {
		m.channelBufs[ch] = handles[ch]
		m.channelBufsHV[ch] = true
	}
}

// MixChannelBuffersToOutputBuffer converts and interleaves the channel
// buffers into the driver's output slab, then frees them. A channel slot
// that never received a buffer this chunk (no voice active, no FX run)
// interleaves as silence.
func (m *Manager) MixChannelBuffersToOutputBuffer(format mixer.SampleFormat, out []float32) {
	sources := m.chanSources
	for ch := 0; ch < m.outputChannelCount; ch++ {
		if !m.channelBufsHV[ch] {
			sources[ch] = mixer.Source{Samples: silentSample, Constant: true}
			continue
		}
		b := m.alloc.Get(m.channelBufs[ch])
		if !b.Constant {
			sanitizeInfNaN(b.Real[:m.frames])
		}
		sources[ch] = mixer.Source{Samples: b.Real, Constant: b.Constant}
	}
	mixer.InterleaveFloat32(sources, m.frames, out)

	for ch := 0; ch < m.outputChannelCount; ch++ {
		if m.channelBufsHV[ch] {
			m.alloc.Free(m.channelBufs[ch])
			m.channelBufsHV[ch] = false
		}
	}
}
