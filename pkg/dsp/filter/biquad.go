// Package filter provides second-order IIR filters for synthesis and FX
// task functions.
package filter

import "math"

// Biquad is a Direct Form I second-order IIR filter with per-channel state,
// sized once and never reallocated during processing.
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32

	x1, x2 []float32
	y1, y2 []float32
}

// NewBiquad allocates filter state for the given channel count.
func NewBiquad(channels int) *Biquad {
	return &Biquad{
		x1: make([]float32, channels),
		x2: make([]float32, channels),
		y1: make([]float32, channels),
		y2: make([]float32, channels),
	}
}

func (b *Biquad) setCoefficients(b0, b1, b2, a0, a1, a2 float64) {
	invA0 := 1.0 / a0
	b.b0 = float32(b0 * invA0)
	b.b1 = float32(b1 * invA0)
	b.b2 = float32(b2 * invA0)
	b.a1 = float32(a1 * invA0)
	b.a2 = float32(a2 * invA0)
}

// SetLowpass configures the filter's coefficients as an RBJ lowpass.
func (b *Biquad) SetLowpass(sampleRate, frequency, q float64) {
	omega := 2.0 * math.Pi * frequency / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2.0 * q)

	b.setCoefficients(
		(1.0-cosOmega)/2.0, 1.0-cosOmega, (1.0-cosOmega)/2.0,
		1.0+alpha, -2.0*cosOmega, 1.0-alpha,
	)
}

// Process filters buf in place for the given channel, carrying its
// x1/x2/y1/y2 state across calls.
func (b *Biquad) Process(buf []float32, channel int) {
	x1, x2 := b.x1[channel], b.x2[channel]
	y1, y2 := b.y1[channel], b.y2[channel]

	for i, x0 := range buf {
		y0 := b.b0*x0 + b.b1*x1 + b.b2*x2 - b.a1*y1 - b.a2*y2
		x2, x1 = x1, x0
		y2, y1 = y1, y0
		buf[i] = y0
	}

	b.x1[channel], b.x2[channel] = x1, x2
	b.y1[channel], b.y2[channel] = y1, y2
}
