// Package oscillator generates periodic waveforms for synthesis voices.
package oscillator

import "math"

// Oscillator is a phase-accumulating sine generator. Its fields are the
// entire persisted state a voice needs to keep producing a continuous
// waveform across chunk boundaries.
type Oscillator struct {
	sampleRate float64
	frequency  float64
	phase      float64
	phaseInc   float64
}

// New returns an oscillator running at 440Hz until SetFrequency is called.
func New(sampleRate float64) *Oscillator {
	o := &Oscillator{sampleRate: sampleRate}
	o.SetFrequency(440.0)
	return o
}

// SetFrequency changes the oscillator's pitch without resetting its phase.
func (o *Oscillator) SetFrequency(freq float64) {
	o.frequency = freq
	o.phaseInc = freq / o.sampleRate
}

func (o *Oscillator) advance() {
	o.phase += o.phaseInc
	if o.phase >= 1.0 {
		o.phase -= math.Floor(o.phase)
	}
}

func (o *Oscillator) sine() float32 {
	s := float32(math.Sin(2.0 * math.Pi * o.phase))
	o.advance()
	return s
}

// ProcessSine fills buf with consecutive sine samples, advancing the
// oscillator's phase by one buffer's worth of cycles.
func (o *Oscillator) ProcessSine(buf []float32) {
	for i := range buf {
		buf[i] = o.sine()
	}
}
