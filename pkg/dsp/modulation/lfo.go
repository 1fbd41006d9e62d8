// Package modulation provides a low-frequency sine oscillator for
// amplitude-modulation task functions.
package modulation

import "math"

// LFO is a phase-accumulating sine low-frequency oscillator, the persisted
// state for one voice's modulation task.
type LFO struct {
	sampleRate float64
	frequency  float64
	phase      float64
	depth      float64
	phaseInc   float64
}

// NewLFO returns an LFO running at 1Hz, full depth.
func NewLFO(sampleRate float64) *LFO {
	l := &LFO{sampleRate: sampleRate, depth: 1.0}
	l.SetFrequency(1.0)
	return l
}

// SetFrequency sets the LFO rate in Hz, clamped to a sensible modulation
// range.
func (l *LFO) SetFrequency(hz float64) {
	l.frequency = math.Max(0.01, math.Min(20.0, hz))
	l.phaseInc = l.frequency / l.sampleRate
}

// SetDepth sets the modulation depth in [0, 1].
func (l *LFO) SetDepth(depth float64) {
	l.depth = math.Max(0.0, math.Min(1.0, depth))
}

// Process returns the next LFO sample in [-1, 1] and advances its phase.
func (l *LFO) Process() float64 {
	out := math.Sin(2.0*math.Pi*l.phase) * l.depth

	l.phase += l.phaseInc
	if l.phase >= 1.0 {
		l.phase -= 1.0
	}
	return out
}
