// Package envelope provides envelope generators and level detectors used by
// the synthesis and dynamics-processing task functions.
package envelope

import "math"

// stage is the current phase of an ADSR's cycle.
type stage int

const (
	stageIdle stage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

// ADSR is an Attack-Decay-Sustain-Release envelope generator driven by
// one-pole exponential segments, the persisted state for one voice.
type ADSR struct {
	sampleRate float64

	attack  float64
	decay   float64
	sustain float64
	release float64

	attackCoef  float64
	decayCoef   float64
	releaseCoef float64

	stage  stage
	value  float64
	target float64
}

// New returns an idle ADSR with a short default attack/decay/release.
func New(sampleRate float64) *ADSR {
	e := &ADSR{
		sampleRate: sampleRate,
		attack:     0.01,
		decay:      0.1,
		sustain:    0.7,
		release:    0.3,
	}
	e.updateCoefficients()
	return e
}

// SetADSR sets all four stage parameters at once; attack/decay/release are
// clamped to a minimum of 1ms and sustain to [0,1].
func (e *ADSR) SetADSR(attack, decay, sustain, release float64) {
	e.attack = math.Max(0.001, attack)
	e.decay = math.Max(0.001, decay)
	e.sustain = math.Max(0.0, math.Min(1.0, sustain))
	e.release = math.Max(0.001, release)
	e.updateCoefficients()
}

func (e *ADSR) updateCoefficients() {
	e.attackCoef = coefFor(e.attack, e.sampleRate)
	e.decayCoef = coefFor(e.decay, e.sampleRate)
	e.releaseCoef = coefFor(e.release, e.sampleRate)
}

// coefFor is the one-pole coefficient for an exponential segment reaching
// its target in roughly timeSeconds.
func coefFor(timeSeconds, sampleRate float64) float64 {
	if timeSeconds <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (timeSeconds * sampleRate))
}

// Trigger starts (or restarts) the attack stage.
func (e *ADSR) Trigger() {
	e.stage = stageAttack
	e.target = 1.0
}

// Release moves a non-idle envelope into its release stage.
func (e *ADSR) Release() {
	if e.stage != stageIdle {
		e.stage = stageRelease
		e.target = 0.0
	}
}

func (e *ADSR) next() float32 {
	switch e.stage {
	case stageAttack:
		e.value = e.target + (e.value-e.target)*e.attackCoef
		if e.value >= 0.999 {
			e.value = 1.0
			e.stage = stageDecay
			e.target = e.sustain
		}
	case stageDecay:
		e.value = e.target + (e.value-e.target)*e.decayCoef
		if e.value <= e.sustain+0.001 {
			e.value = e.sustain
			e.stage = stageSustain
		}
	case stageSustain:
		e.value = e.sustain
	case stageRelease:
		e.value = e.target + (e.value-e.target)*e.releaseCoef
		if e.value <= 0.001 {
			e.value = 0.0
			e.stage = stageIdle
		}
	case stageIdle:
		e.value = 0.0
	}
	return float32(e.value)
}

// Process fills buf with consecutive envelope values, advancing the
// envelope's internal stage machine by len(buf) samples.
func (e *ADSR) Process(buf []float32) {
	for i := range buf {
		buf[i] = e.next()
	}
}
