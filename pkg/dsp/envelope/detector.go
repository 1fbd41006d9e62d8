package envelope

import "math"

// DetectorType selects how a Detector's attack/release coefficients relate
// to its programmed times.
type DetectorType int

const (
	// TypeLinear is a standard one-pole follower.
	TypeLinear DetectorType = iota
	// TypeLogarithmic reaches its target faster, a more musical response for
	// dynamics processing.
	TypeLogarithmic
)

// Detector is a peak envelope follower feeding a dynamics processor's gain
// computation.
type Detector struct {
	sampleRate float64
	detType    DetectorType

	attack  float64
	release float64

	attackCoef  float64
	releaseCoef float64

	envelope float64
}

// NewDetector returns a peak detector with 1ms attack / 100ms release.
func NewDetector(sampleRate float64) *Detector {
	d := &Detector{
		sampleRate: sampleRate,
		attack:     0.001,
		release:    0.100,
	}
	d.updateCoefficients()
	return d
}

// SetType selects the attack/release response curve.
func (d *Detector) SetType(t DetectorType) {
	d.detType = t
	d.updateCoefficients()
}

// SetAttack sets the attack time in seconds.
func (d *Detector) SetAttack(seconds float64) {
	d.attack = math.Max(0.0001, seconds)
	d.updateCoefficients()
}

// SetRelease sets the release time in seconds.
func (d *Detector) SetRelease(seconds float64) {
	d.release = math.Max(0.0001, seconds)
	d.updateCoefficients()
}

// SetTimeConstants sets attack and release together.
func (d *Detector) SetTimeConstants(attack, release float64) {
	d.attack = math.Max(0.0001, attack)
	d.release = math.Max(0.0001, release)
	d.updateCoefficients()
}

func (d *Detector) updateCoefficients() {
	switch d.detType {
	case TypeLogarithmic:
		d.attackCoef = 1.0 - math.Exp(-2.2/(d.attack*d.sampleRate))
		d.releaseCoef = 1.0 - math.Exp(-2.2/(d.release*d.sampleRate))
	default:
		d.attackCoef = 1.0 - math.Exp(-1.0/(d.attack*d.sampleRate))
		d.releaseCoef = 1.0 - math.Exp(-1.0/(d.release*d.sampleRate))
	}
}

// Detect processes one sample and returns the updated peak envelope.
func (d *Detector) Detect(input float32) float32 {
	level := math.Abs(float64(input))
	if level > d.envelope {
		d.envelope += (level - d.envelope) * d.attackCoef
	} else {
		d.envelope += (level - d.envelope) * d.releaseCoef
	}
	return float32(d.envelope)
}

// Reset clears the detector's envelope state.
func (d *Detector) Reset() {
	d.envelope = 0
}
