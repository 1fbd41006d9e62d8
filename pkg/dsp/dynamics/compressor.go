// Package dynamics provides feed-forward dynamics processing for synthesis
// task functions.
package dynamics

import (
	"math"

	"github.com/wavelang/engine/pkg/dsp/envelope"
)

// kneeWidthDB is a fixed 2dB soft-knee region around the threshold.
const kneeWidthDB = 2.0

// Compressor is a feed-forward compressor: a peak detector feeding a
// static gain-reduction curve, applied sample-by-sample.
type Compressor struct {
	sampleRate float64

	threshold float64 // dB
	ratio     float64 // e.g. 4.0 for 4:1

	detector *envelope.Detector

	lastGainReduction float64
}

// NewCompressor returns a compressor at -20dB/4:1 with a 5ms/50ms
// attack/release, tuned with a logarithmic (musical) detector response.
func NewCompressor(sampleRate float64) *Compressor {
	c := &Compressor{
		sampleRate: sampleRate,
		threshold:  -20.0,
		ratio:      4.0,
		detector:   envelope.NewDetector(sampleRate),
	}
	c.detector.SetType(envelope.TypeLogarithmic)
	c.detector.SetTimeConstants(0.005, 0.050)
	return c
}

// SetThreshold sets the compression threshold in dB.
func (c *Compressor) SetThreshold(dB float64) {
	c.threshold = dB
}

// SetRatio sets the compression ratio; 1.0 is unity (no compression).
func (c *Compressor) SetRatio(ratio float64) {
	c.ratio = math.Max(1.0, ratio)
}

// SetAttack sets the detector's attack time in seconds.
func (c *Compressor) SetAttack(seconds float64) {
	c.detector.SetAttack(seconds)
}

// SetRelease sets the detector's release time in seconds.
func (c *Compressor) SetRelease(seconds float64) {
	c.detector.SetRelease(seconds)
}

// computeGainReductionDB returns the gain reduction, in dB, for a given
// input level in dB, with quadratic interpolation through the knee.
func (c *Compressor) computeGainReductionDB(inputDB float64) float64 {
	if inputDB < c.threshold-kneeWidthDB/2 {
		return 0.0
	}
	if inputDB > c.threshold+kneeWidthDB/2 {
		return (inputDB - c.threshold) * (1.0 - 1.0/c.ratio)
	}
	kneePos := (inputDB - (c.threshold - kneeWidthDB/2)) / kneeWidthDB
	overshoot := inputDB - c.threshold
	return kneePos * kneePos * overshoot * (1.0 - 1.0/c.ratio)
}

// process returns the compressed value of a single sample.
func (c *Compressor) process(input float32) float32 {
	level := c.detector.Detect(input)
	inputDB := -96.0
	if level > 0 {
		inputDB = 20.0 * math.Log10(float64(level))
	}
	c.lastGainReduction = c.computeGainReductionDB(inputDB)
	gain := math.Pow(10.0, -c.lastGainReduction/20.0)
	return input * float32(gain)
}

// ProcessBuffer compresses a buffer of samples into output.
func (c *Compressor) ProcessBuffer(input, output []float32) {
	for i := range input {
		output[i] = c.process(input[i])
	}
}
