// Package pan provides mono-to-stereo panning for synthesis task functions.
package pan

import "math"

// Law selects a panning curve. Only constant-power panning is implemented;
// the type exists so a task function's signature can name its panning law
// explicitly rather than assuming one.
type Law int

// ConstantPower is equal-power (sine/cosine) panning, the only law this
// package implements.
const ConstantPower Law = iota

// monoToStereo returns the left/right gains for a pan position in
// [-1, 1] (hard left to hard right) under equal-power panning.
func monoToStereo(p float32) (left, right float32) {
	angle := (p + 1.0) * math.Pi / 4.0
	return float32(math.Cos(float64(angle))), float32(math.Sin(float64(angle)))
}

// Process splits a mono buffer into panned left/right output buffers.
func Process(mono []float32, p float32, law Law, leftOut, rightOut []float32) {
	leftGain, rightGain := monoToStereo(p)

	n := len(mono)
	if len(leftOut) < n {
		n = len(leftOut)
	}
	if len(rightOut) < n {
		n = len(rightOut)
	}
	for i := 0; i < n; i++ {
		leftOut[i] = mono[i] * leftGain
		rightOut[i] = mono[i] * rightGain
	}
}
