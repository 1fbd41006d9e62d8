// Package gain applies linear amplitude scaling to audio samples.
package gain

// Apply scales a single sample by a linear gain factor.
func Apply(sample, gain float32) float32 {
	return sample * gain
}
