// Package mix provides linear dry/wet mixing for synthesis task functions.
package mix

// DryWetBufferTo blends dry and wet buffers into dst, where amount is 0 for
// fully dry and 1 for fully wet.
func DryWetBufferTo(dry, wet []float32, amount float32, dst []float32) {
	dryGain := 1.0 - amount
	wetGain := amount

	n := len(dry)
	if len(wet) < n {
		n = len(wet)
	}
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = dry[i]*dryGain + wet[i]*wetGain
	}
}
