package dynamics

import (
	"math"
	"testing"
)

func TestCompressorDefaults(t *testing.T) {
	c := NewCompressor(48000.0)
	if c.threshold != -20.0 {
		t.Errorf("default threshold = %f, want -20.0", c.threshold)
	}
	if c.ratio != 4.0 {
		t.Errorf("default ratio = %f, want 4.0", c.ratio)
	}
}

func TestComputeGainReductionBelowThreshold(t *testing.T) {
	c := NewCompressor(48000.0)
	c.SetThreshold(-20.0)
	c.SetRatio(4.0)

	if gr := c.computeGainReductionDB(-30.0); gr != 0.0 {
		t.Errorf("below-threshold reduction = %f, want 0", gr)
	}
}

func TestComputeGainReductionAboveKnee(t *testing.T) {
	c := NewCompressor(48000.0)
	c.SetThreshold(-20.0)
	c.SetRatio(4.0)

	// 20dB over threshold, well clear of the 2dB knee -> 15dB reduction.
	gr := c.computeGainReductionDB(0.0)
	want := 15.0
	if math.Abs(gr-want) > 0.001 {
		t.Errorf("gain reduction at 0dB = %f, want %f", gr, want)
	}
}

func TestCompressorProcessBufferCompressesLoudSignal(t *testing.T) {
	sampleRate := 48000.0
	c := NewCompressor(sampleRate)
	c.SetThreshold(-20.0)
	c.SetRatio(4.0)
	c.SetAttack(0.001)
	c.SetRelease(0.010)

	numSamples := int(sampleRate * 0.1)
	input := make([]float32, numSamples)
	output := make([]float32, numSamples)
	for i := range input {
		input[i] = float32(math.Sin(2.0 * math.Pi * 1000.0 * float64(i) / sampleRate))
	}
	c.ProcessBuffer(input, output)

	var inputRMS, outputRMS float64
	start := int(0.002 * sampleRate)
	count := 0
	for i := start; i < numSamples/2; i++ {
		inputRMS += float64(input[i]) * float64(input[i])
		outputRMS += float64(output[i]) * float64(output[i])
		count++
	}
	inputRMS = math.Sqrt(inputRMS / float64(count))
	outputRMS = math.Sqrt(outputRMS / float64(count))

	if outputRMS >= inputRMS {
		t.Errorf("compression not applied: input RMS %f, output RMS %f", inputRMS, outputRMS)
	}
	if c.lastGainReduction <= 0 {
		t.Error("expected nonzero gain reduction")
	}
}

func BenchmarkCompressorProcessBuffer(b *testing.B) {
	c := NewCompressor(48000.0)
	input := make([]float32, 1024)
	output := make([]float32, 1024)
	for i := range input {
		input[i] = float32(math.Sin(float64(i) * 0.1))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.ProcessBuffer(input, output)
	}
}
