// Package delay provides a linear-interpolated delay line for synthesis
// and FX task functions.
package delay

// Line is a circular buffer delay with linear-interpolated reads, the
// persisted state for one voice's delay task.
type Line struct {
	buffer     []float32
	bufferSize int
	writePos   int
	sampleRate float64
}

// New allocates a delay line long enough for maxDelaySeconds at sampleRate.
func New(maxDelaySeconds, sampleRate float64) *Line {
	size := int(maxDelaySeconds*sampleRate) + 1
	return &Line{
		buffer:     make([]float32, size),
		bufferSize: size,
		sampleRate: sampleRate,
	}
}

// Write advances the line's write cursor, storing one new sample.
func (d *Line) Write(sample float32) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= d.bufferSize {
		d.writePos = 0
	}
}

// Read returns the sample delaySamples behind the current write position,
// linearly interpolated between the two nearest stored samples.
func (d *Line) Read(delaySamples float64) float32 {
	readPos := float64(d.writePos) - delaySamples
	if readPos < 0 {
		readPos += float64(d.bufferSize)
	}

	i := int(readPos)
	frac := float32(readPos - float64(i))
	s1 := d.buffer[i]
	s2 := d.buffer[(i+1)%d.bufferSize]
	return s1*(1.0-frac) + s2*frac
}

// Process reads the delayed value of input, then writes input into the
// line, in one call.
func (d *Line) Process(input float32, delaySamples float64) float32 {
	out := d.Read(delaySamples)
	d.Write(input)
	return out
}
