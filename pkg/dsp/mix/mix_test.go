package mix

import (
	"math"
	"testing"
)

func TestDryWetBufferTo(t *testing.T) {
	tests := []struct {
		name   string
		dry    float32
		wet    float32
		amount float32
		want   float32
	}{
		{"fully dry", 1.0, 0.5, 0.0, 1.0},
		{"fully wet", 1.0, 0.5, 1.0, 0.5},
		{"50/50", 1.0, 0.5, 0.5, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]float32, 1)
			DryWetBufferTo([]float32{tt.dry}, []float32{tt.wet}, tt.amount, dst)
			if math.Abs(float64(dst[0]-tt.want)) > 0.001 {
				t.Errorf("DryWetBufferTo(%f, %f, %f) = %f, want %f", tt.dry, tt.wet, tt.amount, dst[0], tt.want)
			}
		})
	}
}

func BenchmarkDryWetBufferTo(b *testing.B) {
	dry := make([]float32, 512)
	wet := make([]float32, 512)
	dst := make([]float32, 512)
	for i := range dry {
		dry[i] = 0.5
		wet[i] = 0.25
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DryWetBufferTo(dry, wet, 0.5, dst)
	}
}
