package gain

import "testing"

func TestApply(t *testing.T) {
	sample := float32(0.5)
	gain := float32(2.0)
	want := float32(1.0)

	got := Apply(sample, gain)
	if got != want {
		t.Errorf("Apply(%f, %f) = %f, want %f", sample, gain, got, want)
	}
}

func TestApplyZeroGainSilences(t *testing.T) {
	if got := Apply(0.77, 0); got != 0 {
		t.Errorf("Apply(0.77, 0) = %f, want 0", got)
	}
}
