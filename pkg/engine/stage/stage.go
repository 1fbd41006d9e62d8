// Package stage defines the two graph-execution stages every chunk may run:
// the per-voice instrument graph and the post-voice FX graph. It exists as
// its own tiny package so the buffer, voice and controller packages can all
// refer to "which stage" without importing the top-level engine package and
// creating an import cycle.
package stage

// Stage identifies which of the instrument's two graphs a per-chunk run is
// processing.
type Stage int

const (
	Voice Stage = iota
	Fx
)

func (s Stage) String() string {
	if s == Voice {
		return "voice"
	}
	return "fx"
}
