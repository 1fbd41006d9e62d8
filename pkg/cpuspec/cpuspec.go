// Package cpuspec recommends a thread pool size for the execution engine
// from the host CPU's physical and logical core counts. It does not tell
// performance cores from efficiency cores on hybrid architectures.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Spec describes the host CPU as far as the engine cares: its logical and
// physical core counts, used to avoid oversubscribing SMT siblings with
// real-time audio workers.
type Spec struct {
	BrandName     string
	LogicalCores  int
	PhysicalCores int
}

// Detect reads the running CPU's identification via cpuid.
func Detect() Spec {
	return Spec{
		BrandName:     cpuid.CPU.BrandName,
		LogicalCores:  cpuid.CPU.LogicalCores,
		PhysicalCores: cpuid.CPU.PhysicalCores,
	}
}

// OptimalThreadCount returns the recommended worker-thread count for the
// engine's pool: one worker per physical core when that's known (SMT
// siblings share an audio-relevant ALU/FPU and rarely help a tightly
// CAS-looped task scheduler), otherwise every logical core, capped by what
// runtime.NumCPU() says is actually schedulable (important inside a
// container or VM with a CPU quota narrower than the physical chip).
func (s Spec) OptimalThreadCount() int {
	available := runtime.NumCPU()

	recommended := s.LogicalCores
	if s.PhysicalCores > 0 && s.PhysicalCores < recommended {
		recommended = s.PhysicalCores
	}
	if recommended <= 0 {
		recommended = available
	}
	if recommended > available {
		recommended = available
	}
	if recommended < 1 {
		recommended = 1
	}
	return recommended
}
