// Package quant selects the precision and device placement used to load a
// model, as a fixed three-rung fallback ladder.
package quant

import (
	"fmt"

	"codebuddy/internal/profiler"
)

// Precision of the loaded weights.
type Precision string

const (
	PrecisionNF4  Precision = "nf4"
	PrecisionFP16 Precision = "fp16"
	PrecisionInt8 Precision = "int8"
)

// Placement controls how weights are spread across devices.
type Placement string

const (
	// PlacementSingle pins every layer to one GPU.
	PlacementSingle Placement = "single"
	// PlacementAuto lets the backend split layers across GPU, host and disk.
	PlacementAuto Placement = "auto"
)

// MaxAttempts is the number of rungs on the ladder.
const MaxAttempts = 3

// DefaultInt8Threshold is the outlier threshold for int8 matmul.
const DefaultInt8Threshold = 6.0

// Spec describes one load strategy.
type Spec struct {
	// Rung is the 1-based ladder position.
	Rung          int
	Precision     Precision
	Placement     Placement
	DoubleQuant   bool
	ComputeDType  string
	QuantStorage  string
	Int8Threshold float64
	// OffloadDir receives layers that do not fit on the GPU.
	OffloadDir string
	// Device is the GPU index for PlacementSingle.
	Device int
}

func (s Spec) String() string {
	return fmt.Sprintf("rung=%d precision=%s placement=%s", s.Rung, s.Precision, s.Placement)
}

// Options carries deployment paths into the ladder.
type Options struct {
	OffloadDir string
	Device     int
}

// Select returns the spec for attempt (1-based). ok is false once the ladder
// is exhausted.
func Select(caps profiler.Capabilities, attempt int, opts Options) (Spec, bool) {
	switch attempt {
	case 1:
		s := Spec{
			Rung:         1,
			Precision:    PrecisionNF4,
			Placement:    PlacementSingle,
			DoubleQuant:  true,
			ComputeDType: "float16",
			Device:       opts.Device,
		}
		if caps.GPUComputeClass == profiler.ComputeAdaOrNewer {
			s.QuantStorage = "uint8"
		}
		return s, true
	case 2:
		return Spec{
			Rung:         2,
			Precision:    PrecisionFP16,
			Placement:    PlacementAuto,
			ComputeDType: "float16",
			OffloadDir:   opts.OffloadDir,
		}, true
	case 3:
		return Spec{
			Rung:          3,
			Precision:     PrecisionInt8,
			Placement:     PlacementAuto,
			Int8Threshold: DefaultInt8Threshold,
		}, true
	default:
		return Spec{}, false
	}
}

// Ladder returns every rung in order.
func Ladder(caps profiler.Capabilities, opts Options) []Spec {
	out := make([]Spec, 0, MaxAttempts)
	for i := 1; ; i++ {
		s, ok := Select(caps, i, opts)
		if !ok {
			return out
		}
		out = append(out, s)
	}
}
