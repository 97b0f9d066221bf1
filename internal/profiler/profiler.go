// Package profiler inspects host CPU and GPU resources once at startup and
// derives worker-pool sizes from them.
package profiler

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"codebuddy/pkg/types"
)

// ComputeClass buckets GPUs by the quantization features they support.
type ComputeClass string

const (
	ComputeUnknown    ComputeClass = "unknown"
	ComputeLegacy     ComputeClass = "legacy"
	ComputeAdaOrNewer ComputeClass = "ada_or_newer"
)

// DefaultTunedMarkers name CPUs whose thread layout was tuned by hand.
var DefaultTunedMarkers = []string{"7800X3D"}

// Capabilities is the read-only host description produced by Profile.
type Capabilities struct {
	CPUModel            string
	PhysicalCores       int
	LogicalCores        int
	TunedCPU            bool
	GPUPresent          bool
	GPUName             string
	GPUTotalMemoryBytes int64
	GPUComputeClass     ComputeClass
	HostMemoryBytes     int64
	InferenceThreads    int
	TokenizationThreads int
}

// AuxThreads sizes the pool used for CPU-bound text work.
func (c Capabilities) AuxThreads() int {
	return max(2, c.PhysicalCores/2)
}

// Host converts c to its API representation.
func (c Capabilities) Host() types.HostStatus {
	return types.HostStatus{
		CPUModel:            c.CPUModel,
		PhysicalCores:       c.PhysicalCores,
		LogicalCores:        c.LogicalCores,
		TunedCPU:            c.TunedCPU,
		GPUPresent:          c.GPUPresent,
		GPUName:             c.GPUName,
		GPUMemoryMB:         c.GPUTotalMemoryBytes / (1 << 20),
		GPUComputeClass:     string(c.GPUComputeClass),
		HostMemoryMB:        c.HostMemoryBytes / (1 << 20),
		InferenceThreads:    c.InferenceThreads,
		TokenizationThreads: c.TokenizationThreads,
	}
}

// Options configures Profile. Zero value probes the real host.
type Options struct {
	CPU          CPUProbe
	GPU          GPUProbe
	TunedMarkers []string
	Logger       zerolog.Logger
}

// Profile probes the host. It never fails: a probe error is logged and the
// affected fields fall back to conservative defaults.
func Profile(ctx context.Context, opts Options) Capabilities {
	if opts.CPU == nil {
		opts.CPU = HostCPU{}
	}
	if opts.GPU == nil {
		opts.GPU = NvidiaSMI{}
	}
	if opts.TunedMarkers == nil {
		opts.TunedMarkers = DefaultTunedMarkers
	}
	log := opts.Logger

	caps := Capabilities{GPUComputeClass: ComputeUnknown}

	cpu, err := opts.CPU.ProbeCPU(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("profiler event=cpu_probe_failed using=generic")
	} else {
		caps.CPUModel = cpu.Model
		caps.PhysicalCores = cpu.PhysicalCores
		caps.LogicalCores = cpu.LogicalCores
		caps.HostMemoryBytes = cpu.MemoryBytes
		caps.TunedCPU = matchesAny(cpu.Model, opts.TunedMarkers)
	}
	caps.InferenceThreads, caps.TokenizationThreads = threadCounts(caps)

	gpu, err := opts.GPU.ProbeGPU(ctx)
	switch {
	case err != nil:
		log.Info().Err(err).Msg("profiler event=gpu_probe_failed gpu=absent")
	case gpu.Name == "":
		log.Info().Msg("profiler event=gpu_absent")
	default:
		caps.GPUPresent = true
		caps.GPUName = gpu.Name
		caps.GPUTotalMemoryBytes = gpu.MemoryBytes
		caps.GPUComputeClass = classify(gpu)
	}
	return caps
}

// LogSummary writes a human-readable summary of caps.
func LogSummary(log zerolog.Logger, caps Capabilities) {
	ev := log.Info().
		Str("cpu", caps.CPUModel).
		Int("physical_cores", caps.PhysicalCores).
		Int("logical_cores", caps.LogicalCores).
		Bool("tuned", caps.TunedCPU).
		Int("inference_threads", caps.InferenceThreads).
		Int("tokenization_threads", caps.TokenizationThreads).
		Int64("host_memory_mb", caps.HostMemoryBytes/(1<<20))
	if caps.GPUPresent {
		ev = ev.Str("gpu", caps.GPUName).
			Int64("gpu_memory_mb", caps.GPUTotalMemoryBytes/(1<<20)).
			Str("compute_class", string(caps.GPUComputeClass))
	} else {
		ev = ev.Str("gpu", "none")
	}
	ev.Msg("profiler event=summary")
}

func threadCounts(c Capabilities) (inference, tokenization int) {
	if c.TunedCPU && c.PhysicalCores > 0 && c.LogicalCores > 0 {
		return c.PhysicalCores, c.LogicalCores
	}
	return max(2, c.PhysicalCores-2), max(2, c.LogicalCores/2)
}

func matchesAny(model string, markers []string) bool {
	m := strings.ToUpper(model)
	for _, mk := range markers {
		if mk != "" && strings.Contains(m, strings.ToUpper(mk)) {
			return true
		}
	}
	return false
}
