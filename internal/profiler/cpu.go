package profiler

import (
	"context"
	"errors"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// CPUInfo is the raw result of a CPU probe.
type CPUInfo struct {
	Model         string
	PhysicalCores int
	LogicalCores  int
	MemoryBytes   int64
}

// CPUProbe reports CPU identity and core counts.
type CPUProbe interface {
	ProbeCPU(ctx context.Context) (CPUInfo, error)
}

// HostCPU reads the local CPU through CPUID, with gopsutil filling gaps.
type HostCPU struct{}

func (HostCPU) ProbeCPU(ctx context.Context) (CPUInfo, error) {
	info := CPUInfo{
		Model:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
	}
	if info.Model == "" {
		if stats, err := cpu.Info(); err == nil && len(stats) > 0 {
			info.Model = stats[0].ModelName
		}
	}
	if info.PhysicalCores <= 0 {
		if n, err := cpu.Counts(false); err == nil {
			info.PhysicalCores = n
		}
	}
	if info.LogicalCores <= 0 {
		if n, err := cpu.Counts(true); err == nil {
			info.LogicalCores = n
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryBytes = int64(vm.Total)
	}
	if info.Model == "" && info.PhysicalCores <= 0 {
		return info, errors.New("cpu model and core count unavailable")
	}
	return info, nil
}
