package profiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GPUInfo describes device 0. An empty Name means no GPU.
type GPUInfo struct {
	Name        string
	MemoryBytes int64
	// Compute capability as major.minor; zero when unknown.
	ComputeCap float64
}

// GPUProbe reports the primary GPU.
type GPUProbe interface {
	ProbeGPU(ctx context.Context) (GPUInfo, error)
}

// NvidiaSMI queries nvidia-smi for device 0.
type NvidiaSMI struct {
	// Bin defaults to "nvidia-smi" on PATH.
	Bin     string
	Timeout time.Duration
}

func (n NvidiaSMI) ProbeGPU(ctx context.Context) (GPUInfo, error) {
	bin := n.Bin
	if bin == "" {
		bin = "nvidia-smi"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return GPUInfo{}, fmt.Errorf("nvidia-smi not found: %w", err)
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--query-gpu=name,memory.total,compute_cap", "--format=csv,noheader,nounits")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return GPUInfo{}, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseSMI(out.String())
}

// parseSMI reads the first CSV line: name, memory MiB, compute capability.
func parseSMI(out string) (GPUInfo, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if line == "" {
		return GPUInfo{}, errors.New("nvidia-smi: no devices")
	}
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	info := GPUInfo{Name: fields[0]}
	if len(fields) > 1 {
		if mib, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			info.MemoryBytes = mib << 20
		}
	}
	if len(fields) > 2 {
		if cc, err := strconv.ParseFloat(fields[2], 64); err == nil {
			info.ComputeCap = cc
		}
	}
	return info, nil
}

// adaComputeCap is the first Ada Lovelace compute capability.
const adaComputeCap = 8.9

func classify(g GPUInfo) ComputeClass {
	if g.ComputeCap >= adaComputeCap {
		return ComputeAdaOrNewer
	}
	name := strings.ToUpper(g.Name)
	for _, series := range []string{"RTX 40", "RTX 50", "RTX 6000 ADA", " L4", " L40"} {
		if strings.Contains(name, series) {
			return ComputeAdaOrNewer
		}
	}
	if g.ComputeCap > 0 {
		return ComputeLegacy
	}
	return ComputeUnknown
}
