// Package collector gathers host information recorded alongside profiling runs.
package collector

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/coral-mesh/perfprobe/internal/sys/proc"
)

// HostInfo describes the machine a run was profiled on.
type HostInfo struct {
	Hostname      string `json:"hostname" duckdb:"hostname"`
	OS            string `json:"os" duckdb:"os"`
	Platform      string `json:"platform" duckdb:"platform"`
	KernelVersion string `json:"kernel_version" duckdb:"kernel_version"`
	Arch          string `json:"arch" duckdb:"arch"`
	CPUModel      string `json:"cpu_model" duckdb:"cpu_model"`
	CPUCores      int    `json:"cpu_cores" duckdb:"cpu_cores"`
	MemoryTotal   uint64 `json:"memory_total" duckdb:"memory_total"`
}

// CollectHostInfo gathers host information. Unavailable fields are left empty and logged.
func CollectHostInfo(ctx context.Context, logger zerolog.Logger) HostInfo {
	logger = logger.With().Str("component", "host_collector").Logger()

	info := HostInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		if h.PlatformVersion != "" {
			info.Platform += " " + h.PlatformVersion
		}
		info.KernelVersion = h.KernelVersion
		if h.KernelArch != "" {
			info.Arch = h.KernelArch
		}
	} else {
		logger.Debug().Err(err).Msg("Failed to get host info")
	}

	if info.KernelVersion == "" && runtime.GOOS == "linux" {
		info.KernelVersion = proc.GetKernelVersion()
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	} else if err != nil {
		logger.Debug().Err(err).Msg("Failed to get CPU info")
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCores = n
	} else {
		info.CPUCores = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
	} else {
		logger.Debug().Err(err).Msg("Failed to get memory info")
	}

	return info
}
