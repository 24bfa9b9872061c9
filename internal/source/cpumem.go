package source

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// CPUMemReading holds one cycle's CPU and memory counters. Swap fields
// are zero unless the reading was taken with includeSwap set.
type CPUMemReading struct {
	CPUBusyPercent float64
	MemUsedBytes   uint64
	MemTotalBytes  uint64
	SwapUsedBytes  uint64
	SwapTotalBytes uint64
}

// CPUMem samples global CPU utilization and memory/swap usage. The CPU
// percentage is instantaneous: gopsutil keeps the previous /proc/stat
// counters between calls, so back-to-back reads at the sampling cadence
// yield a per-cycle busy percentage. The first call reports 0.
type CPUMem struct{}

func NewCPUMem() *CPUMem {
	return &CPUMem{}
}

func (c *CPUMem) Read(ctx context.Context, includeSwap bool) (CPUMemReading, error) {
	reading := CPUMemReading{}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return reading, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		reading.CPUBusyPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return reading, fmt.Errorf("virtual memory: %w", err)
	}
	reading.MemUsedBytes = vm.Used
	reading.MemTotalBytes = vm.Total

	if includeSwap {
		swap, err := mem.SwapMemoryWithContext(ctx)
		if err != nil {
			return reading, fmt.Errorf("swap memory: %w", err)
		}
		reading.SwapUsedBytes = swap.Used
		reading.SwapTotalBytes = swap.Total
	}

	return reading, nil
}
