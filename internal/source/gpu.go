package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var gpuQueryFields = []string{
	"utilization.gpu",
	"temperature.gpu",
	"memory.used",
	"memory.total",
}

// GPUReading holds device-0 telemetry. VRAM values are bytes; the
// collector converts to MB for display.
type GPUReading struct {
	LoadPercent    float64
	TempCelsius    float64
	VRAMUsedBytes  uint64
	VRAMTotalBytes uint64
}

type gpuQueryRunner func(ctx context.Context, fields []string) ([][]string, error)

// GPU wraps NVIDIA telemetry via nvidia-smi. Probing happens exactly once
// at construction: if the tool is missing or the first device query fails,
// the adapter enters a terminal disabled state and never retries for the
// process lifetime. Only device index 0 is reported; multi-GPU hosts are
// out of scope.
type GPU struct {
	logger  *slog.Logger
	run     gpuQueryRunner
	timeout time.Duration
	enabled bool
}

func NewGPU(ctx context.Context, timeout time.Duration, logger *slog.Logger) *GPU {
	return newGPUWithRunner(ctx, timeout, logger, runNvidiaQueryCSV)
}

func newGPUWithRunner(ctx context.Context, timeout time.Duration, logger *slog.Logger, run gpuQueryRunner) *GPU {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	g := &GPU{logger: logger, run: run, timeout: timeout}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := g.query(probeCtx); err != nil {
		logger.Info("gpu telemetry disabled", "error", err)
		return g
	}
	g.enabled = true
	return g
}

func (g *GPU) Enabled() bool {
	return g.enabled
}

// Read returns the current device-0 telemetry, or an error for this cycle
// only. A disabled adapter always errors; the caller substitutes the
// fallback without re-probing.
func (g *GPU) Read(ctx context.Context) (GPUReading, error) {
	if !g.enabled {
		return GPUReading{}, fmt.Errorf("gpu adapter disabled")
	}
	queryCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.query(queryCtx)
}

func (g *GPU) query(ctx context.Context) (GPUReading, error) {
	rows, err := g.run(ctx, gpuQueryFields)
	if err != nil {
		return GPUReading{}, fmt.Errorf("nvidia-smi query: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) < len(gpuQueryFields) {
		return GPUReading{}, fmt.Errorf("nvidia-smi returned no device rows")
	}

	row := rows[0]
	return GPUReading{
		LoadPercent:    parseSMIFloat(row[0]),
		TempCelsius:    parseSMIFloat(row[1]),
		VRAMUsedBytes:  mibToBytes(parseSMIUint(row[2])),
		VRAMTotalBytes: mibToBytes(parseSMIUint(row[3])),
	}, nil
}

func runNvidiaQueryCSV(ctx context.Context, fields []string) ([][]string, error) {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return nil, err
	}
	args := []string{
		"--query-gpu=" + strings.Join(fields, ","),
		"--format=csv,noheader,nounits",
		"--id=0",
	}
	out, err := exec.CommandContext(ctx, "nvidia-smi", args...).Output()
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(strings.NewReader(string(out)))
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func parseSMIFloat(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.Fields(raw)[0]
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}

func parseSMIUint(raw string) uint64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseUint(strings.Fields(raw)[0], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func mibToBytes(v uint64) uint64 {
	return v * 1024 * 1024
}
