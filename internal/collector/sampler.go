package collector

import (
	"context"
	"log/slog"
	"time"

	"sysmon-agent/internal/config"
	"sysmon-agent/internal/model"
	"sysmon-agent/internal/netif"
	"sysmon-agent/internal/source"
)

const bytesPerMB = 1_000_000

// CPUMemSource reads CPU utilization and memory/swap usage for one cycle.
type CPUMemSource interface {
	Read(ctx context.Context, includeSwap bool) (source.CPUMemReading, error)
}

// ThermalSource resolves the CPU package temperature, or nil when no
// matching sensor is exposed.
type ThermalSource interface {
	CPUTemperature(ctx context.Context) *float64
}

// NetDevSource reads cumulative rx/tx byte counters for the named
// interfaces. Interfaces that vanished since discovery are simply absent
// from the result.
type NetDevSource interface {
	Read(interfaces []string) map[string]source.NetCounters
}

// GPUSource reads the primary GPU. Enabled reports the probe outcome
// decided at startup; a disabled source stays disabled for the process
// lifetime.
type GPUSource interface {
	Enabled() bool
	Read(ctx context.Context) (source.GPUReading, error)
}

// UPSSource returns the most recent UPS temperature string collected by
// the background poller.
type UPSSource interface {
	Last() string
}

// Sampler fuses the source adapters into one display-ready snapshot per
// cycle. Adapter handles are long-lived: they are created once and
// refreshed in place, never re-initialized per cycle.
type Sampler struct {
	logger   *slog.Logger
	settings *config.Store
	cpumem   CPUMemSource
	thermal  ThermalSource
	netdev   NetDevSource
	gpu      GPUSource
	ups      UPSSource

	hostname string
	sysRoot  string
	delta    *deltaEngine
	catalog  netif.Catalog
}

func NewSampler(
	logger *slog.Logger,
	settings *config.Store,
	cpumem CPUMemSource,
	thermal ThermalSource,
	netdev NetDevSource,
	gpu GPUSource,
	ups UPSSource,
	hostname, sysRoot string,
) *Sampler {
	return &Sampler{
		logger:   logger,
		settings: settings,
		cpumem:   cpumem,
		thermal:  thermal,
		netdev:   netdev,
		gpu:      gpu,
		ups:      ups,
		hostname: hostname,
		sysRoot:  sysRoot,
		delta:    newDeltaEngine(),
	}
}

// Sample runs one sampling cycle. It never fails: each source degrades
// independently to its fallback value, so the returned snapshot is always
// fully constructed.
func (s *Sampler) Sample(ctx context.Context, now time.Time) model.Snapshot {
	settings := s.settings.Snapshot()

	if s.catalog.RefreshedAt.IsZero() || s.catalog.Stale(now) {
		s.refreshCatalog(settings, now)
	}

	snapshot := model.Snapshot{
		Hostname:      s.hostname,
		TimestampUnix: now.Unix(),
		UPSTemp:       s.ups.Last(),
		Interfaces:    append([]string(nil), s.catalog.Interfaces...),
	}

	reading, err := s.cpumem.Read(ctx, settings.IncludeSwapInRAM)
	if err != nil {
		s.logger.Warn("cpu/memory read failed", "error", err)
	} else {
		snapshot.CPUUsagePercent = reading.CPUBusyPercent
		snapshot.RAMUsagePercent = ramPercent(reading, settings.IncludeSwapInRAM)
	}

	snapshot.CPUTempCelsius = s.thermal.CPUTemperature(ctx)
	snapshot.DownloadMBPS, snapshot.UploadMBPS = s.networkRates(now)
	snapshot.GPU = s.gpuStats(ctx)

	return snapshot
}

func (s *Sampler) refreshCatalog(settings config.Settings, now time.Time) {
	previous := s.catalog
	s.catalog = netif.Discover(s.sysRoot, settings.Filter())
	s.catalog.RefreshedAt = now
	for _, name := range previous.Interfaces {
		if !s.catalog.Contains(name) {
			s.delta.Forget("net:" + name + ":rx")
			s.delta.Forget("net:" + name + ":tx")
		}
	}
}

// networkRates sums per-interface counter deltas over the catalog and
// converts to MB/s. The very first cycle has no baseline and reports 0.
func (s *Sampler) networkRates(now time.Time) (downloadMBPS, uploadMBPS float64) {
	counters := s.netdev.Read(s.catalog.Interfaces)
	for name, c := range counters {
		if delta, seconds, ok := s.delta.ObserveCounter("net:"+name+":rx", now, c.RxBytes); ok {
			downloadMBPS += float64(delta) / seconds / bytesPerMB
		}
		if delta, seconds, ok := s.delta.ObserveCounter("net:"+name+":tx", now, c.TxBytes); ok {
			uploadMBPS += float64(delta) / seconds / bytesPerMB
		}
	}
	return downloadMBPS, uploadMBPS
}

func (s *Sampler) gpuStats(ctx context.Context) *model.GPUStats {
	if !s.gpu.Enabled() {
		return nil
	}
	reading, err := s.gpu.Read(ctx)
	if err != nil {
		s.logger.Warn("gpu read failed", "error", err)
		return nil
	}
	return &model.GPUStats{
		LoadPercent: reading.LoadPercent,
		TempCelsius: reading.TempCelsius,
		VRAMUsedMB:  reading.VRAMUsedBytes / (1024 * 1024),
		VRAMTotalMB: reading.VRAMTotalBytes / (1024 * 1024),
	}
}

// ramPercent computes the integer RAM usage percentage, optionally
// folding swap into both numerator and denominator. Integer truncation
// matches the display contract; a zero total reports 0 instead of
// faulting.
func ramPercent(r source.CPUMemReading, includeSwap bool) int {
	used := r.MemUsedBytes
	total := r.MemTotalBytes
	if includeSwap {
		used += r.SwapUsedBytes
		total += r.SwapTotalBytes
	}
	if total == 0 {
		return 0
	}
	pct := int(used * 100 / total)
	if pct > 100 {
		return 100
	}
	return pct
}
