package agent

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	feedConnected atomic.Bool
	gpuEnabled    atomic.Bool
	lastSampleAt  atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.feedConnected.Store(false)
	return h
}

func (h *HealthStatus) SetFeedConnected(ok bool) {
	h.feedConnected.Store(ok)
}

func (h *HealthStatus) SetGPUEnabled(ok bool) {
	h.gpuEnabled.Store(ok)
}

func (h *HealthStatus) GPUEnabled() bool {
	return h.gpuEnabled.Load()
}

func (h *HealthStatus) MarkSample(ts time.Time) {
	h.lastSampleAt.Store(ts.UnixNano())
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"feed_connected": h.feedConnected.Load(),
		"gpu_enabled":    h.gpuEnabled.Load(),
	}
	if v := h.lastSampleAt.Load(); v > 0 {
		out["last_sample_at"] = time.Unix(0, v).UTC()
	}
	return out
}
