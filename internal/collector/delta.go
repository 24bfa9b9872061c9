package collector

import (
	"sync"
	"time"
)

type deltaSample struct {
	value uint64
	at    time.Time
}

// deltaEngine converts cumulative counters to per-interval deltas. It is
// the only state carried across sampling cycles besides the catalog.
type deltaEngine struct {
	mu      sync.Mutex
	samples map[string]deltaSample
}

func newDeltaEngine() *deltaEngine {
	return &deltaEngine{samples: make(map[string]deltaSample)}
}

// ObserveCounter stores the current counter and returns the delta plus
// elapsed seconds since the previous sample. ok is false on the first
// observation, on a non-advancing clock, and on a counter reset
// (replugged interface, driver restart), so callers report zero for that
// interval instead of a huge negative-wrap value.
func (e *deltaEngine) ObserveCounter(key string, now time.Time, cur uint64) (delta uint64, seconds float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, exists := e.samples[key]
	e.samples[key] = deltaSample{value: cur, at: now}
	if !exists {
		return 0, 0, false
	}

	seconds = now.Sub(prev.at).Seconds()
	if seconds <= 0 {
		return 0, 0, false
	}
	if cur < prev.value {
		return 0, seconds, false
	}
	return cur - prev.value, seconds, true
}

// Forget drops the stored sample for a key. Used when an interface
// leaves the catalog so a later return starts a fresh baseline.
func (e *deltaEngine) Forget(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.samples, key)
}
