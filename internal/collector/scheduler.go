package collector

import (
	"context"
	"log/slog"
	"time"

	"sysmon-agent/internal/stream"
)

// Scheduler drives the sampling cadence. One snapshot is produced per
// tick; the work runs inline on the loop goroutine, so a slow cycle
// delays the next tick instead of overlapping it.
type Scheduler struct {
	logger       *slog.Logger
	sampler      *Sampler
	sink         stream.Sink
	interval     time.Duration
	errorBackoff time.Duration
}

func NewScheduler(
	logger *slog.Logger,
	sampler *Sampler,
	sink stream.Sink,
	interval, errorBackoff time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}
	return &Scheduler{
		logger:       logger,
		sampler:      sampler,
		sink:         sink,
		interval:     interval,
		errorBackoff: errorBackoff,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.sampleAndPublish(ctx); err != nil {
		s.logger.Warn("initial sample publish failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sampleAndPublish(ctx); err != nil {
				s.logger.Error("sample publish failed", "error", err)
				s.sleepWithContext(ctx, s.errorBackoff)
			}
		}
	}
}

func (s *Scheduler) sampleAndPublish(ctx context.Context) error {
	snapshot := s.sampler.Sample(ctx, time.Now())
	return s.sink.Publish(ctx, snapshot)
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
