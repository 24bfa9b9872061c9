package source

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"sysmon-agent/internal/model"
)

const upsTemperatureKey = "ups.temperature"

type upsRunner func(ctx context.Context, command, target string) ([]byte, error)

// UPS polls an external NUT status tool (upsc) for the UPS temperature.
// The tool can hang on an unreachable UPS daemon, so the poll runs on its
// own loop with a strict per-invocation timeout; the sampler only ever
// reads the latest cached value and is never blocked by the subprocess.
type UPS struct {
	logger   *slog.Logger
	command  string
	target   string
	interval time.Duration
	timeout  time.Duration
	run      upsRunner
	last     atomic.Value // string
}

func NewUPS(command, target string, interval, timeout time.Duration, logger *slog.Logger) *UPS {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	u := &UPS{
		logger:   logger,
		command:  command,
		target:   target,
		interval: interval,
		timeout:  timeout,
		run:      runUPSCommand,
	}
	u.last.Store(model.TempUnavailable)
	return u
}

// Last returns the most recently polled temperature string, or the "N/A"
// sentinel before the first successful poll.
func (u *UPS) Last() string {
	return u.last.Load().(string)
}

// Run polls until the context is canceled. The first poll happens
// immediately so the value is usually ready by the second sampling cycle.
func (u *UPS) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			u.poll(ctx)
		}
	}
}

func (u *UPS) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	out, err := u.run(pollCtx, u.command, u.target)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown aborted the poll; keep the last real value.
			return
		}
		u.logger.Debug("ups status query failed", "command", u.command, "target", u.target, "error", err)
		u.last.Store(model.TempUnavailable)
		return
	}
	u.last.Store(parseUPSValue(out, upsTemperatureKey))
}

func runUPSCommand(ctx context.Context, command, target string) ([]byte, error) {
	return exec.CommandContext(ctx, command, target).Output()
}

// parseUPSValue scans upsc's "key: value" lines for the first line
// containing key and returns the text after the first colon, trimmed.
// A missing key yields the "N/A" sentinel.
func parseUPSValue(output []byte, key string) string {
	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, key) {
			continue
		}
		_, value, found := strings.Cut(line, ":")
		if !found {
			return model.TempUnavailable
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return model.TempUnavailable
		}
		return value
	}
	return model.TempUnavailable
}
