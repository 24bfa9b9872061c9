package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sysmon-agent/internal/collector"
	"sysmon-agent/internal/config"
	"sysmon-agent/internal/model"
	"sysmon-agent/internal/netif"
	"sysmon-agent/internal/source"
	"sysmon-agent/internal/stream"
)

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	settings  *config.Store
	hub       *stream.Hub
	sink      stream.Sink
	scheduler *collector.Scheduler
	ups       *source.UPS
	health    *HealthStatus
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	settings, err := config.LoadStore(cfg.SettingsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("settings store: %w", err)
	}

	gpu := source.NewGPU(context.Background(), cfg.GPUQueryTimeout, logger)
	ups := source.NewUPS(cfg.UPSCommand, cfg.UPSTarget, cfg.UPSInterval, cfg.UPSTimeout, logger)

	sysRoot := cfg.SysClassNet
	if sysRoot == "" {
		sysRoot = netif.DefaultSysRoot
	}

	sampler := collector.NewSampler(
		logger,
		settings,
		source.NewCPUMem(),
		source.NewThermal(),
		source.NewNetDev(sysRoot),
		gpu,
		ups,
		cfg.Hostname,
		sysRoot,
	)

	health := NewHealthStatus()
	health.SetGPUEnabled(gpu.Enabled())

	hub := stream.NewHub(logger, cfg.ListenAddr, settings)
	wrappedSink := &healthSink{sink: hub, health: health}
	scheduler := collector.NewScheduler(logger, sampler, wrappedSink, cfg.SampleInterval, cfg.ErrorBackoff)

	return &Agent{
		cfg:       cfg,
		logger:    logger,
		settings:  settings,
		hub:       hub,
		sink:      wrappedSink,
		scheduler: scheduler,
		ups:       ups,
		health:    health,
	}, nil
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting sysmon-agent",
		"hostname", a.cfg.Hostname,
		"listen_addr", a.cfg.ListenAddr,
		"sample_interval", a.cfg.SampleInterval,
		"gpu_enabled", a.health.GPUEnabled(),
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// graceful stop completed in time
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("sysmon-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

// healthSink wraps the feed hub so every publish outcome is reflected in
// the health status.
type healthSink struct {
	sink   stream.Sink
	health *HealthStatus
}

func (s *healthSink) Publish(ctx context.Context, snapshot model.Snapshot) error {
	if err := s.sink.Publish(ctx, snapshot); err != nil {
		s.health.SetFeedConnected(false)
		return err
	}
	s.health.SetFeedConnected(true)
	if snapshot.TimestampUnix > 0 {
		s.health.MarkSample(time.Unix(snapshot.TimestampUnix, 0).UTC())
	}
	return nil
}

func (s *healthSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
