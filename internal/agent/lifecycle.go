package agent

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

const healthLogInterval = 30 * time.Second

func (a *Agent) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.hub.Run(gctx)
	})
	g.Go(func() error {
		return a.ups.Run(gctx)
	})
	g.Go(func() error {
		return a.settings.Watch(gctx)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(healthLogInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.logger.Debug("agent health", "snapshot", a.health.Snapshot())
		}
	}
}

func (a *Agent) shutdown(ctx context.Context) {
	if err := a.sink.Close(ctx); err != nil {
		a.logger.Warn("feed close failed", "error", err)
	}
	a.health.SetFeedConnected(false)
}
