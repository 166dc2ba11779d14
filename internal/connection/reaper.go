package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reaper periodically closes connections that have been idle too long.
type Reaper struct {
	cfg      ReaperConfig
	registry *Registry
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReaper creates a Reaper over registry.
func NewReaper(cfg ReaperConfig, registry *Registry, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Start begins the sweep loop.
func (r *Reaper) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("reaper started",
		"interval", r.cfg.Interval,
		"idle_timeout", r.cfg.IdleTimeout,
	)
	return nil
}

// Stop halts the sweep loop.
func (r *Reaper) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("reaper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reaper) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep closes and unregisters every connection idle past the threshold and
// returns how many were removed.
func (r *Reaper) Sweep() int {
	cutoff := r.registry.now().Add(-r.cfg.IdleTimeout)
	idle := r.registry.idleSince(cutoff)

	for id, t := range idle {
		if err := t.Close(); err != nil {
			r.logger.Debug("close idle connection failed", "conn_id", id, "error", err)
		}
		r.registry.Unregister(id)
	}

	if len(idle) > 0 {
		r.logger.Info("reaped idle connections",
			"count", len(idle),
			"remaining", r.registry.Len(),
		)
	}
	return len(idle)
}
