package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives periodic snapshots.
type Sink interface {
	Report(s Snapshot)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(Snapshot)

func (f SinkFunc) Report(s Snapshot) {
	f(s)
}

// LogSink writes snapshots to a slog logger.
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(s Snapshot) {
		logger.Info("connection stats",
			"total_connections", s.TotalConnections,
			"active_connections", s.ActiveConnections,
			"messages_received", s.MessagesReceived,
			"messages_sent", s.MessagesSent,
			"errors", s.Errors,
		)
	})
}

// Reporter periodically emits collector snapshots to a sink.
type Reporter struct {
	interval  time.Duration
	collector *Collector
	sink      Sink
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter creates a Reporter. A nil sink logs through logger.
func NewReporter(interval time.Duration, collector *Collector, sink Sink, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = LogSink(logger)
	}
	return &Reporter{
		interval:  interval,
		collector: collector,
		sink:      sink,
		logger:    logger,
	}
}

// Start begins the reporting loop.
func (r *Reporter) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("stats reporter started", "interval", r.interval)
	return nil
}

// Stop halts the loop and waits for it to exit.
func (r *Reporter) Stop(ctx context.Context) error {
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
		r.logger.Info("stats reporter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sink.Report(r.collector.Snapshot())
		}
	}
}
