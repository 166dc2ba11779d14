package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rickgao/matchfeed/internal/api"
	"github.com/rickgao/matchfeed/internal/auth"
	"github.com/rickgao/matchfeed/internal/config"
	"github.com/rickgao/matchfeed/internal/connection"
	"github.com/rickgao/matchfeed/internal/dispatch"
	"github.com/rickgao/matchfeed/internal/metrics"
	"github.com/rickgao/matchfeed/internal/router"
	"github.com/rickgao/matchfeed/internal/scoring"
	"github.com/rickgao/matchfeed/internal/server"
	"github.com/rickgao/matchfeed/internal/telemetry"
	"github.com/rickgao/matchfeed/internal/version"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket server and internal match API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting matchd",
		"version", version.Version,
		"commit", version.Commit,
		"storage", cfg.Storage.Driver,
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	collector := metrics.NewCollector()
	if err := collector.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register connection metrics: %w", err)
	}
	dispatchMetrics, err := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register dispatch metrics: %w", err)
	}

	authenticator, err := newAuthenticator(cfg.Auth, logger)
	if err != nil {
		return err
	}

	engine, err := newScoringEngine(cfg.Scoring, logger)
	if err != nil {
		return err
	}

	registry := connection.NewRegistry(collector, logger)
	frames := router.New(router.Config{
		RateLimit: cfg.Connections.RateLimit,
		RateBurst: cfg.Connections.RateBurst,
	}, registry, authenticator, logger)
	dispatcher := dispatch.New(store, engine, registry, logger, dispatch.WithMetrics(dispatchMetrics))

	reaper := connection.NewReaper(connection.ReaperConfig{
		Interval:    cfg.Connections.ReapInterval,
		IdleTimeout: cfg.Connections.IdleTimeout,
	}, registry, logger)
	if err := reaper.Start(ctx); err != nil {
		return fmt.Errorf("start reaper: %w", err)
	}

	var reporter *metrics.Reporter
	if cfg.Stats.ReportInterval > 0 {
		reporter = metrics.NewReporter(cfg.Stats.ReportInterval, collector, nil, logger)
		if err := reporter.Start(ctx); err != nil {
			return fmt.Errorf("start stats reporter: %w", err)
		}
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		InternalToken:  cfg.Server.InternalToken,
		Transport: connection.TransportConfig{
			PingInterval:    cfg.Connections.PingInterval,
			PongWait:        cfg.Connections.PongWait,
			WriteTimeout:    cfg.Connections.WriteTimeout,
			MaxMessageBytes: cfg.Connections.MaxMessageBytes,
			SendQueueSize:   cfg.Connections.SendQueueSize,
		},
	}, server.Deps{
		Registry: registry,
		Frames:   frames,
		Matches:  dispatcher,
		Store:    store,
	}, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	logger.Info("matchd running", "addr", cfg.Server.Addr)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := reaper.Stop(shutdownCtx); err != nil {
		logger.Error("reaper shutdown", "error", err)
	}
	if reporter != nil {
		if err := reporter.Stop(shutdownCtx); err != nil {
			logger.Error("stats reporter shutdown", "error", err)
		}
	}

	logger.Info("matchd stopped")
	return nil
}

func newAuthenticator(cfg config.AuthConfig, logger *slog.Logger) (auth.Authenticator, error) {
	authCfg := auth.Config{
		HMACSecret:         []byte(cfg.HMACSecret),
		Issuer:             cfg.Issuer,
		Audience:           cfg.Audience,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.PublicKeyPath != "" {
		key, err := auth.LoadPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		authCfg.PublicKey = key
	}
	return auth.New(authCfg, logger)
}

// newScoringEngine builds the engine. Without a provider URL every score comes
// from the local heuristic.
func newScoringEngine(cfg config.ScoringConfig, logger *slog.Logger) (*scoring.Engine, error) {
	var provider scoring.Provider
	if cfg.ProviderURL != "" {
		provider = api.NewClient(cfg.ProviderURL, cfg.APIKey,
			api.WithLogger(logger),
			api.WithTimeout(cfg.Timeout),
		)
		logger.Info("scoring provider configured", "url", cfg.ProviderURL)
	} else {
		logger.Warn("no scoring provider configured, using heuristic scores only")
	}

	return scoring.NewEngine(scoring.Config{
		Weights:       scoring.WeightsFromConfig(cfg.Weights),
		Timeout:       cfg.Timeout,
		MaxAttempts:   cfg.MaxAttempts,
		RetryDelay:    cfg.RetryDelay,
		RetryMaxDelay: cfg.RetryMaxDelay,
	}, provider, logger)
}
