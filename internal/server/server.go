package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/matchfeed/internal/connection"
	"github.com/rickgao/matchfeed/internal/model"
)

// FrameHandler processes one inbound client frame.
type FrameHandler interface {
	Handle(connID string, frame []byte)
	Forget(connID string)
}

// MatchService is the dispatcher surface exposed on /internal.
type MatchService interface {
	CreateMatch(ctx context.Context, subjectID, counterpartyID, campaignID string) (model.MatchScore, error)
	ListUnclaimed(ctx context.Context, subjectID string, limit int) ([]model.MatchScore, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds listener and WebSocket settings.
type Config struct {
	Addr           string
	AllowedOrigins []string // Empty = any origin
	InternalToken  string   // Empty = /internal routes disabled
	Transport      connection.TransportConfig
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Registry *connection.Registry
	Frames   FrameHandler
	Matches  MatchService
	Store    Pinger
	Gatherer prometheus.Gatherer // nil = prometheus.DefaultGatherer
}

// Server owns the HTTP listener.
type Server struct {
	cfg      Config
	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader

	httpServer *http.Server
	wg         sync.WaitGroup
}

// New creates a Server. Call Start to listen.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	if s.cfg.InternalToken != "" && s.deps.Matches != nil {
		r.Route("/internal", func(r chi.Router) {
			r.Use(s.requireInternalToken)
			r.Post("/matches", s.handleCreateMatch)
			r.Get("/subjects/{subjectID}/matches/unclaimed", s.handleListUnclaimed)
		})
	} else {
		s.logger.Warn("internal match routes disabled: no internal token configured")
	}

	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Stop stops accepting requests, then closes every live WebSocket. Hijacked
// connections are not tracked by http.Server, so they are drained through the
// registry.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	closed := s.deps.Registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("http server stopped", "closed_connections", closed)
	case <-ctx.Done():
		s.logger.Warn("http server stop timed out")
	}
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
