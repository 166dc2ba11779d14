package server

import (
	"net/http"

	"github.com/rickgao/matchfeed/internal/connection"
	"github.com/rickgao/matchfeed/internal/protocol"
)

// handleWebSocket upgrades the request and runs the connection until the
// peer goes away, the reaper closes it or the server shuts down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := connection.NewConn(ws, s.cfg.Transport, s.logger)
	id := s.deps.Registry.Register(conn)
	logger := s.logger.With("conn_id", id)
	logger.Info("websocket connected", "remote", r.RemoteAddr)

	go conn.WritePump()

	if err := s.deps.Registry.Send(id, protocol.System(id)); err != nil {
		logger.Warn("failed to send greeting", "error", err)
	}

	err = conn.ReadLoop(
		func(frame []byte) { s.deps.Frames.Handle(id, frame) },
		func() { s.deps.Registry.RecordActivity(id) },
	)

	s.deps.Registry.Unregister(id)
	s.deps.Frames.Forget(id)
	conn.Close()
	logger.Info("websocket disconnected", "reason", err)
}
