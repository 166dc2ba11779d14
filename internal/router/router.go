package router

import (
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/matchfeed/internal/auth"
	"github.com/rickgao/matchfeed/internal/connection"
	"github.com/rickgao/matchfeed/internal/protocol"
)

// Client-facing error texts.
const (
	msgInvalidFormat   = "invalid message format"
	msgRateLimited     = "rate limit exceeded"
	msgChannelRequired = "channel is required"
)

// Config holds inbound frame handling settings.
type Config struct {
	RateLimit float64 // Frames per second per connection, 0 disables
	RateBurst int
}

// Router handles frames received from clients and replies through the
// registry. A Router is shared by all connections.
type Router struct {
	registry *connection.Registry
	auth     auth.Authenticator
	limiter  *limiter
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Router.
func New(cfg Config, registry *connection.Registry, authenticator auth.Authenticator, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		registry: registry,
		auth:     authenticator,
		limiter:  newLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes one frame from connID. Failures are reported to the
// client; the connection is never closed here.
func (r *Router) Handle(connID string, frame []byte) {
	stats := r.registry.Stats()
	stats.MessageReceived()

	if !r.limiter.allow(connID, r.now()) {
		stats.Error()
		r.reply(connID, protocol.Error(msgRateLimited))
		return
	}

	msg, err := protocol.DecodeClient(frame)
	if err != nil {
		stats.Error()
		r.logger.Debug("malformed frame", "conn_id", connID, "error", err)
		r.reply(connID, protocol.Error(msgInvalidFormat))
		return
	}

	switch m := msg.(type) {
	case protocol.Authenticate:
		r.authenticate(connID, m.Token)

	case protocol.Subscribe:
		if err := r.registry.Subscribe(connID, m.Channel); err != nil {
			r.channelError(connID, err)
			return
		}
		r.reply(connID, protocol.Subscribed(m.Channel))

	case protocol.Unsubscribe:
		if err := r.registry.Unsubscribe(connID, m.Channel); err != nil {
			r.channelError(connID, err)
			return
		}
		r.reply(connID, protocol.Unsubscribed(m.Channel))

	case protocol.Ping:
		r.reply(connID, protocol.Pong())

	case protocol.Echo:
		r.reply(connID, protocol.EchoOf(m.Raw))
	}
}

// Forget releases per-connection state once the connection is gone.
func (r *Router) Forget(connID string) {
	r.limiter.forget(connID)
}

func (r *Router) authenticate(connID, token string) {
	identity, err := r.auth.Authenticate(token)
	if err != nil {
		r.logger.Debug("authentication failed", "conn_id", connID, "error", err)
		r.reply(connID, protocol.AuthError(authReason(err)))
		return
	}

	if err := r.registry.Bind(connID, identity); err != nil {
		r.logger.Debug("bind failed", "conn_id", connID, "error", err)
		r.reply(connID, protocol.AuthError(err.Error()))
		return
	}

	r.logger.Info("connection authenticated", "conn_id", connID, "identity", identity)
	r.reply(connID, protocol.AuthSuccess(identity))
}

func (r *Router) channelError(connID string, err error) {
	if errors.Is(err, connection.ErrEmptyChannel) {
		r.reply(connID, protocol.Error(msgChannelRequired))
		return
	}
	r.logger.Debug("subscription change failed", "conn_id", connID, "error", err)
}

func (r *Router) reply(connID string, msg protocol.ServerMessage) {
	if err := r.registry.Send(connID, msg); err != nil {
		r.logger.Debug("reply dropped", "conn_id", connID, "type", msg.Type, "error", err)
	}
}

// authReason maps an authentication error to the text sent to the client.
func authReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return auth.ErrMissingToken.Error()
	case errors.Is(err, auth.ErrExpiredToken):
		return auth.ErrExpiredToken.Error()
	case errors.Is(err, auth.ErrMissingIdentity):
		return auth.ErrMissingIdentity.Error()
	default:
		return auth.ErrInvalidToken.Error()
	}
}
