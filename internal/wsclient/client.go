// Package wsclient is a small client for the matchd WebSocket endpoint. It is
// used by wsprobe and by tests that need to drive a live session.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/matchfeed/internal/protocol"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale")
	ErrAlreadyClosed   = errors.New("client already closed")
)

// Config holds client connection settings.
type Config struct {
	URL              string
	Origin           string
	BufferSize       int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	// StaleAfter is how long the client tolerates hearing nothing from the
	// server (frames, pings or pongs) before reporting ErrStaleConnection.
	StaleAfter       time.Duration
}

// DefaultConfig returns settings that match matchd's server defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		BufferSize:       256,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		StaleAfter:       90 * time.Second,
	}
}

// Message is one server frame with its local receive time. Decoded is zero
// and DecodeErr set when the frame is not a server message.
type Message struct {
	Data       []byte
	ReceivedAt time.Time
	Decoded    protocol.ServerMessage
	DecodeErr  error
}

// Client is a single WebSocket session to matchd.
type Client struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	messages chan Message
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
	lastSeen  time.Time
}

// New creates a client. Zero-valued config fields fall back to DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig(cfg.URL)
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan Message, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the server and starts the read and heartbeat loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	if c.cfg.Origin != "" {
		header.Set("Origin", c.cfg.Origin)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastSeen = time.Now()
	c.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

// Close sends a close frame and tears the connection down. Safe to call more
// than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// Send writes a raw text frame.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SendMessage encodes and writes a client frame.
func (c *Client) SendMessage(m protocol.ClientMessage) error {
	data, err := protocol.EncodeClient(m)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Authenticate sends an authenticate frame carrying token.
func (c *Client) Authenticate(token string) error {
	return c.SendMessage(protocol.Authenticate{Token: token})
}

// Subscribe asks the server to add the connection to channel.
func (c *Client) Subscribe(channel string) error {
	return c.SendMessage(protocol.Subscribe{Channel: channel})
}

// Unsubscribe asks the server to remove the connection from channel.
func (c *Client) Unsubscribe(channel string) error {
	return c.SendMessage(protocol.Unsubscribe{Channel: channel})
}

// Ping sends an application-level ping frame. The server answers with pong.
func (c *Client) Ping() error {
	return c.SendMessage(protocol.Ping{})
}

// Messages returns received server frames. Frames are dropped when the buffer
// is full.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Errors reports the error that ended the session.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// IsConnected reports whether the session is live.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Client) fail(err error) {
	select {
	case c.errors <- err:
	default:
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.fail(err)
			}
			return
		}
		c.touch()

		msg := Message{Data: data, ReceivedAt: receivedAt}
		if err := json.Unmarshal(data, &msg.Decoded); err != nil {
			msg.DecodeErr = err
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message", "type", msg.Decoded.Type)
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			lastSeen := c.lastSeen
			c.mu.RUnlock()

			if time.Since(lastSeen) > c.cfg.StaleAfter {
				c.logger.Warn("nothing heard from server, connection stale",
					"last_seen", lastSeen,
					"timeout", c.cfg.StaleAfter,
				)
				c.fail(ErrStaleConnection)
				return
			}
		}
	}
}
