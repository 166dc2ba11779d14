package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the server side of one WebSocket session. Frames passed to Send are
// written by a single writer goroutine in FIFO order.
type Conn struct {
	cfg    TransportConfig
	logger *slog.Logger

	ws    *websocket.Conn
	queue *sendQueue
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewConn wraps an upgraded WebSocket connection.
func NewConn(ws *websocket.Conn, cfg TransportConfig, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}

	return &Conn{
		cfg:    cfg,
		logger: logger,
		ws:     ws,
		queue:  newSendQueue(cfg.SendQueueSize),
		done:   make(chan struct{}),
	}
}

// Send queues a frame for the write pump.
func (c *Conn) Send(data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	c.mu.RUnlock()

	return c.queue.push(data)
}

// IsOpen reports whether the connection still accepts frames.
func (c *Conn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.queue.close()

	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.ws.Close()
}

// ReadLoop reads frames until the socket fails or is closed. onActivity and
// then onFrame are called for every text or binary frame. Pongs extend the
// read deadline but are not activity, so a peer that only answers pings still
// goes idle. ReadLoop blocks; the caller unregisters the connection when it
// returns.
func (c *Conn) ReadLoop(onFrame func([]byte), onActivity func()) error {
	if c.cfg.MaxMessageBytes > 0 {
		c.ws.SetReadLimit(c.cfg.MaxMessageBytes)
	}
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return err
		}

		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		onActivity()

		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			onFrame(data)
		}
	}
}

// WritePump drains the send queue to the socket and sends keepalive pings.
// It returns when the connection closes or a write fails.
func (c *Conn) WritePump() {
	go c.pingLoop()

	for {
		frame, ok := c.queue.pop()
		if !ok {
			return
		}

		c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.logger.Debug("websocket write failed", "error", err)
			c.Close()
			return
		}
	}
}

// pingLoop keeps the peer's read deadline moving. WriteControl is safe to
// call concurrently with WriteMessage.
func (c *Conn) pingLoop() {
	if c.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
