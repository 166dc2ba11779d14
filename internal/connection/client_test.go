package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// serveConn upgrades one request and hands the server-side Conn to handler.
func serveConn(t *testing.T, cfg TransportConfig, handler func(*Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		handler(NewConn(ws, cfg, nil))
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testTransportConfig() TransportConfig {
	return TransportConfig{
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		WriteTimeout:    time.Second,
		MaxMessageBytes: 1024,
		SendQueueSize:   16,
	}
}

func TestConn_SendIsFIFO(t *testing.T) {
	server := serveConn(t, testTransportConfig(), func(c *Conn) {
		go c.WritePump()
		for i := 0; i < 20; i++ {
			c.Send([]byte{'a' + byte(i)})
		}
		c.ReadLoop(func([]byte) {}, func() {})
		c.Close()
	})
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 20; i++ {
		_, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if data[0] != 'a'+byte(i) {
			t.Fatalf("frame %d = %q, want %q", i, data, 'a'+byte(i))
		}
	}
}

func TestConn_ReadLoopDeliversFramesAndActivity(t *testing.T) {
	var mu sync.Mutex
	var frames []string
	activity := 0
	done := make(chan struct{})

	server := serveConn(t, testTransportConfig(), func(c *Conn) {
		go c.WritePump()
		c.ReadLoop(func(b []byte) {
			mu.Lock()
			frames = append(frames, string(b))
			mu.Unlock()
		}, func() {
			mu.Lock()
			activity++
			mu.Unlock()
		})
		c.Close()
		close(done)
	})
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
	client.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","channel":"x"}`))
	client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 2 {
		t.Fatalf("frames = %v, want 2", frames)
	}
	if activity < 2 {
		t.Errorf("activity = %d, want >= 2", activity)
	}
}

func TestConn_OversizedFrameEndsReadLoop(t *testing.T) {
	cfg := testTransportConfig()
	cfg.MaxMessageBytes = 16
	errCh := make(chan error, 1)

	server := serveConn(t, cfg, func(c *Conn) {
		go c.WritePump()
		errCh <- c.ReadLoop(func([]byte) {}, func() {})
		c.Close()
	})
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64)))

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected read error for oversized frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	closed := make(chan *Conn, 1)
	server := serveConn(t, testTransportConfig(), func(c *Conn) {
		go c.WritePump()
		c.Close()
		c.Close()
		closed <- c
	})
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	select {
	case c := <-closed:
		if c.IsOpen() {
			t.Error("IsOpen() = true after Close")
		}
		if err := c.Send([]byte("x")); err != ErrClosed {
			t.Errorf("Send after Close = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run")
	}
}

func TestConn_PongsDoNotKeepIdleConnectionAlive(t *testing.T) {
	cfg := testTransportConfig()
	cfg.PingInterval = 20 * time.Millisecond
	reg, _ := newTestRegistry(nil)
	handlerDone := make(chan struct{})

	server := serveConn(t, cfg, func(c *Conn) {
		defer close(handlerDone)
		id := reg.Register(c)
		go c.WritePump()
		c.ReadLoop(func([]byte) {}, func() { reg.RecordActivity(id) })
		reg.Unregister(id)
		c.Close()
	})
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	var mu sync.Mutex
	pongs := 0
	client.SetPingHandler(func(data string) error {
		mu.Lock()
		pongs++
		mu.Unlock()
		return client.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	r := NewReaper(ReaperConfig{Interval: 25 * time.Millisecond, IdleTimeout: 150 * time.Millisecond}, reg, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	}()

	select {
	case <-readErr:
	case <-time.After(2 * time.Second):
		t.Fatal("connection answering pings was never reaped")
	}
	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit after reap")
	}

	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
	mu.Lock()
	defer mu.Unlock()
	if pongs < 2 {
		t.Errorf("answered %d pings, want the keepalive to have run", pongs)
	}
}
