package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/matchfeed/internal/protocol"
	"github.com/rickgao/matchfeed/internal/wsclient"
)

func TestProbe(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		send := func(m protocol.ServerMessage) {
			data, _ := m.Encode(time.Now())
			_ = ws.WriteMessage(websocket.TextMessage, data)
		}
		send(protocol.System("conn-7"))
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			msg, _ := protocol.DecodeClient(data)
			switch m := msg.(type) {
			case protocol.Authenticate:
				send(protocol.AuthSuccess("athlete-" + m.Token))
			case protocol.Subscribe:
				send(protocol.Subscribed(m.Channel))
			}
		}
	}))
	defer server.Close()

	var out bytes.Buffer
	opts := probeOptions{
		URL:      "ws" + strings.TrimPrefix(server.URL, "http"),
		Token:    "1",
		Channels: []string{"offers"},
		Count:    3,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := probe(ctx, opts, &out, logger); err != nil {
		t.Fatalf("probe: %v", err)
	}

	for _, want := range []string{"conn=conn-7", "identity=athlete-1", "channel=offers"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestProbe_ConnectFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := probeOptions{URL: "ws://127.0.0.1:1/ws"}
	if err := probe(context.Background(), opts, io.Discard, logger); err == nil {
		t.Error("expected connect error")
	}
}

func TestPrintMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		msg  wsclient.Message
		raw  bool
		want string
	}{
		{
			name: "match",
			msg: wsclient.Message{ReceivedAt: at, Decoded: protocol.Match("New match", protocol.MatchData{
				MatchID:      "m-1",
				OverallScore: 88,
				Campaign:     protocol.CampaignRef{ID: "camp-1"},
				Counterparty: protocol.CounterpartRef{ID: "brand-1"},
			})},
			want: "score=88 campaign=camp-1 counterparty=brand-1 match=m-1",
		},
		{
			name: "error",
			msg:  wsclient.Message{ReceivedAt: at, Decoded: protocol.Error("rate limit exceeded")},
			want: "rate limit exceeded",
		},
		{
			name: "raw",
			msg:  wsclient.Message{ReceivedAt: at, Data: []byte(`{"type":"pong"}`), Decoded: protocol.Pong()},
			raw:  true,
			want: `{"type":"pong"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printMessage(&buf, tt.msg, tt.raw)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want substring %q", buf.String(), tt.want)
			}
		})
	}
}
