package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/matchfeed/internal/metrics"
	"github.com/rickgao/matchfeed/internal/protocol"
)

// fakeTransport records frames in memory.
type fakeTransport struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	sendErr error
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeTransport) messages(t *testing.T) []protocol.ServerMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]protocol.ServerMessage, 0, len(f.frames))
	for _, frame := range f.frames {
		var m protocol.ServerMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			t.Fatalf("unmarshal frame %s: %v", frame, err)
		}
		out = append(out, m)
	}
	return out
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("conn-%d", n)
	}
}

func newTestRegistry(clock *testClock) (*Registry, *metrics.Collector) {
	stats := metrics.NewCollector()
	opts := []RegistryOption{WithIDGenerator(sequentialIDs())}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	return NewRegistry(stats, nil, opts...), stats
}

func TestRegistry_Register(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	reg, stats := newTestRegistry(clock)

	id := reg.Register(&fakeTransport{})
	if id != "conn-1" {
		t.Errorf("id = %q, want conn-1", id)
	}

	info, ok := reg.Get(id)
	if !ok {
		t.Fatal("registered connection not found")
	}
	if info.Authenticated {
		t.Error("new connection should not be authenticated")
	}
	if info.Identity != "" {
		t.Errorf("Identity = %q, want empty", info.Identity)
	}
	if len(info.Subscriptions) != 0 {
		t.Errorf("Subscriptions = %v, want empty", info.Subscriptions)
	}
	if !info.CreatedAt.Equal(clock.Now()) || !info.LastActivityAt.Equal(clock.Now()) {
		t.Errorf("timestamps = %v/%v, want %v", info.CreatedAt, info.LastActivityAt, clock.Now())
	}

	s := stats.Snapshot()
	if s.TotalConnections != 1 || s.ActiveConnections != 1 {
		t.Errorf("stats = %+v, want total=1 active=1", s)
	}
}

func TestRegistry_DefaultIDsAreUnique(t *testing.T) {
	reg := NewRegistry(nil, nil)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := reg.Register(&fakeTransport{})
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if reg.Len() != 100 {
		t.Errorf("Len = %d, want 100", reg.Len())
	}
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	reg, stats := newTestRegistry(nil)

	id := reg.Register(&fakeTransport{})
	reg.Unregister(id)
	reg.Unregister(id)
	reg.Unregister("unknown")

	if _, ok := reg.Get(id); ok {
		t.Error("connection still registered")
	}
	s := stats.Snapshot()
	if s.ActiveConnections != 0 {
		t.Errorf("ActiveConnections = %d, want 0", s.ActiveConnections)
	}
	if s.TotalConnections != 1 {
		t.Errorf("TotalConnections = %d, want 1", s.TotalConnections)
	}
}

func TestRegistry_RecordActivity(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	reg, _ := newTestRegistry(clock)

	id := reg.Register(&fakeTransport{})
	clock.Advance(time.Minute)
	reg.RecordActivity(id)
	reg.RecordActivity("unknown")

	info, _ := reg.Get(id)
	if !info.LastActivityAt.Equal(clock.Now()) {
		t.Errorf("LastActivityAt = %v, want %v", info.LastActivityAt, clock.Now())
	}
}

func TestRegistry_Send(t *testing.T) {
	reg, stats := newTestRegistry(nil)
	ft := &fakeTransport{}
	id := reg.Register(ft)

	if err := reg.Send(id, protocol.Pong()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msgs := ft.messages(t)
	if len(msgs) != 1 || msgs[0].Type != protocol.TypePong {
		t.Fatalf("messages = %+v, want one pong", msgs)
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
	if got := stats.Snapshot().MessagesSent; got != 1 {
		t.Errorf("MessagesSent = %d, want 1", got)
	}

	if err := reg.Send("unknown", protocol.Pong()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Send(unknown) = %v, want ErrNotFound", err)
	}

	ft.Close()
	if err := reg.Send(id, protocol.Pong()); !errors.Is(err, ErrClosed) {
		t.Errorf("Send(closed) = %v, want ErrClosed", err)
	}
	if got := stats.Snapshot().MessagesSent; got != 1 {
		t.Errorf("MessagesSent after failed sends = %d, want 1", got)
	}
}

func TestRegistry_BindAndLookup(t *testing.T) {
	reg, _ := newTestRegistry(nil)

	a := reg.Register(&fakeTransport{})
	b := reg.Register(&fakeTransport{})

	if _, ok := reg.LookupByIdentity("athlete-1"); ok {
		t.Fatal("lookup before bind should miss")
	}

	if err := reg.Bind(a, "athlete-1"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if got, ok := reg.LookupByIdentity("athlete-1"); !ok || got != a {
		t.Errorf("lookup = %q,%v, want %q", got, ok, a)
	}

	// Last bind wins.
	if err := reg.Bind(b, "athlete-1"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if got, _ := reg.LookupByIdentity("athlete-1"); got != b {
		t.Errorf("lookup = %q, want %q", got, b)
	}

	// Dropping the newest falls back to the older live binding.
	reg.Unregister(b)
	if got, ok := reg.LookupByIdentity("athlete-1"); !ok || got != a {
		t.Errorf("lookup after unregister = %q,%v, want %q", got, ok, a)
	}

	// Rebinding a connection removes its old index entry.
	if err := reg.Bind(a, "athlete-2"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if _, ok := reg.LookupByIdentity("athlete-1"); ok {
		t.Error("stale identity still resolves")
	}
	info, _ := reg.Get(a)
	if !info.Authenticated || info.Identity != "athlete-2" {
		t.Errorf("info = %+v, want authenticated as athlete-2", info)
	}
}

func TestRegistry_BindErrors(t *testing.T) {
	reg, _ := newTestRegistry(nil)
	id := reg.Register(&fakeTransport{})

	if err := reg.Bind(id, ""); !errors.Is(err, ErrEmptyID) {
		t.Errorf("Bind(empty) = %v, want ErrEmptyID", err)
	}
	if err := reg.Bind("unknown", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Bind(unknown) = %v, want ErrNotFound", err)
	}
	if info, _ := reg.Get(id); info.Authenticated {
		t.Error("failed bind must not authenticate")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	reg, stats := newTestRegistry(nil)

	transports := []*fakeTransport{{}, {}, {}}
	for _, ft := range transports {
		reg.Register(ft)
	}

	if n := reg.CloseAll(); n != 3 {
		t.Errorf("CloseAll = %d, want 3", n)
	}
	for i, ft := range transports {
		if ft.IsOpen() {
			t.Errorf("transport %d still open", i)
		}
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
	if got := stats.Snapshot().ActiveConnections; got != 0 {
		t.Errorf("ActiveConnections = %d, want 0", got)
	}
}

func TestRegistry_IDs(t *testing.T) {
	reg, _ := newTestRegistry(nil)
	reg.Register(&fakeTransport{})
	reg.Register(&fakeTransport{})

	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "conn-1" || ids[1] != "conn-2" {
		t.Errorf("IDs = %v", ids)
	}
}
