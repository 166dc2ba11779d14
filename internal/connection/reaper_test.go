package connection

import (
	"context"
	"testing"
	"time"
)

func TestReaper_Sweep(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	reg, stats := newTestRegistry(clock)

	idle := &fakeTransport{}
	busy := &fakeTransport{}
	idleID := reg.Register(idle)
	busyID := reg.Register(busy)
	reg.Bind(idleID, "athlete-1")

	clock.Advance(11 * time.Minute)
	reg.RecordActivity(busyID)

	r := NewReaper(ReaperConfig{Interval: time.Minute, IdleTimeout: 10 * time.Minute}, reg, nil)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}

	if idle.IsOpen() {
		t.Error("idle transport not closed")
	}
	if !busy.IsOpen() {
		t.Error("active transport closed")
	}
	if _, ok := reg.Get(idleID); ok {
		t.Error("idle connection still registered")
	}
	if _, ok := reg.LookupByIdentity("athlete-1"); ok {
		t.Error("reaped connection still resolvable by identity")
	}
	if got := stats.Snapshot().ActiveConnections; got != 1 {
		t.Errorf("ActiveConnections = %d, want 1", got)
	}

	// The read loop unregistering afterwards is harmless.
	reg.Unregister(idleID)
	if got := stats.Snapshot().ActiveConnections; got != 1 {
		t.Errorf("ActiveConnections after double unregister = %d, want 1", got)
	}
}

func TestReaper_StartStop(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	reg, _ := newTestRegistry(clock)

	ft := &fakeTransport{}
	reg.Register(ft)
	clock.Advance(time.Hour)

	r := NewReaper(ReaperConfig{Interval: 10 * time.Millisecond, IdleTimeout: time.Minute}, reg, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
	if ft.IsOpen() {
		t.Error("transport not closed")
	}
}
