package connection

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/matchfeed/internal/metrics"
	"github.com/rickgao/matchfeed/internal/protocol"
)

// connState holds the registry's view of one connection.
type connState struct {
	transport     Transport
	identity      string
	authenticated bool
	subscriptions map[string]struct{}
	lastActivity  time.Time
	createdAt     time.Time
}

func (s *connState) info(id string) Info {
	subs := make([]string, 0, len(s.subscriptions))
	for ch := range s.subscriptions {
		subs = append(subs, ch)
	}
	sort.Strings(subs)

	return Info{
		ID:             id,
		Identity:       s.identity,
		Authenticated:  s.authenticated,
		Subscriptions:  subs,
		LastActivityAt: s.lastActivity,
		CreatedAt:      s.createdAt,
	}
}

// Registry tracks live connections, their auth state and subscriptions.
// All methods are safe for concurrent use.
type Registry struct {
	stats  *metrics.Collector
	logger *slog.Logger

	now   func() time.Time
	newID func() string

	mu    sync.RWMutex
	conns map[string]*connState

	// identity → connection ids in bind order
	byIdentity map[string][]string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDGenerator overrides connection id generation.
func WithIDGenerator(newID func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = newID
	}
}

// NewRegistry creates an empty registry. stats may be nil.
func NewRegistry(stats *metrics.Collector, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = metrics.NewCollector()
	}

	r := &Registry{
		stats:      stats,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		conns:      make(map[string]*connState),
		byIdentity: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns the collector the registry reports into.
func (r *Registry) Stats() *metrics.Collector {
	return r.stats
}

// Register adds a transport and returns its new connection id.
func (r *Registry) Register(t Transport) string {
	now := r.now()
	id := r.newID()

	r.mu.Lock()
	r.conns[id] = &connState{
		transport:     t,
		subscriptions: make(map[string]struct{}),
		lastActivity:  now,
		createdAt:     now,
	}
	r.mu.Unlock()

	r.stats.ConnectionOpened()
	r.logger.Debug("connection registered", "conn_id", id)
	return id
}

// RecordActivity refreshes the connection's last activity time.
func (r *Registry) RecordActivity(id string) {
	now := r.now()

	r.mu.Lock()
	if s, ok := r.conns[id]; ok {
		s.lastActivity = now
	}
	r.mu.Unlock()
}

// Unregister removes the connection. Unknown ids are ignored, so the read
// loop and the reaper may both call it.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	s, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
		if s.identity != "" {
			r.unbindLocked(s.identity, id)
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.stats.ConnectionClosed()
	r.logger.Debug("connection unregistered", "conn_id", id, "identity", s.identity)
}

// Send encodes msg and queues it on the connection. It returns ErrNotFound
// for unknown ids and ErrClosed when the transport is no longer open.
func (r *Registry) Send(id string, msg protocol.ServerMessage) error {
	r.mu.RLock()
	s, ok := r.conns[id]
	var t Transport
	if ok {
		t = s.transport
	}
	r.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}

	data, err := msg.Encode(r.now())
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return r.sendRaw(t, data)
}

func (r *Registry) sendRaw(t Transport, data []byte) error {
	if !t.IsOpen() {
		return ErrClosed
	}
	if err := t.Send(data); err != nil {
		return err
	}
	r.stats.MessageSent()
	return nil
}

// Bind marks the connection authenticated as identity. A previous identity
// on the same connection is dropped from the reverse index.
func (r *Registry) Bind(id, identity string) error {
	if identity == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.conns[id]
	if !ok {
		return ErrNotFound
	}

	if s.identity != "" {
		r.unbindLocked(s.identity, id)
	}
	s.identity = identity
	s.authenticated = true
	r.byIdentity[identity] = append(r.byIdentity[identity], id)
	return nil
}

// unbindLocked removes id from identity's index entry. Caller holds mu.
func (r *Registry) unbindLocked(identity, id string) {
	ids := r.byIdentity[identity]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.byIdentity, identity)
		return
	}
	r.byIdentity[identity] = ids
}

// LookupByIdentity returns the most recently bound authenticated connection
// for identity.
func (r *Registry) LookupByIdentity(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byIdentity[identity]
	for i := len(ids) - 1; i >= 0; i-- {
		if s, ok := r.conns[ids[i]]; ok && s.authenticated {
			return ids[i], true
		}
	}
	return "", false
}

// Get returns a snapshot of one connection.
func (r *Registry) Get(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.conns[id]
	if !ok {
		return Info{}, false
	}
	return s.info(id), true
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IDs returns all registered connection ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// idleSince returns connections whose last activity is before cutoff.
func (r *Registry) idleSince(cutoff time.Time) map[string]Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idle := make(map[string]Transport)
	for id, s := range r.conns {
		if s.lastActivity.Before(cutoff) {
			idle[id] = s.transport
		}
	}
	return idle
}

// CloseAll closes and unregisters every connection. Used on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	all := make(map[string]Transport, len(r.conns))
	for id, s := range r.conns {
		all[id] = s.transport
	}
	r.mu.RUnlock()

	for id, t := range all {
		if err := t.Close(); err != nil {
			r.logger.Debug("close failed", "conn_id", id, "error", err)
		}
		r.Unregister(id)
	}

	if len(all) > 0 {
		r.logger.Info("closed all connections", "count", len(all))
	}
	return len(all)
}
