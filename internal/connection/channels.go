package connection

import (
	"fmt"

	"github.com/rickgao/matchfeed/internal/protocol"
)

// Subscribe adds the connection to channel. Subscribing twice is a no-op.
func (r *Registry) Subscribe(id, channel string) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.conns[id]
	if !ok {
		return ErrNotFound
	}
	s.subscriptions[channel] = struct{}{}
	return nil
}

// Unsubscribe removes the connection from channel. Leaving a channel that was
// never joined is a no-op.
func (r *Registry) Unsubscribe(id, channel string) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.conns[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.subscriptions, channel)
	return nil
}

// BroadcastToChannel sends msg to every authenticated connection subscribed to
// channel and returns how many accepted it.
func (r *Registry) BroadcastToChannel(channel string, msg protocol.ServerMessage) (int, error) {
	return r.broadcast(msg, func(_ string, s *connState) bool {
		_, ok := s.subscriptions[channel]
		return ok
	})
}

// BroadcastAll sends msg to every authenticated connection for which match
// returns true. A nil match selects all of them.
func (r *Registry) BroadcastAll(msg protocol.ServerMessage, match func(Info) bool) (int, error) {
	return r.broadcast(msg, func(id string, s *connState) bool {
		return match == nil || match(s.info(id))
	})
}

// broadcast sends to authenticated connections accepted by pick. pick runs
// under the read lock.
func (r *Registry) broadcast(msg protocol.ServerMessage, pick func(string, *connState) bool) (int, error) {
	data, err := msg.Encode(r.now())
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	// Targets are fixed under the read lock; sends happen outside it.
	r.mu.RLock()
	targets := make(map[string]Transport)
	for id, s := range r.conns {
		if !s.authenticated || !pick(id, s) {
			continue
		}
		targets[id] = s.transport
	}
	r.mu.RUnlock()

	sent := 0
	for id, t := range targets {
		if err := r.sendRaw(t, data); err != nil {
			r.logger.Debug("broadcast send failed", "conn_id", id, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
