// Package connection implements the live connection registry.
//
// The registry:
//   - Assigns a uuid to every accepted WebSocket and tracks its activity
//   - Binds an authenticated identity and keeps an identity → connection index
//   - Tracks channel subscriptions and broadcasts to authenticated members
//   - Drops idle connections through the Reaper
//
// Conn is the gorilla/websocket Transport: one read loop per connection and a
// write pump draining a FIFO send queue.
package connection
