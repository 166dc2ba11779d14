// Package router implements inbound frame handling.
//
// Each client frame is counted, rate limited per connection, decoded into a
// protocol.ClientMessage and answered:
//
//	authenticate → auth_success | auth_error
//	subscribe    → subscribed
//	unsubscribe  → unsubscribed
//	ping         → pong
//	other types  → echo
//	bad JSON     → error "invalid message format"
package router
