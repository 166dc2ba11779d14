// Package server exposes matchd over HTTP.
//
// Routes:
//
//	GET  /ws                                          WebSocket endpoint
//	GET  /health                                      store ping + connection count
//	GET  /stats                                       metrics.Snapshot as JSON
//	GET  /metrics                                     Prometheus exposition
//	POST /internal/matches                            Dispatcher.CreateMatch
//	GET  /internal/subjects/{subjectID}/matches/unclaimed
//
// The /internal routes require "Authorization: Bearer <internal token>" and
// are not mounted at all when no token is configured.
package server
