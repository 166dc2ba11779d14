// Package metrics provides connection statistics and Prometheus metrics.
//
// Key metrics:
//   - WebSocket connections (total accepted, currently active)
//   - Client frames received and server frames sent
//   - Per-connection processing errors
//   - Match dispatch latency and outcomes
//
// Collector snapshots are also logged periodically by Reporter.
package metrics
