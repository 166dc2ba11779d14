package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "matchfeed"

// Collector keeps connection and message counters. All methods are safe for
// concurrent use.
type Collector struct {
	totalConnections  atomic.Int64
	activeConnections atomic.Int64
	messagesReceived  atomic.Int64
	messagesSent      atomic.Int64
	errors            atomic.Int64

	now func() time.Time
}

// Snapshot is an immutable copy of the counters.
type Snapshot struct {
	TotalConnections  int64     `json:"totalConnections"`
	ActiveConnections int64     `json:"activeConnections"`
	MessagesReceived  int64     `json:"messagesReceived"`
	MessagesSent      int64     `json:"messagesSent"`
	Errors            int64     `json:"errors"`
	TakenAt           time.Time `json:"takenAt"`
}

// NewCollector creates a zeroed Collector.
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// ConnectionOpened counts a new connection.
func (c *Collector) ConnectionOpened() {
	c.totalConnections.Add(1)
	c.activeConnections.Add(1)
}

// ConnectionClosed decrements the active gauge.
func (c *Collector) ConnectionClosed() {
	c.activeConnections.Add(-1)
}

// MessageReceived counts one inbound frame.
func (c *Collector) MessageReceived() {
	c.messagesReceived.Add(1)
}

// MessageSent counts one outbound frame.
func (c *Collector) MessageSent() {
	c.messagesSent.Add(1)
}

// Error counts one processing error.
func (c *Collector) Error() {
	c.errors.Add(1)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		TotalConnections:  c.totalConnections.Load(),
		ActiveConnections: c.activeConnections.Load(),
		MessagesReceived:  c.messagesReceived.Load(),
		MessagesSent:      c.messagesSent.Load(),
		Errors:            c.errors.Load(),
		TakenAt:           c.now().UTC(),
	}
}

// Register exposes the counters to Prometheus.
func (c *Collector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "WebSocket connections accepted since start.",
		}, func() float64 { return float64(c.totalConnections.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "WebSocket connections currently registered.",
		}, func() float64 { return float64(c.activeConnections.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Client frames received.",
		}, func() float64 { return float64(c.messagesReceived.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Server frames queued for delivery.",
		}, func() float64 { return float64(c.messagesSent.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Malformed frames and other per-connection processing errors.",
		}, func() float64 { return float64(c.errors.Load()) }),
	}

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
