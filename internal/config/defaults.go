package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerAddr      = ":8080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultReapInterval    = 5 * time.Minute
	DefaultIdleTimeout     = 10 * time.Minute
	DefaultPingInterval    = 54 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultMaxMessageBytes = 64 * 1024
	DefaultSendQueueSize   = 64
	DefaultRateBurst       = 20
	DefaultReportInterval  = 60 * time.Second
	DefaultScoringTimeout  = 20 * time.Second
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 500 * time.Millisecond
	DefaultRetryMaxDelay   = 5 * time.Second
	DefaultStorageDriver   = "postgres"
	DefaultSQLitePath      = "matchfeed.db"
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultServiceName     = "matchfeed"
)

// DefaultWeights are the dimension weights used when none are configured.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"audienceFit":         0.25,
		"contentStyleFit":     0.20,
		"brandValueAlignment": 0.20,
		"engagementPotential": 0.20,
		"compensationFit":     0.15,
	}
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Connections defaults
	if c.Connections.ReapInterval == 0 {
		c.Connections.ReapInterval = DefaultReapInterval
	}
	if c.Connections.IdleTimeout == 0 {
		c.Connections.IdleTimeout = DefaultIdleTimeout
	}
	if c.Connections.PingInterval == 0 {
		c.Connections.PingInterval = DefaultPingInterval
	}
	if c.Connections.PongWait == 0 {
		c.Connections.PongWait = DefaultPongWait
	}
	if c.Connections.WriteTimeout == 0 {
		c.Connections.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connections.MaxMessageBytes == 0 {
		c.Connections.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.Connections.SendQueueSize == 0 {
		c.Connections.SendQueueSize = DefaultSendQueueSize
	}
	if c.Connections.RateLimit > 0 && c.Connections.RateBurst == 0 {
		c.Connections.RateBurst = DefaultRateBurst
	}

	// Stats defaults
	if c.Stats.ReportInterval == 0 {
		c.Stats.ReportInterval = DefaultReportInterval
	}

	// Scoring defaults
	if c.Scoring.Timeout == 0 {
		c.Scoring.Timeout = DefaultScoringTimeout
	}
	if c.Scoring.MaxAttempts == 0 {
		c.Scoring.MaxAttempts = DefaultMaxAttempts
	}
	if c.Scoring.RetryDelay == 0 {
		c.Scoring.RetryDelay = DefaultRetryDelay
	}
	if c.Scoring.RetryMaxDelay == 0 {
		c.Scoring.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if len(c.Scoring.Weights) == 0 {
		c.Scoring.Weights = DefaultWeights()
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}
	applyDBDefaults(&c.Storage.Postgres)

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Tracing defaults
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
