package config

import "time"

// Config is the root configuration for a matchd instance.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Connections ConnectionsConfig `yaml:"connections"`
	Stats       StatsConfig       `yaml:"stats"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"MATCHFEED_SERVER_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // Empty = allow any origin
	InternalToken   string        `yaml:"internal_token" env:"MATCHFEED_INTERNAL_TOKEN"` // Bearer token for /internal routes
}

// AuthConfig holds handshake token verification settings.
type AuthConfig struct {
	// HMACSecret verifies HS256 tokens.
	HMACSecret string `yaml:"hmac_secret" env:"MATCHFEED_AUTH_HMAC_SECRET"`
	// PublicKeyPath points to a PEM RSA public key for RS256 tokens.
	PublicKeyPath string `yaml:"public_key_path" env:"MATCHFEED_AUTH_PUBLIC_KEY_PATH"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	// InsecureSkipVerify decodes claims without checking the signature.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"MATCHFEED_AUTH_INSECURE_SKIP_VERIFY"`
}

// ConnectionsConfig holds WebSocket connection settings.
type ConnectionsConfig struct {
	ReapInterval    time.Duration `yaml:"reap_interval"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongWait        time.Duration `yaml:"pong_wait"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	SendQueueSize   int           `yaml:"send_queue_size"`
	RateLimit       float64       `yaml:"rate_limit"` // Inbound messages/sec per connection, 0 = unlimited
	RateBurst       int           `yaml:"rate_burst"`
}

// StatsConfig holds the stats reporter settings.
type StatsConfig struct {
	ReportInterval time.Duration `yaml:"report_interval"`
}

// ScoringConfig holds the scoring engine and provider settings.
type ScoringConfig struct {
	ProviderURL   string             `yaml:"provider_url" env:"MATCHFEED_SCORING_PROVIDER_URL"`
	APIKey        string             `yaml:"api_key" env:"MATCHFEED_SCORING_API_KEY"`
	Timeout       time.Duration      `yaml:"timeout"`
	MaxAttempts   int                `yaml:"max_attempts"`
	RetryDelay    time.Duration      `yaml:"retry_delay"`
	RetryMaxDelay time.Duration      `yaml:"retry_max_delay"`
	Weights       map[string]float64 `yaml:"weights"` // dimension name -> weight
}

// StorageConfig selects and configures the match store.
type StorageConfig struct {
	Driver   string       `yaml:"driver" env:"MATCHFEED_STORAGE_DRIVER"` // "postgres" or "sqlite"
	Postgres DBConfig     `yaml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host" env:"MATCHFEED_DB_HOST"`
	Port     int    `yaml:"port" env:"MATCHFEED_DB_PORT"`
	Name     string `yaml:"name" env:"MATCHFEED_DB_NAME"`
	User     string `yaml:"user" env:"MATCHFEED_DB_USER"`
	Password string `yaml:"password" env:"MATCHFEED_DB_PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SQLiteConfig holds the local SQLite store settings.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"MATCHFEED_SQLITE_PATH"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"MATCHFEED_LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"MATCHFEED_LOG_FORMAT"` // text or json
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"MATCHFEED_OTEL_ENDPOINT"` // Empty = tracing disabled
	ServiceName string `yaml:"service_name"`
}
