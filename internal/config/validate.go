package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

const weightTolerance = 1e-6

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if err := c.Auth.validate(); err != nil {
		return err
	}

	if c.Connections.ReapInterval <= 0 {
		return errors.New("connections.reap_interval must be > 0")
	}
	if c.Connections.IdleTimeout <= 0 {
		return errors.New("connections.idle_timeout must be > 0")
	}
	if c.Connections.PingInterval >= c.Connections.PongWait {
		return fmt.Errorf("connections.ping_interval (%s) must be less than pong_wait (%s)",
			c.Connections.PingInterval, c.Connections.PongWait)
	}
	if c.Connections.SendQueueSize < 1 {
		return errors.New("connections.send_queue_size must be >= 1")
	}
	if c.Connections.RateLimit < 0 {
		return errors.New("connections.rate_limit must be >= 0")
	}

	if c.Scoring.MaxAttempts < 1 {
		return errors.New("scoring.max_attempts must be >= 1")
	}
	if c.Scoring.Timeout <= 0 {
		return errors.New("scoring.timeout must be > 0")
	}
	if err := validateWeights(c.Scoring.Weights); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case "postgres":
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	default:
		return fmt.Errorf("storage.driver must be postgres or sqlite, got %q", c.Storage.Driver)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses Level. An empty level means info.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", l.Level)
	}
	return level, nil
}

func (a *AuthConfig) validate() error {
	if a.InsecureSkipVerify {
		return nil
	}
	if a.HMACSecret == "" && a.PublicKeyPath == "" {
		return errors.New("auth.hmac_secret or auth.public_key_path is required unless auth.insecure_skip_verify is set")
	}
	if a.HMACSecret != "" && a.PublicKeyPath != "" {
		return errors.New("auth.hmac_secret and auth.public_key_path are mutually exclusive")
	}
	return nil
}

func validateWeights(weights map[string]float64) error {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	for _, name := range names {
		w := weights[name]
		if w < 0 {
			return fmt.Errorf("scoring.weights.%s must be >= 0", name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("scoring.weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
