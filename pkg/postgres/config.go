// Package postgres provides the pooled PostgreSQL client shared by the source
// reader and the warehouse store.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Static errors for configuration validation
var (
	ErrURLRequired      = errors.New("URL is required")
	ErrInvalidPoolSize  = errors.New("minConns must not exceed maxConns")
	ErrInvalidMaxConns  = errors.New("maxConns must be positive")
	ErrNegativeDuration = errors.New("timeouts must not be negative")
)

// Config contains PostgreSQL connection and pool settings
type Config struct {
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"maxConns"`
	MinConns        int32         `yaml:"minConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
	QueryTimeout    time.Duration `yaml:"queryTimeout"`
	InsertTimeout   time.Duration `yaml:"insertTimeout"`
	Debug           bool          `yaml:"debug"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}

	if c.MaxConns < 0 {
		return ErrInvalidMaxConns
	}

	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return ErrInvalidPoolSize
	}

	if c.QueryTimeout < 0 || c.InsertTimeout < 0 || c.ConnectTimeout < 0 {
		return ErrNegativeDuration
	}

	return nil
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}

	if c.MinConns == 0 {
		c.MinConns = 2
	}

	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}

	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}

	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}

	if c.QueryTimeout == 0 {
		c.QueryTimeout = 5 * time.Minute
	}

	if c.InsertTimeout == 0 {
		c.InsertTimeout = 10 * time.Minute
	}
}

// PoolConfig builds the pgxpool configuration from c.
func (c *Config) PoolConfig() (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}

	poolConfig.MaxConns = c.MaxConns
	poolConfig.MinConns = c.MinConns
	poolConfig.MaxConnLifetime = c.MaxConnLifetime
	poolConfig.MaxConnIdleTime = c.MaxConnIdleTime

	return poolConfig, nil
}
