package worker

import (
	"errors"
	"time"
)

var (
	// ErrInvalidShutdownTimeout is returned when the shutdown timeout is not positive
	ErrInvalidShutdownTimeout = errors.New("shutdownTimeout must be positive")
)

// Concurrency is fixed: ETL runs are serialized through a single worker.
const Concurrency = 1

// Config contains worker-specific settings
type Config struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Queue           string        `yaml:"queue" default:"etl"`
	TaskTimeout     time.Duration `yaml:"taskTimeout" default:"0s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"30s"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}
