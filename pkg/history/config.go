package history

import (
	"errors"
	"time"
)

var (
	// ErrStatusRequired is returned when the completed status is empty
	ErrStatusRequired = errors.New("completed status is required")
	// ErrInvalidPageSize is returned when the page size bounds are inconsistent
	ErrInvalidPageSize = errors.New("default page size must be positive and not above the max page size")
	// ErrInvalidOffset is returned for a negative page offset
	ErrInvalidOffset = errors.New("offset must not be negative")
)

// Config defines the history log behaviour
type Config struct {
	// Status marks completed periods; only entries with it count as processed.
	Status          string        `yaml:"status" default:"Selesai"`
	DefaultPageSize int           `yaml:"defaultPageSize" default:"20"`
	MaxPageSize     int           `yaml:"maxPageSize" default:"200"`
	CacheTTL        time.Duration `yaml:"cacheTTL" default:"5m"`
}

// Validate checks the history configuration
func (c *Config) Validate() error {
	if c.Status == "" {
		return ErrStatusRequired
	}

	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return ErrInvalidPageSize
	}

	return nil
}

// pageSize clamps a requested limit into [1, MaxPageSize]; zero or negative
// selects the default.
func (c *Config) pageSize(limit int) int {
	switch {
	case limit <= 0:
		return c.DefaultPageSize
	case limit > c.MaxPageSize:
		return c.MaxPageSize
	default:
		return limit
	}
}
