package runlock

import (
	"errors"
	"time"
)

var (
	// ErrInvalidTTL is returned when the lease TTL is not positive
	ErrInvalidTTL = errors.New("lease ttl must be positive")
	// ErrInvalidRenewInterval is returned when renewal would not keep the lease alive
	ErrInvalidRenewInterval = errors.New("renew interval must be positive and shorter than the lease ttl")
	// ErrKeyRequired is returned when the lock key is empty
	ErrKeyRequired = errors.New("lock key is required")
)

// Config defines the Redis lease
type Config struct {
	Key           string        `yaml:"key" default:"dwhetl:run:lock"`
	TTL           time.Duration `yaml:"ttl" default:"30s"`
	RenewInterval time.Duration `yaml:"renewInterval" default:"10s"`
}

// Validate checks the lease configuration
func (c *Config) Validate() error {
	if c.Key == "" {
		return ErrKeyRequired
	}

	if c.TTL <= 0 {
		return ErrInvalidTTL
	}

	if c.RenewInterval <= 0 || c.RenewInterval >= c.TTL {
		return ErrInvalidRenewInterval
	}

	return nil
}
