package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/period"
)

var (
	// ErrInvalidEpoch is returned when an epoch is not a YYYY-MM-DD date
	ErrInvalidEpoch = errors.New("invalid epoch date")
	// ErrNegativeRunTimeout is returned for a negative run timeout
	ErrNegativeRunTimeout = errors.New("run timeout must not be negative")
)

// Config defines how periods are processed
type Config struct {
	// Epoch is the first month considered for loading.
	Epoch string `yaml:"epoch" default:"2021-01-01"`
	// CalendarEpoch is the first date of the time dimension.
	CalendarEpoch string `yaml:"calendarEpoch" default:"2020-01-01"`
	// DeleteBeforeRun deletes a period's facts before every scheduled run.
	DeleteBeforeRun bool `yaml:"deleteBeforeRun" default:"false"`
	// RunTimeout bounds a single period run; zero means no limit.
	RunTimeout time.Duration `yaml:"runTimeout" default:"0s"`
}

// Validate checks the ETL configuration
func (c *Config) Validate() error {
	if _, err := c.EpochDate(); err != nil {
		return err
	}

	if _, err := c.CalendarEpochDate(); err != nil {
		return err
	}

	if c.RunTimeout < 0 {
		return ErrNegativeRunTimeout
	}

	return nil
}

// EpochDate parses Epoch.
func (c *Config) EpochDate() (time.Time, error) {
	return parseEpoch("epoch", c.Epoch)
}

// CalendarEpochDate parses CalendarEpoch.
func (c *Config) CalendarEpochDate() (time.Time, error) {
	return parseEpoch("calendarEpoch", c.CalendarEpoch)
}

func parseEpoch(field, value string) (time.Time, error) {
	t, err := time.Parse(period.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q", ErrInvalidEpoch, field, value)
	}

	return t, nil
}
