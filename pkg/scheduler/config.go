// Package scheduler enqueues the periodic pass over unprocessed months
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrScheduleRequired is returned when the scheduler is enabled without a schedule
	ErrScheduleRequired = errors.New("schedule is required")
	// ErrInvalidLease is returned when the leader lease timings are inconsistent
	ErrInvalidLease = errors.New("renewInterval must be positive and shorter than leaseTTL")
)

// Config defines scheduler configuration
type Config struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	Schedule      string        `yaml:"schedule" default:"0 1 * * *"`
	Location      string        `yaml:"location" default:"UTC"`
	LeaderKey     string        `yaml:"leaderKey" default:"dwhetl:scheduler:leader"`
	LeaseTTL      time.Duration `yaml:"leaseTTL" default:"10s"`
	RenewInterval time.Duration `yaml:"renewInterval" default:"3s"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Schedule == "" {
		return ErrScheduleRequired
	}

	if _, err := c.parse(); err != nil {
		return err
	}

	if c.RenewInterval <= 0 || c.RenewInterval >= c.LeaseTTL {
		return ErrInvalidLease
	}

	return nil
}

func (c *Config) location() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", c.Location, err)
	}

	return loc, nil
}

// parse parses the schedule the same way the asynq scheduler does.
func (c *Config) parse() (cron.Schedule, error) {
	loc, err := c.location()
	if err != nil {
		return nil, err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	schedule, err := parser.Parse(fmt.Sprintf("CRON_TZ=%s %s", loc.String(), c.Schedule))
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}

	return schedule, nil
}
