// Package engine wires the ETL components into the long-running service and
// the one-shot CLI runs
package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tirta-dwh/dwhetl/pkg/api"
	"github.com/tirta-dwh/dwhetl/pkg/history"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/postgres"
	"github.com/tirta-dwh/dwhetl/pkg/redis"
	"github.com/tirta-dwh/dwhetl/pkg/runlock"
	"github.com/tirta-dwh/dwhetl/pkg/scheduler"
	"github.com/tirta-dwh/dwhetl/pkg/source"
	"github.com/tirta-dwh/dwhetl/pkg/worker"
)

var (
	// ErrRedisURLRequired is returned when the service runs without Redis
	ErrRedisURLRequired = errors.New("redis URL is required")
	// ErrInvalidLogLevel is returned for an unknown logging level
	ErrInvalidLogLevel = errors.New("invalid logging level")
)

// Config represents the complete engine configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`

	// Databases
	Source    source.Config   `yaml:"source"`
	Warehouse postgres.Config `yaml:"warehouse"`

	// Redis backs the run lease, the history cache and the task queue. The
	// CLI runs without it using an in-process lock.
	Redis redis.Config `yaml:"redis"`

	// Processing
	ETL     orchestrator.Config `yaml:"etl"`
	History history.Config      `yaml:"history"`
	RunLock runlock.Config      `yaml:"runLock"`

	// Service components
	Worker    worker.Config    `yaml:"worker"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	API       api.Config       `yaml:"api"`
}

// LoadConfig reads a YAML file over the defaults
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return config, nil
}

// Level parses the logging level
func (c *Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.Logging)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging)
	}

	return level, nil
}

// Validate validates the configuration needed by every command
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := c.Warehouse.Validate(); err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}

	if c.Redis.URL != "" {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if err := c.ETL.Validate(); err != nil {
		return fmt.Errorf("etl: %w", err)
	}

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if err := c.RunLock.Validate(); err != nil {
		return fmt.Errorf("runLock: %w", err)
	}

	return nil
}

// ValidateService additionally validates the long-running service components
func (c *Config) ValidateService() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Redis.URL == "" {
		return ErrRedisURLRequired
	}

	if err := c.Worker.Validate(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
