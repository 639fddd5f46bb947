// Package source reads the operational billing and customer-service tables
// the warehouse is fed from.
package source

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/tirta-dwh/dwhetl/pkg/postgres"
)

// Static errors for configuration validation
var (
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`) //nolint:gochecknoglobals // compiled once

// Config contains the source database connection and table names
type Config struct {
	Postgres postgres.Config `yaml:"postgres"`
	Schema   string          `yaml:"schema" default:"public"`
	Tables   Tables          `yaml:"tables"`
}

// Tables maps each source entity to its table name
type Tables struct {
	Customer      string `yaml:"customer" default:"pelanggan"`
	Tariff        string `yaml:"tariff" default:"goltarif"`
	MeterReading  string `yaml:"meterReading" default:"brek"`
	Payment       string `yaml:"payment" default:"trx"`
	Disconnection string `yaml:"disconnection" default:"pemutusan"`
	Complaint     string `yaml:"complaint" default:"pengaduan"`
	NewConnection string `yaml:"newConnection" default:"sbbaru"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	if !identifierPattern.MatchString(c.Schema) {
		return fmt.Errorf("%w: schema %q", ErrInvalidIdentifier, c.Schema)
	}

	for entity, table := range c.Tables.byEntity() {
		if !identifierPattern.MatchString(table) {
			return fmt.Errorf("%w: %s table %q", ErrInvalidIdentifier, entity, table)
		}
	}

	return nil
}

func (t Tables) byEntity() map[Entity]string {
	return map[Entity]string{
		EntityCustomer:      t.Customer,
		EntityTariff:        t.Tariff,
		EntityMeterReading:  t.MeterReading,
		EntityPayment:       t.Payment,
		EntityDisconnection: t.Disconnection,
		EntityComplaint:     t.Complaint,
		EntityNewConnection: t.NewConnection,
	}
}
