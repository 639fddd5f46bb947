package reconcile

import (
	"github.com/tirta-dwh/dwhetl/pkg/source"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// CustomerCandidates maps source customers to dimension candidates.
func CustomerCandidates(rows []source.Customer) []warehouse.Customer {
	out := make([]warehouse.Customer, len(rows))
	for i, r := range rows {
		out[i] = warehouse.Customer{Code: r.Code, Region: r.Region, Status: r.Status}
	}

	return out
}

// TariffCandidates maps source tariff classes to dimension candidates.
func TariffCandidates(rows []source.Tariff) []warehouse.Tariff {
	out := make([]warehouse.Tariff, len(rows))
	for i, r := range rows {
		out[i] = warehouse.Tariff{Code: r.Code, Name: r.Name}
	}

	return out
}
