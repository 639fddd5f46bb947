package reconcile

import (
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// FactStats counts what happened to the candidates of one fact table.
type FactStats struct {
	Candidates  int `json:"candidates"`
	Duplicates  int `json:"duplicates"`
	Invalid     int `json:"invalid"`
	UnknownDate int `json:"unknown_date"`
	Existing    int `json:"existing"`
	New         int `json:"new"`
}

// Record logs the stats and exports the drops as metrics.
func (s FactStats) Record(log logrus.FieldLogger, fact string) {
	observability.RecordFactDropped(fact, "duplicate", s.Duplicates)
	observability.RecordFactDropped(fact, "invalid", s.Invalid)
	observability.RecordFactDropped(fact, "unknown_date", s.UnknownDate)
	observability.RecordFactDropped(fact, "existing", s.Existing)

	log.WithFields(logrus.Fields{
		"fact":         fact,
		"candidates":   s.Candidates,
		"duplicates":   s.Duplicates,
		"invalid":      s.Invalid,
		"unknown_date": s.UnknownDate,
		"existing":     s.Existing,
		"new":          s.New,
	}).Info("Resolved fact candidates")
}

// dedupBy keeps the first row of every key.
func dedupBy[T any, K comparable](rows []T, key func(T) K) ([]T, int) {
	seen := make(map[K]struct{}, len(rows))
	out := make([]T, 0, len(rows))

	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, r)
	}

	return out, len(rows) - len(out)
}

// keepNew drops rows whose key is already loaded or appeared earlier in the
// batch. existing is not modified.
func keepNew[T any, K comparable](rows []T, key func(T) K, existing warehouse.KeySet[K]) ([]T, int, int) {
	batch := warehouse.NewKeySet[K]()
	out := make([]T, 0, len(rows))

	var loaded, dup int

	for _, r := range rows {
		k := key(r)

		switch {
		case existing.Has(k):
			loaded++
		case !batch.Add(k):
			dup++
		default:
			out = append(out, r)
		}
	}

	return out, loaded, dup
}
