package reconcile

import (
	"strings"
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/source"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// OtherComplaintType labels complaints recorded without a type.
const OtherComplaintType = "lainnya"

// ComplaintTypeLabel normalises a complaint type: missing or empty types
// become OtherComplaintType and every label is lower-cased.
func ComplaintTypeLabel(raw *string) string {
	if raw == nil || *raw == "" {
		return OtherComplaintType
	}

	return strings.ToLower(*raw)
}

type complaintKey struct {
	customer string
	label    string
	at       int64
}

type complaintRow struct {
	customer string
	label    string
	at       time.Time
}

// ComplaintResult holds the resolved complaint facts and the complaint types
// first seen in this batch, numbered after the existing ones.
type ComplaintResult struct {
	Facts    warehouse.Complaints
	NewTypes warehouse.ComplaintTypes
	Stats    FactStats
}

// ResolveComplaints cleans complaints, assigns ids to unseen complaint types
// and builds the new complaint facts. The new types are not persisted here.
func ResolveComplaints(
	rows []source.Complaint,
	calendar CalendarIndex,
	types []warehouse.ComplaintType,
	existing warehouse.KeySet[warehouse.ComplaintKey],
) ComplaintResult {
	stats := FactStats{Candidates: len(rows)}

	cleaned := make([]complaintRow, 0, len(rows))

	for _, r := range rows {
		if r.CustomerID == nil || r.Timestamp == nil {
			stats.Invalid++
			continue
		}

		cleaned = append(cleaned, complaintRow{customer: *r.CustomerID, label: ComplaintTypeLabel(r.Type), at: *r.Timestamp})
	}

	cleaned, dups := dedupBy(cleaned, func(c complaintRow) complaintKey {
		return complaintKey{c.customer, c.label, c.at.UnixNano()}
	})
	stats.Duplicates = dups

	candidates := make([]warehouse.ComplaintType, 0, len(cleaned))
	for _, c := range cleaned {
		candidates = append(candidates, warehouse.ComplaintType{Label: c.label})
	}

	changes := ComplaintTypeDimension.Plan(candidates, types)

	typeIDs := make(map[string]int64, len(types)+len(changes.Inserts))
	for _, t := range ComplaintTypeDimension.Merge(types, changes) {
		typeIDs[t.Label] = t.ID
	}

	facts := make([]warehouse.Complaint, 0, len(cleaned))

	for _, c := range cleaned {
		timeID, ok := calendar.Lookup(c.at)
		if !ok {
			stats.UnknownDate++
			continue
		}

		facts = append(facts, warehouse.Complaint{
			CustomerID:      c.customer,
			ComplaintTypeID: typeIDs[c.label],
			TimeID:          timeID,
		})
	}

	out, loaded, dup := keepNew(facts, warehouse.Complaint.Key, existing)
	stats.Existing = loaded
	stats.Duplicates += dup
	stats.New = len(out)

	return ComplaintResult{Facts: out, NewTypes: changes.Inserts, Stats: stats}
}
