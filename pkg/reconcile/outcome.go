package reconcile

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/source"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// RealizedOutcome is the outcome of a new connection with a positive count.
const RealizedOutcome = "Y"

// registrationMarker must appear in the code of a regular new connection.
const registrationMarker = "REG"

// PendingDisconnection is a disconnection fact whose outcome id is not yet resolved.
type PendingDisconnection struct {
	Fact    warehouse.Disconnection
	Outcome string
}

// PendingNewConnection is a new-connection fact whose outcome id is not yet resolved.
type PendingNewConnection struct {
	Fact    warehouse.NewConnection
	Outcome string
}

// DisconnectionResult holds disconnection facts awaiting outcome backfill.
type DisconnectionResult struct {
	Pending []PendingDisconnection
	// Labels are the distinct outcome labels of every cleaned source row
	Labels []string
	Stats  FactStats
}

// NewConnectionResult holds new-connection facts awaiting outcome backfill.
type NewConnectionResult struct {
	Pending []PendingNewConnection
	// Labels are the distinct outcome labels of every cleaned source row
	Labels []string
	Stats  FactStats
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}

	return strings.TrimSpace(*s)
}

type disconnectionKey struct {
	customer string
	date     string
}

// ResolveDisconnections dedups disconnections per customer and date and
// resolves their time keys. Outcomes stay unresolved until the outcome
// dimension is reconciled.
func ResolveDisconnections(
	rows []source.Disconnection,
	calendar CalendarIndex,
	existing warehouse.KeySet[warehouse.DisconnectionKey],
) DisconnectionResult {
	stats := FactStats{Candidates: len(rows)}

	rows, dups := dedupBy(rows, func(r source.Disconnection) disconnectionKey {
		return disconnectionKey{r.CustomerCode, r.Date.Format(period.DateLayout)}
	})
	stats.Duplicates = dups

	labels := newLabelSet()
	pending := make([]PendingDisconnection, 0, len(rows))

	for _, r := range rows {
		outcome := trimmed(r.Outcome)
		labels.add(outcome)

		timeID, ok := calendar.Lookup(r.Date)
		if !ok {
			stats.UnknownDate++
			continue
		}

		pending = append(pending, PendingDisconnection{
			Fact:    warehouse.Disconnection{CustomerCode: r.CustomerCode, TimeID: timeID},
			Outcome: outcome,
		})
	}

	out, loaded, dup := keepNew(pending, func(p PendingDisconnection) warehouse.DisconnectionKey {
		return p.Fact.Key()
	}, existing)
	stats.Existing = loaded
	stats.Duplicates += dup
	stats.New = len(out)

	return DisconnectionResult{Pending: out, Labels: labels.list, Stats: stats}
}

type newConnectionKey struct {
	code string
	date string
}

// regionOf returns the region prefix of a registration code: its first two characters.
func regionOf(code string) string {
	if utf8.RuneCountInString(code) <= 2 {
		return code
	}

	_, first := utf8.DecodeRuneInString(code)
	_, second := utf8.DecodeRuneInString(code[first:])

	return code[:first+second]
}

// ResolveNewConnections cleans new-connection registrations and resolves
// their time keys. A positive count forces the realized outcome; rows with a
// blank outcome or a code without the registration marker are dropped.
func ResolveNewConnections(
	rows []source.NewConnection,
	calendar CalendarIndex,
	existing warehouse.KeySet[warehouse.NewConnectionKey],
) NewConnectionResult {
	stats := FactStats{Candidates: len(rows)}

	rows, dups := dedupBy(rows, func(r source.NewConnection) newConnectionKey {
		return newConnectionKey{r.RegistrationCode, r.Date.Format(period.DateLayout)}
	})
	stats.Duplicates = dups

	labels := newLabelSet()
	pending := make([]PendingNewConnection, 0, len(rows))

	for _, r := range rows {
		var count int64
		if r.Count != nil {
			count = *r.Count
		}

		outcome := trimmed(r.Outcome)
		if count > 0 {
			outcome = RealizedOutcome
		}

		if outcome == "" || !strings.Contains(r.RegistrationCode, registrationMarker) {
			stats.Invalid++
			continue
		}

		labels.add(outcome)

		timeID, ok := calendar.Lookup(r.Date)
		if !ok {
			stats.UnknownDate++
			continue
		}

		pending = append(pending, PendingNewConnection{
			Fact: warehouse.NewConnection{
				RegistrationCode: r.RegistrationCode,
				Region:           regionOf(r.RegistrationCode),
				TimeID:           timeID,
				Count:            count,
			},
			Outcome: outcome,
		})
	}

	out, loaded, dup := keepNew(pending, func(p PendingNewConnection) warehouse.NewConnectionKey {
		return p.Fact.Key()
	}, existing)
	stats.Existing = loaded
	stats.Duplicates += dup
	stats.New = len(out)

	return NewConnectionResult{Pending: out, Labels: labels.list, Stats: stats}
}

type labelSet struct {
	seen map[string]struct{}
	list []string
}

func newLabelSet() *labelSet {
	return &labelSet{seen: map[string]struct{}{}}
}

// add records a non-blank label once, keeping first-appearance order.
func (l *labelSet) add(label string) {
	if label == "" {
		return
	}

	if _, ok := l.seen[label]; ok {
		return
	}

	l.seen[label] = struct{}{}
	l.list = append(l.list, label)
}

// OutcomeCandidates returns the sorted union of the outcome labels observed in
// the disconnection and new-connection sources.
func OutcomeCandidates(disconnection, newConnection []string) []warehouse.Outcome {
	labels := newLabelSet()

	for _, l := range disconnection {
		labels.add(l)
	}

	for _, l := range newConnection {
		labels.add(l)
	}

	slices.Sort(labels.list)

	out := make([]warehouse.Outcome, len(labels.list))
	for i, l := range labels.list {
		out[i] = warehouse.Outcome{Label: l}
	}

	return out
}

func outcomeIndex(outcomes []warehouse.Outcome) map[string]int64 {
	idx := make(map[string]int64, len(outcomes))
	for _, o := range outcomes {
		idx[o.Label] = o.ID
	}

	return idx
}

// BackfillDisconnections attaches outcome ids. Unknown or blank outcomes leave the id nil.
func BackfillDisconnections(pending []PendingDisconnection, outcomes []warehouse.Outcome) warehouse.Disconnections {
	idx := outcomeIndex(outcomes)
	out := make(warehouse.Disconnections, len(pending))

	for i, p := range pending {
		out[i] = p.Fact
		if id, ok := idx[p.Outcome]; ok {
			out[i].OutcomeID = &id
		}
	}

	return out
}

// BackfillNewConnections attaches outcome ids. Unknown outcomes leave the id nil.
func BackfillNewConnections(pending []PendingNewConnection, outcomes []warehouse.Outcome) warehouse.NewConnections {
	idx := outcomeIndex(outcomes)
	out := make(warehouse.NewConnections, len(pending))

	for i, p := range pending {
		out[i] = p.Fact
		if id, ok := idx[p.Outcome]; ok {
			out[i].OutcomeID = &id
		}
	}

	return out
}
