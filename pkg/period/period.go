// Package period models the calendar windows the ETL engine processes and
// tracks which months still need loading.
package period

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of period boundaries.
const DateLayout = "2006-01-02"

// Static errors for period validation
var (
	// ErrInvalidPeriod is returned when a period has no start or ends before it starts
	ErrInvalidPeriod = errors.New("invalid period")
)

// Period is an inclusive date window processed as one ETL unit.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns the period between start and end, truncated to whole days.
func New(start, end time.Time) Period {
	return Period{Start: Truncate(start), End: Truncate(end)}
}

// Parse builds a period from two YYYY-MM-DD strings.
func Parse(start, end string) (Period, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Period{}, fmt.Errorf("%w: start %q: %w", ErrInvalidPeriod, start, err)
	}

	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Period{}, fmt.Errorf("%w: end %q: %w", ErrInvalidPeriod, end, err)
	}

	p := Period{Start: s, End: e}

	return p, p.Validate()
}

// Validate checks the period is non-empty and ordered.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidPeriod)
	}

	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidPeriod,
			p.End.Format(DateLayout), p.Start.Format(DateLayout))
	}

	return nil
}

// Contains reports whether other lies entirely inside p.
func (p Period) Contains(other Period) bool {
	return !p.Start.After(other.Start) && !p.End.Before(other.End)
}

// Includes reports whether the date d falls inside p.
func (p Period) Includes(d time.Time) bool {
	d = Truncate(d)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the number of calendar days covered by p.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

func (p Period) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping the calendar day in t's location.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}

	y, m, d := t.Date()

	return Date(y, m, d)
}

// MonthStart returns the first day of the month containing t.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return Date(y, m, 1)
}

// MonthEnd returns the last day of the month containing t.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// Month returns the full calendar month containing t.
func Month(t time.Time) Period {
	return Period{Start: MonthStart(t), End: MonthEnd(t)}
}
