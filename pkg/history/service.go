// Package history records completed ETL periods and answers which periods
// are already processed.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// Page is one page of history entries, newest first.
type Page struct {
	Entries []warehouse.HistoryEntry `json:"entries"`
	Total   int64                    `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// Service manages the append-only history log.
type Service struct {
	log   logrus.FieldLogger
	store warehouse.HistoryStore
	cache *PageCache
	clock clockwork.Clock
	cfg   Config
}

// NewService creates a history service. cache may be nil.
func NewService(log logrus.FieldLogger, store warehouse.HistoryStore, cache *PageCache, clock clockwork.Clock, cfg Config) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		log:   log.WithField("component", "history"),
		store: store,
		cache: cache,
		clock: clock,
		cfg:   cfg,
	}
}

// Status returns the status written for completed periods.
func (s *Service) Status() string {
	return s.cfg.Status
}

// Record appends a completed entry for p.
func (s *Service) Record(ctx context.Context, p period.Period) (warehouse.HistoryEntry, error) {
	entry := warehouse.HistoryEntry{
		Timestamp: s.clock.Now().UTC().Truncate(time.Microsecond),
		Start:     p.Start,
		End:       p.End,
		Status:    s.cfg.Status,
	}

	id, err := s.store.InsertHistory(ctx, entry)
	if err != nil {
		return entry, fmt.Errorf("failed to record period %s: %w", p, err)
	}

	entry.ID = id

	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate history cache")
	}

	s.log.WithFields(logrus.Fields{
		"id":    id,
		"start": p.Start.Format(period.DateLayout),
		"end":   p.End.Format(period.DateLayout),
	}).Info("Recorded completed period")

	return entry, nil
}

// Ranges returns the periods of all completed entries.
func (s *Service) Ranges(ctx context.Context) ([]period.Period, error) {
	ranges, err := s.store.HistoryRanges(ctx, s.cfg.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return ranges, nil
}

// List returns a page of entries newest first. A non-positive limit selects
// the default page size; limits above the maximum are clamped.
func (s *Service) List(ctx context.Context, limit, offset int) (*Page, error) {
	if offset < 0 {
		return nil, ErrInvalidOffset
	}

	limit = s.cfg.pageSize(limit)

	cached, err := s.cache.Get(ctx, limit, offset)
	if err != nil {
		s.log.WithError(err).Debug("Failed to read history cache")
	}

	if cached != nil {
		observability.RecordHistoryCacheHit()
		return cached, nil
	}

	observability.RecordHistoryCacheMiss()

	entries, total, err := s.store.HistoryPage(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	page := &Page{Entries: entries, Total: total, Limit: limit, Offset: offset}

	if err := s.cache.Set(ctx, page); err != nil {
		s.log.WithError(err).Debug("Failed to cache history page")
	}

	return page, nil
}

// Overlaps reports whether a logged period contains the start or the end of p.
func (s *Service) Overlaps(ctx context.Context, p period.Period) (bool, error) {
	overlaps, err := s.store.HistoryOverlaps(ctx, p)
	if err != nil {
		return false, fmt.Errorf("failed to check overlap for %s: %w", p, err)
	}

	return overlaps, nil
}

// Unprocessed lists the months not yet covered by a completed entry, up to today.
func (s *Service) Unprocessed(ctx context.Context, tracker *period.Tracker) ([]period.Period, error) {
	ranges, err := s.Ranges(ctx)
	if err != nil {
		return nil, err
	}

	return tracker.UnprocessedList(ranges, s.clock.Now()), nil
}
