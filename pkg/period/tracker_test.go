package period

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, start, end string) Period {
	t.Helper()

	p, err := Parse(start, end)
	require.NoError(t, err)

	return p
}

func TestUnprocessed(t *testing.T) {
	tests := []struct {
		name     string
		history  []Period
		today    time.Time
		expected []Period
	}{
		{
			name:  "empty history returns every month with partial current month",
			today: Date(2021, time.March, 15),
			expected: []Period{
				mustParse(t, "2021-01-01", "2021-01-31"),
				mustParse(t, "2021-02-01", "2021-02-28"),
				mustParse(t, "2021-03-01", "2021-03-15"),
			},
		},
		{
			name:     "logged month is skipped",
			history:  []Period{mustParse(t, "2021-01-01", "2021-01-31")},
			today:    Date(2021, time.February, 10),
			expected: []Period{mustParse(t, "2021-02-01", "2021-02-10")},
		},
		{
			name: "coverage is not assembled from several entries",
			history: []Period{
				mustParse(t, "2021-01-01", "2021-01-15"),
				mustParse(t, "2021-01-16", "2021-01-31"),
			},
			today:    Date(2021, time.January, 31),
			expected: []Period{mustParse(t, "2021-01-01", "2021-01-31")},
		},
		{
			name:     "partial month logged earlier is reprocessed once today moves on",
			history:  []Period{mustParse(t, "2021-01-01", "2021-01-15")},
			today:    Date(2021, time.January, 20),
			expected: []Period{mustParse(t, "2021-01-01", "2021-01-20")},
		},
		{
			name:     "partial current month already logged up to today",
			history:  []Period{mustParse(t, "2021-01-01", "2021-01-20")},
			today:    Date(2021, time.January, 20),
			expected: nil,
		},
		{
			name:     "wide entry covers several months",
			history:  []Period{mustParse(t, "2020-12-01", "2021-02-28")},
			today:    Date(2021, time.March, 1),
			expected: []Period{mustParse(t, "2021-03-01", "2021-03-01")},
		},
		{
			name:     "today before epoch yields nothing",
			today:    Date(2020, time.June, 1),
			expected: nil,
		},
		{
			name:     "clock part of today is ignored",
			history:  []Period{mustParse(t, "2021-01-01", "2021-01-31")},
			today:    time.Date(2021, time.February, 3, 23, 59, 0, 0, time.UTC),
			expected: []Period{mustParse(t, "2021-02-01", "2021-02-03")},
		},
	}

	tracker := NewTracker(Date(2021, time.January, 1))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tracker.UnprocessedList(tt.history, tt.today)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestUnprocessedIsRestartable(t *testing.T) {
	tracker := NewTracker(Date(2021, time.January, 1))
	seq := tracker.Unprocessed(nil, Date(2021, time.December, 31))

	var first []Period
	for p := range seq {
		first = append(first, p)
		if len(first) == 3 {
			break
		}
	}

	var all []Period
	for p := range seq {
		all = append(all, p)
	}

	require.Len(t, all, 12)
	assert.Equal(t, all[:3], first)
}

func TestNewTrackerNormalisesEpoch(t *testing.T) {
	assert.Equal(t, Date(2021, time.January, 1), NewTracker(time.Time{}).Epoch())
	assert.Equal(t, Date(2022, time.May, 1), NewTracker(Date(2022, time.May, 17)).Epoch())
}

func TestParse(t *testing.T) {
	_, err := Parse("2021-02-01", "2021-01-01")
	require.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Parse("2021-02-xx", "2021-03-01")
	require.ErrorIs(t, err, ErrInvalidPeriod)

	p, err := Parse("2021-02-01", "2021-02-28")
	require.NoError(t, err)
	assert.Equal(t, 28, p.Days())
	assert.Equal(t, "2021-02-01..2021-02-28", p.String())
	assert.True(t, p.Includes(time.Date(2021, time.February, 28, 13, 0, 0, 0, time.UTC)))
	assert.False(t, p.Includes(Date(2021, time.March, 1)))
}

func TestProperty_Coverage(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	epoch := Date(2021, time.January, 1)
	tracker := NewTracker(epoch)

	// history entries are built from (startOffsetDays, lengthDays) pairs relative to the epoch
	buildHistory := func(offsets, lengths []int) []Period {
		n := min(len(offsets), len(lengths))
		history := make([]Period, 0, n)

		for i := range n {
			start := epoch.AddDate(0, 0, offsets[i])
			history = append(history, Period{Start: start, End: start.AddDate(0, 0, lengths[i])})
		}

		return history
	}

	properties.Property("a month is returned iff no single entry contains its window", prop.ForAll(
		func(offsets, lengths []int, todayOffset int) bool {
			history := buildHistory(offsets, lengths)
			today := epoch.AddDate(0, 0, todayOffset)

			returned := map[time.Time]Period{}
			for p := range tracker.Unprocessed(history, today) {
				returned[p.Start] = p
			}

			for start := epoch; !start.After(today); start = start.AddDate(0, 1, 0) {
				window := Month(start)
				if window.End.After(today) {
					window.End = today
				}

				got, ok := returned[start]
				if Covered(history, window) == ok {
					return false
				}

				if ok && got != window {
					return false
				}
			}

			return true
		},
		gen.SliceOf(gen.IntRange(-40, 400)),
		gen.SliceOf(gen.IntRange(0, 120)),
		gen.IntRange(0, 500),
	))

	properties.Property("returned windows are ascending and end no later than today", prop.ForAll(
		func(offsets, lengths []int, todayOffset int) bool {
			today := epoch.AddDate(0, 0, todayOffset)

			var prev time.Time
			for p := range tracker.Unprocessed(buildHistory(offsets, lengths), today) {
				if !prev.IsZero() && !p.Start.After(prev) {
					return false
				}

				if p.End.After(today) || p.Start.Day() != 1 {
					return false
				}

				prev = p.Start
			}

			return true
		},
		gen.SliceOf(gen.IntRange(0, 400)),
		gen.SliceOf(gen.IntRange(0, 60)),
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t)
}
