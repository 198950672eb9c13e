// Package schedule implements the pure calendar arithmetic behind recurring
// invoice cadences. It has no dependency on persistence so advancement rules
// can be tested in isolation.
package schedule

import (
	"time"

	"github.com/facturo/facturo/internal/recurring/domain"
)

// Next returns the schedule date one period after from. The step is anchored
// to from, never to the processing date, so delayed runs do not drift the
// cadence. Month-based periods are calendar-aware and clamp to the last day
// of the target month (Jan 31 + 1 month = Feb 29 in a leap year, not Mar 2).
func Next(from time.Time, frequency domain.Frequency) (time.Time, error) {
	switch frequency {
	case domain.FrequencyDaily:
		return from.AddDate(0, 0, 1), nil
	case domain.FrequencyWeekly:
		return from.AddDate(0, 0, 7), nil
	case domain.FrequencyMonthly:
		return addMonths(from, 1), nil
	case domain.FrequencyQuarterly:
		return addMonths(from, 3), nil
	case domain.FrequencyYearly:
		return addMonths(from, 12), nil
	default:
		return time.Time{}, domain.ErrInvalidFrequency
	}
}

func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()

	anchor := time.Date(year, month+time.Month(months), 1, hour, minute, second, t.Nanosecond(), t.Location())
	if last := daysIn(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, hour, minute, second, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day zero of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly truncates t to midnight UTC. Schedule comparisons happen at day
// granularity.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DueOn reports whether a schedule date is due as of the given day.
func DueOn(next, asOf time.Time) bool {
	return !DateOnly(next).After(DateOnly(asOf))
}

// After reports whether a is strictly after b at day granularity.
func After(a, b time.Time) bool {
	return DateOnly(a).After(DateOnly(b))
}
