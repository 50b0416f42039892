// Package period computes the calendar windows the ranking is built
// over: whole months and Monday-through-Sunday weeks clipped to a range.
package period

import (
	"fmt"
	"time"

	"github.com/grouprank/strava-ranking/internal/domain"
)

// Range is an inclusive time window.
type Range struct {
	Start time.Time
	End   time.Time
}

// MonthRange returns the first instant of the month and 23:59:59 of its
// last day, both in UTC.
func MonthRange(year, month int) (Range, error) {
	if month < 1 || month > 12 {
		return Range{}, fmt.Errorf("%w: month %d out of range 1-12", domain.ErrInvalidArgument, month)
	}
	if year < 1 {
		return Range{}, fmt.Errorf("%w: year %d out of range", domain.ErrInvalidArgument, year)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return Range{Start: start, End: end}, nil
}

// WeeksInMonth partitions the month into calendar weeks. A week runs
// Monday through Sunday; the first and last entries are clipped to the
// month's boundaries, so a month yields 4 to 6 weeks.
func WeeksInMonth(year, month int) ([]Range, error) {
	r, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return WeeksInRange(r.Start, r.End), nil
}

// WeeksInRange applies the same Monday-through-Sunday partitioning to an
// arbitrary range. The first week starts at start and the last week ends
// at end.
func WeeksInRange(start, end time.Time) []Range {
	var weeks []Range
	current := start
	for !current.After(end) {
		weekEnd := endOfDay(current.AddDate(0, 0, daysUntilSunday(current)))
		if weekEnd.After(end) {
			weekEnd = end
		}
		weeks = append(weeks, Range{Start: current, End: weekEnd})
		current = startOfDay(weekEnd.AddDate(0, 0, 1))
	}
	return weeks
}

// daysUntilSunday returns how many days separate t from the next Sunday,
// zero when t already falls on a Sunday.
func daysUntilSunday(t time.Time) int {
	return (7 - int(t.Weekday())) % 7
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
