package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/lampstand/intercede/pkg/types"

	"github.com/samber/lo"
)

// The occurrence calculator is pure: no clock, no storage. Callers pass
// "now" and the optional campaign-start floor explicitly so the functions
// stay independently testable.

// NextOccurrence computes the next UTC instant at which a reminder should
// fire for the given schedule, evaluated at now. The candidate is built in
// the subscriber's zone per candidate date, so offsets are correct across
// DST transitions. floor, when non-nil, is a calendar date before which no
// occurrence may be scheduled.
func NextOccurrence(tz string, timeOfDay string, freq types.Frequency, daysOfWeek []int, now time.Time, floor *time.Time) (time.Time, error) {
	return nextOccurrence(tz, timeOfDay, freq, daysOfWeek, now, floor, false)
}

// NextOccurrenceAfterSend is the post-dispatch variant: it always advances
// strictly past the current local day, even if today's slot would still
// qualify. This guarantees forward progress immediately after a send.
func NextOccurrenceAfterSend(tz string, timeOfDay string, freq types.Frequency, daysOfWeek []int, now time.Time, floor *time.Time) (time.Time, error) {
	return nextOccurrence(tz, timeOfDay, freq, daysOfWeek, now, floor, true)
}

func nextOccurrence(tz string, timeOfDay string, freq types.Frequency, daysOfWeek []int, now time.Time, floor *time.Time, afterSend bool) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	localNow := now.In(loc)
	y, m, d := localNow.Date()

	var candidate time.Time
	switch freq {
	case types.FrequencyDaily:
		candidate = time.Date(y, m, d, hour, minute, 0, 0, loc)
		if afterSend || !candidate.After(localNow) {
			candidate = time.Date(y, m, d+1, hour, minute, 0, 0, loc)
		}
	case types.FrequencyWeekly:
		days := normalizeWeekdays(daysOfWeek)
		if len(days) == 0 {
			return time.Time{}, fmt.Errorf("weekly schedule requires a non-empty weekday set")
		}
		candidate, err = scanWeekly(loc, y, m, d, hour, minute, days, localNow, afterSend)
		if err != nil {
			return time.Time{}, err
		}
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", freq)
	}

	if floor != nil {
		candidate, err = applyFloor(candidate, loc, hour, minute, freq, daysOfWeek, *floor)
		if err != nil {
			return time.Time{}, err
		}
	}
	return candidate.UTC(), nil
}

// scanWeekly finds the nearest included weekday at timeOfDay, starting from
// the local date (y, m, d). Today only counts when its slot has not passed
// and the caller is not advancing after a send.
func scanWeekly(loc *time.Location, y int, m time.Month, d, hour, minute int, days []int, localNow time.Time, afterSend bool) (time.Time, error) {
	start := 0
	if afterSend {
		start = 1
	}
	for i := start; i <= 7; i++ {
		candidate := time.Date(y, m, d+i, hour, minute, 0, 0, loc)
		if !weekdayIncluded(days, candidate.Weekday()) {
			continue
		}
		if i == 0 && !candidate.After(localNow) {
			continue
		}
		return candidate, nil
	}
	return time.Time{}, fmt.Errorf("no occurrence within 7 days for weekday set %v", days)
}

// applyFloor pushes a candidate that fell before the campaign-start floor
// forward onto or past the floor date. The floor is a calendar date; it is
// compared at timeOfDay in the subscriber's zone.
func applyFloor(candidate time.Time, loc *time.Location, hour, minute int, freq types.Frequency, daysOfWeek []int, floor time.Time) (time.Time, error) {
	fy, fm, fd := floor.Date()
	floorLocal := time.Date(fy, fm, fd, hour, minute, 0, 0, loc)
	if !candidate.Before(floorLocal) {
		return candidate, nil
	}
	if freq == types.FrequencyDaily {
		return floorLocal, nil
	}
	days := normalizeWeekdays(daysOfWeek)
	for i := 0; i <= 7; i++ {
		c := time.Date(fy, fm, fd+i, hour, minute, 0, 0, loc)
		if weekdayIncluded(days, c.Weekday()) {
			return c, nil
		}
	}
	return time.Time{}, fmt.Errorf("no occurrence within 7 days of floor for weekday set %v", days)
}

// ParseTimeOfDay parses a local "HH:MM" time preference.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time preference %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

func normalizeWeekdays(days []int) []int {
	out := lo.Uniq(lo.Filter(days, func(d int, _ int) bool { return d >= 0 && d <= 6 }))
	sort.Ints(out)
	return out
}

func weekdayIncluded(days []int, wd time.Weekday) bool {
	return lo.Contains(days, int(wd))
}
