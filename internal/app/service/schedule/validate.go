package schedule

import (
	"fmt"
	"time"

	"github.com/lampstand/intercede/pkg/types"
)

// ValidateSchedule rejects invalid schedule configuration at write time so
// the scheduler never sees it. Invalid zone names, malformed time
// preferences and empty weekly weekday sets are all write-time errors.
func ValidateSchedule(freq types.Frequency, daysOfWeek []int, timePreference, timezone string) error {
	switch freq {
	case types.FrequencyDaily:
		if len(daysOfWeek) > 0 {
			return fmt.Errorf("days_of_week is only valid for weekly schedules")
		}
	case types.FrequencyWeekly:
		if len(normalizeWeekdays(daysOfWeek)) == 0 {
			return fmt.Errorf("weekly schedules require at least one weekday (0=Sunday..6=Saturday)")
		}
		for _, d := range daysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("weekday %d out of range 0..6", d)
			}
		}
	default:
		return fmt.Errorf("unknown frequency %q", freq)
	}

	if _, _, err := ParseTimeOfDay(timePreference); err != nil {
		return err
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	if timezone == "" || timezone == "Local" {
		return fmt.Errorf("timezone must be an explicit IANA zone name")
	}
	return nil
}
