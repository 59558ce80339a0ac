package schedule

import (
	"testing"
	"time"

	"github.com/lampstand/intercede/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUTC(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts.UTC()
}

func TestNextOccurrence_AllCases(t *testing.T) {
	floorJune := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		tz        string
		timeOfDay string
		freq      types.Frequency
		days      []int
		now       string
		floor     *time.Time
		afterSend bool
		want      string
		wantErr   bool
	}{
		{
			name: "daily slot still ahead today",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now:  "2025-06-06T08:00:00Z",
			want: "2025-06-06T09:00:00Z",
		},
		{
			name: "daily slot passed rolls to tomorrow",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now:  "2025-06-06T09:00:00Z",
			want: "2025-06-07T09:00:00Z",
		},
		{
			name: "daily after send always tomorrow even before slot",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now:  "2025-06-06T08:00:00Z", afterSend: true,
			want: "2025-06-07T09:00:00Z",
		},
		{
			name: "new york winter offset",
			tz:   "America/New_York", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now:  "2025-01-15T08:00:00-05:00",
			want: "2025-01-15T14:00:00Z",
		},
		{
			name: "new york summer offset",
			tz:   "America/New_York", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now:  "2025-07-15T08:00:00-04:00",
			want: "2025-07-15T13:00:00Z",
		},
		{
			name: "half hour offset round trips",
			tz:   "Asia/Kolkata", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now:  "2025-06-06T00:00:00Z",
			want: "2025-06-06T03:30:00Z",
		},
		{
			name: "weekly monday evaluated on saturday wraps",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyWeekly, days: []int{1},
			now:  "2025-06-07T10:00:00Z",
			want: "2025-06-09T09:00:00Z",
		},
		{
			name: "weekly today included and slot ahead uses today",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyWeekly, days: []int{5},
			now:  "2025-06-06T08:00:00Z",
			want: "2025-06-06T09:00:00Z",
		},
		{
			name: "weekly friday slot passed goes to monday",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyWeekly, days: []int{1, 5},
			now:  "2025-06-06T10:00:00Z",
			want: "2025-06-09T09:00:00Z",
		},
		{
			name: "weekly after send excludes today entirely",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyWeekly, days: []int{1, 5},
			now:  "2025-06-06T08:00:00Z", afterSend: true,
			want: "2025-06-09T09:00:00Z",
		},
		{
			name: "weekly every day degrades to daily",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyWeekly, days: []int{0, 1, 2, 3, 4, 5, 6},
			now:  "2025-06-06T10:00:00Z",
			want: "2025-06-07T09:00:00Z",
		},
		{
			name: "daily floor pushes candidate onto floor",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now: "2025-05-20T10:00:00Z", floor: &floorJune,
			want: "2025-06-01T09:00:00Z",
		},
		{
			name: "weekly floor rescans from floor date",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyWeekly, days: []int{3},
			now: "2025-05-20T10:00:00Z", floor: &floorJune,
			want: "2025-06-04T09:00:00Z",
		},
		{
			name: "candidate past floor untouched",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now: "2025-07-10T10:00:00Z", floor: &floorJune,
			want: "2025-07-11T09:00:00Z",
		},
		{
			name: "weekly without weekdays errors",
			tz:   "UTC", timeOfDay: "09:00", freq: types.FrequencyWeekly,
			now: "2025-06-06T08:00:00Z", wantErr: true,
		},
		{
			name: "unknown frequency errors",
			tz:   "UTC", timeOfDay: "09:00", freq: types.Frequency("monthly"),
			now: "2025-06-06T08:00:00Z", wantErr: true,
		},
		{
			name: "bad zone errors",
			tz:   "Not/AZone", timeOfDay: "09:00", freq: types.FrequencyDaily,
			now: "2025-06-06T08:00:00Z", wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, err := time.Parse(time.RFC3339, tt.now)
			require.NoError(t, err)

			var got time.Time
			if tt.afterSend {
				got, err = NextOccurrenceAfterSend(tt.tz, tt.timeOfDay, tt.freq, tt.days, now, tt.floor)
			} else {
				got, err = NextOccurrence(tt.tz, tt.timeOfDay, tt.freq, tt.days, now, tt.floor)
			}
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, mustUTC(t, tt.want), got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNextOccurrenceAfterSend_ForwardOnly(t *testing.T) {
	cases := []struct {
		name string
		freq types.Frequency
		days []int
	}{
		{name: "daily", freq: types.FrequencyDaily},
		{name: "weekly sparse", freq: types.FrequencyWeekly, days: []int{2, 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Date(2025, 3, 1, 4, 0, 0, 0, time.UTC)
			prev := now
			for i := 0; i < 30; i++ {
				next, err := NextOccurrenceAfterSend("America/New_York", "09:00", tc.freq, tc.days, prev, nil)
				require.NoError(t, err)
				assert.True(t, next.After(prev), "iteration %d: %s not after %s", i, next, prev)
				prev = next
			}
		})
	}
}

func TestNextOccurrence_DSTSpringForward(t *testing.T) {
	// US DST began 2025-03-09 at 02:00 local. The occurrence on either side
	// of the transition must use that day's offset, not today's.
	before, err := NextOccurrence("America/New_York", "09:00", types.FrequencyDaily, nil, time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC), before)

	after, err := NextOccurrenceAfterSend("America/New_York", "09:00", types.FrequencyDaily, nil, before, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC), after)
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		freq    types.Frequency
		days    []int
		tod     string
		tz      string
		wantErr bool
	}{
		{name: "valid daily", freq: types.FrequencyDaily, tod: "07:30", tz: "Europe/Berlin"},
		{name: "valid weekly", freq: types.FrequencyWeekly, days: []int{0, 3}, tod: "21:00", tz: "Asia/Kolkata"},
		{name: "weekly empty set", freq: types.FrequencyWeekly, tod: "09:00", tz: "UTC", wantErr: true},
		{name: "weekly out of range day", freq: types.FrequencyWeekly, days: []int{7}, tod: "09:00", tz: "UTC", wantErr: true},
		{name: "daily with weekday set", freq: types.FrequencyDaily, days: []int{1}, tod: "09:00", tz: "UTC", wantErr: true},
		{name: "bad zone", freq: types.FrequencyDaily, tod: "09:00", tz: "Mars/OlympusMons", wantErr: true},
		{name: "bad time", freq: types.FrequencyDaily, tod: "25:00", tz: "UTC", wantErr: true},
		{name: "unknown frequency", freq: types.Frequency("fortnightly"), tod: "09:00", tz: "UTC", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.freq, tt.days, tt.tod, tt.tz)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
