package models

import (
	"time"

	"github.com/lampstand/intercede/pkg/types"

	"gorm.io/datatypes"
)

// Subscription is one subscriber's recurring prayer commitment for one
// campaign. Scheduling fields are owned by the dispatcher, follow-up fields
// by the escalation engine.
type Subscription struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriberID string `gorm:"column:subscriber_id;type:uuid;not null;index" json:"subscriber_id"`
	CampaignID   string `gorm:"column:campaign_id;type:uuid;not null;index" json:"campaign_id"`

	Frequency types.Frequency `gorm:"column:frequency;type:varchar(16);not null" json:"frequency"`
	// DaysOfWeek uses 0=Sunday..6=Saturday. Required and non-empty iff
	// Frequency is weekly.
	DaysOfWeek datatypes.JSONSlice[int] `gorm:"column:days_of_week;type:jsonb" json:"days_of_week,omitempty"`
	// TimePreference is the local wall-clock send time, "HH:MM".
	TimePreference string `gorm:"column:time_preference;type:varchar(5);not null" json:"time_preference"`
	// Timezone is an IANA zone name, validated before it is ever stored.
	Timezone string `gorm:"column:timezone;type:varchar(64);not null" json:"timezone"`
	// PrayerDurationMin is display-only; it never affects scheduling.
	PrayerDurationMin int `gorm:"column:prayer_duration_min;default:15" json:"prayer_duration_min"`

	// NextOccurrenceUTC is nil until the subscriber's channel is verified.
	// Once set it only moves forward.
	NextOccurrenceUTC *time.Time `gorm:"column:next_occurrence_utc;default:null;index" json:"next_occurrence_utc"`

	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	// Follow-up escalation state. FollowupReminderCount is the number of
	// check-in messages sent in the current cycle (0, 1 or 2);
	// FollowupCount is the number of completed cycles.
	LastFollowupAt        *time.Time `gorm:"column:last_followup_at;default:null" json:"last_followup_at"`
	FollowupCount         int        `gorm:"column:followup_count;not null;default:0" json:"followup_count"`
	FollowupReminderCount int        `gorm:"column:followup_reminder_count;not null;default:0" json:"followup_reminder_count"`

	// Extra stores additional JSON data (for example display preferences).
	Extra datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Weekly reports whether the schedule uses a weekday set.
func (s *Subscription) Weekly() bool {
	return s != nil && s.Frequency == types.FrequencyWeekly
}

// Schedulable reports whether the dispatcher should ever consider this row.
func (s *Subscription) Schedulable() bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		s.NextOccurrenceUTC != nil
}
