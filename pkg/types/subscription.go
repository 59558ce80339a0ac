package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive       SubscriptionStatus = "active"
	SubscriptionStatusInactive     SubscriptionStatus = "inactive"
	SubscriptionStatusUnsubscribed SubscriptionStatus = "unsubscribed"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// FollowupResponseKind is a subscriber's explicit answer to a check-in message.
type FollowupResponseKind string

const (
	FollowupResponseCommitted  FollowupResponseKind = "committed"
	FollowupResponseSometimes  FollowupResponseKind = "sometimes"
	FollowupResponseNotPraying FollowupResponseKind = "not_praying"
)

func (k FollowupResponseKind) Valid() bool {
	switch k {
	case FollowupResponseCommitted, FollowupResponseSometimes, FollowupResponseNotPraying:
		return true
	}
	return false
}

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Contact is a verified delivery target for one subscription.
type Contact struct {
	SubscriberID string
	Channel      Channel
	// Address is a phone number in E.164 form for sms/whatsapp, an email
	// address otherwise.
	Address string
	Name    string
	Locale  string
}

type SubscriptionScheduleInfo struct {
	Frequency         Frequency  `json:"frequency"`
	DaysOfWeek        []int      `json:"days_of_week,omitempty"`
	TimePreference    string     `json:"time_preference"`
	Timezone          string     `json:"timezone"`
	NextOccurrenceUTC *time.Time `json:"next_occurrence_utc"`
}
