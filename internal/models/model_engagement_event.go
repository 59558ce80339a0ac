package models

import "time"

// EngagementEvent is a single observed engagement ("prayed", opened a
// reminder, replied). The activity observer reduces these to a latest
// timestamp per (subscriber, campaign).
type EngagementEvent struct {
	ID           string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriberID string    `gorm:"column:subscriber_id;type:uuid;not null;index:idx_engagement_subject" json:"subscriber_id"`
	CampaignID   string    `gorm:"column:campaign_id;type:uuid;not null;index:idx_engagement_subject" json:"campaign_id"`
	Kind         string    `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	OccurredAt   time.Time `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (EngagementEvent) TableName() string {
	return "engagement_event"
}
