package models

import (
	"time"

	"github.com/lampstand/intercede/pkg/types"
)

// FollowupResponse is the audit row written when a subscriber explicitly
// answers a check-in message. The escalation engine works without it;
// passive activity detection completes cycles on its own.
type FollowupResponse struct {
	ID             string                     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string                     `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	Response       types.FollowupResponseKind `gorm:"column:response;type:varchar(32);not null" json:"response"`
	FollowupSentAt *time.Time                 `gorm:"column:followup_sent_at;default:null" json:"followup_sent_at"`
	RespondedAt    time.Time                  `gorm:"column:responded_at;not null" json:"responded_at"`
	CreatedAt      time.Time                  `json:"created_at"`
}

func (FollowupResponse) TableName() string {
	return "followup_response"
}
