package models

import "time"

// Campaign is a prayer focus that subscriptions target.
type Campaign struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name   string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Locale string `gorm:"column:locale;type:varchar(16);default:'en'" json:"locale"`
	// StartAt anchors day numbering for rotating content.
	StartAt   time.Time `gorm:"column:start_at;not null" json:"start_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaign"
}

// CampaignContent is one day's reminder body in the campaign's rotation.
type CampaignContent struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CampaignID string `gorm:"column:campaign_id;type:uuid;not null;uniqueIndex:idx_campaign_day_locale" json:"campaign_id"`
	DayNumber  int    `gorm:"column:day_number;not null;uniqueIndex:idx_campaign_day_locale" json:"day_number"`
	Locale     string `gorm:"column:locale;type:varchar(16);not null;default:'en';uniqueIndex:idx_campaign_day_locale" json:"locale"`
	Subject    string `gorm:"column:subject;type:varchar(255)" json:"subject"`
	Body       string `gorm:"column:body;type:text" json:"body"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CampaignContent) TableName() string {
	return "campaign_content"
}
