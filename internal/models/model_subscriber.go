package models

import (
	"time"

	"github.com/lampstand/intercede/pkg/types"
)

// Subscriber owns subscriptions. A subscription is never due for dispatch
// until its subscriber's channel has been verified.
type Subscriber struct {
	ID    string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name  string `gorm:"column:name;type:varchar(255)" json:"name"`
	Email string `gorm:"column:email;type:varchar(255)" json:"email"`
	// Phone is stored in E.164 form.
	Phone             string        `gorm:"column:phone;type:varchar(32)" json:"phone"`
	Channel           types.Channel `gorm:"column:channel;type:varchar(16);not null;default:'sms'" json:"channel"`
	Locale            string        `gorm:"column:locale;type:varchar(16);default:'en'" json:"locale"`
	ChannelVerifiedAt *time.Time    `gorm:"column:channel_verified_at;default:null" json:"channel_verified_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscriber) TableName() string {
	return "subscriber"
}

func (s *Subscriber) Verified() bool {
	return s != nil && s.ChannelVerifiedAt != nil
}

// ContactAddress returns the delivery address for the subscriber's channel.
func (s *Subscriber) ContactAddress() string {
	if s.Channel == types.ChannelEmail {
		return s.Email
	}
	return s.Phone
}
