package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/tool"
	"github.com/lampstand/intercede/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the contact store. Dispatch is gated on VerifiedContact: an
// unverified subscriber never receives anything.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// VerifiedContact resolves the delivery target for a subscription's owner.
// Returns (nil, nil) when the subscriber exists but is not verified.
func (s *Service) VerifiedContact(ctx context.Context, subscriberID string) (*types.Contact, error) {
	var sub models.Subscriber
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", subscriberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load subscriber %s: %w", subscriberID, err)
	}
	if !sub.Verified() {
		return nil, nil
	}
	return &types.Contact{
		SubscriberID: sub.ID,
		Channel:      sub.Channel,
		Address:      sub.ContactAddress(),
		Name:         sub.Name,
		Locale:       sub.Locale,
	}, nil
}

type CreateSubscriberRequest struct {
	Name    string        `json:"name"`
	Email   string        `json:"email"`
	Phone   string        `json:"phone"`
	Channel types.Channel `json:"channel" binding:"required"`
	Locale  string        `json:"locale"`
}

func (s *Service) Create(ctx context.Context, req *CreateSubscriberRequest) (*models.Subscriber, error) {
	switch req.Channel {
	case types.ChannelEmail:
		if req.Email == "" {
			return nil, fmt.Errorf("email channel requires an email address")
		}
	case types.ChannelSMS, types.ChannelWhatsApp:
		if req.Phone == "" {
			return nil, fmt.Errorf("%s channel requires a phone number", req.Channel)
		}
	default:
		return nil, fmt.Errorf("unknown channel %q", req.Channel)
	}
	sub := &models.Subscriber{
		ID:      tool.GenerateUUIDV7(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Channel: req.Channel,
		Locale:  req.Locale,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return sub, nil
}

// MarkVerified stamps the channel verification time. Idempotent: a second
// verification keeps the original timestamp.
func (s *Service) MarkVerified(ctx context.Context, subscriberID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("id = ? AND channel_verified_at IS NULL", subscriberID).
		Update("channel_verified_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark subscriber verified: %w", res.Error)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, subscriberID string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", subscriberID).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
