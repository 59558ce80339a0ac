package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/tool"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the activity observer: it reduces raw engagement events to
// the latest engagement instant per (subscriber, campaign). The follow-up
// engine reads it; the API writes events through RecordEngagement.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// LastActivityAt returns the most recent engagement instant, or nil when
// no engagement has ever been observed.
func (s *Service) LastActivityAt(ctx context.Context, subscriberID, campaignID string) (*time.Time, error) {
	var row struct {
		Latest *time.Time
	}
	err := s.db.WithContext(ctx).Model(&models.EngagementEvent{}).
		Select("MAX(occurred_at) AS latest").
		Where("subscriber_id = ? AND campaign_id = ?", subscriberID, campaignID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("query last activity: %w", err)
	}
	return row.Latest, nil
}

// RecordEngagement appends one engagement event.
func (s *Service) RecordEngagement(ctx context.Context, subscriberID, campaignID, kind string, occurredAt time.Time) error {
	ev := &models.EngagementEvent{
		ID:           tool.GenerateUUIDV7(),
		SubscriberID: subscriberID,
		CampaignID:   campaignID,
		Kind:         kind,
		OccurredAt:   occurredAt,
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("record engagement: %w", err)
	}
	return nil
}
