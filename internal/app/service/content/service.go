package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Content is one day's reminder body. A nil Content is a valid result:
// reminders still go out without body content.
type Content struct {
	Subject string
	Body    string
}

// Service resolves rotating campaign content by calendar date. Day
// numbering is anchored at the campaign's start date and wraps over the
// available content so long-running campaigns keep rotating.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) ContentForDate(ctx context.Context, campaignID string, date time.Time, locale string) (*Content, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}

	if locale == "" {
		locale = campaign.Locale
	}
	daysSince := int(date.Sub(startOfDay(campaign.StartAt)).Hours() / 24)
	if daysSince < 0 {
		return nil, nil
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.CampaignContent{}).
		Where("campaign_id = ? AND locale = ?", campaignID, locale).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count campaign content: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	dayNumber := daysSince%int(total) + 1
	var row models.CampaignContent
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND day_number = ? AND locale = ?", campaignID, dayNumber, locale).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load campaign content day %d: %w", dayNumber, err)
	}
	return &Content{Subject: row.Subject, Body: row.Body}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
