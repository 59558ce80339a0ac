package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/app/service/schedule"
	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/config"
	"github.com/lampstand/intercede/pkg/tool"
	"github.com/lampstand/intercede/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns subscription rows: lifecycle operations for the API plus
// the narrow row-level updates the dispatcher and the escalation engine
// perform. All schedule configuration is validated here, at write time;
// the jobs never see an invalid schedule.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	cfg *config.Config
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config) *Service {
	return &Service{db: db, log: log, cfg: cfg}
}

type CreateRequest struct {
	SubscriberID      string          `json:"subscriber_id" binding:"required"`
	CampaignID        string          `json:"campaign_id" binding:"required"`
	Frequency         types.Frequency `json:"frequency" binding:"required"`
	DaysOfWeek        []int           `json:"days_of_week"`
	TimePreference    string          `json:"time_preference" binding:"required"`
	Timezone          string          `json:"timezone" binding:"required"`
	PrayerDurationMin int             `json:"prayer_duration_min"`
}

type UpdateScheduleRequest struct {
	Frequency      types.Frequency `json:"frequency" binding:"required"`
	DaysOfWeek     []int           `json:"days_of_week"`
	TimePreference string          `json:"time_preference" binding:"required"`
	Timezone       string          `json:"timezone" binding:"required"`
}

// Create stores a new subscription with no occurrence scheduled. The first
// occurrence is computed when the subscriber's channel is verified.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Subscription, error) {
	if err := schedule.ValidateSchedule(req.Frequency, req.DaysOfWeek, req.TimePreference, req.Timezone); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	sub := &models.Subscription{
		ID:                tool.GenerateUUIDV7(),
		SubscriberID:      req.SubscriberID,
		CampaignID:        req.CampaignID,
		Frequency:         req.Frequency,
		DaysOfWeek:        req.DaysOfWeek,
		TimePreference:    req.TimePreference,
		Timezone:          req.Timezone,
		PrayerDurationMin: req.PrayerDurationMin,
		Status:            types.SubscriptionStatusActive,
	}
	if sub.PrayerDurationMin <= 0 {
		sub.PrayerDurationMin = 15
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.Subscription{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// UpdateSchedule replaces the schedule fields and recomputes the next
// occurrence from now. The recompute is mandatory: an edited schedule must
// never keep an occurrence computed under the old rules.
func (s *Service) UpdateSchedule(ctx context.Context, id string, req *UpdateScheduleRequest, now time.Time) (*models.Subscription, error) {
	if err := schedule.ValidateSchedule(req.Frequency, req.DaysOfWeek, req.TimePreference, req.Timezone); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sub.Frequency = req.Frequency
	sub.DaysOfWeek = req.DaysOfWeek
	sub.TimePreference = req.TimePreference
	sub.Timezone = req.Timezone

	next, err := s.computeNext(sub, now, false)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"frequency":           req.Frequency,
		"days_of_week":        sub.DaysOfWeek,
		"time_preference":     req.TimePreference,
		"timezone":            req.Timezone,
		"next_occurrence_utc": next,
	}
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	sub.NextOccurrenceUTC = &next
	return sub, nil
}

// ScheduleInitialOccurrence populates next_occurrence_utc for a freshly
// verified subscription. A no-op when an occurrence is already scheduled.
func (s *Service) ScheduleInitialOccurrence(ctx context.Context, id string, now time.Time) (*models.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.NextOccurrenceUTC != nil {
		return sub, nil
	}
	next, err := s.computeNext(sub, now, false)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND next_occurrence_utc IS NULL", id).
		Update("next_occurrence_utc", next).Error
	if err != nil {
		return nil, fmt.Errorf("schedule initial occurrence: %w", err)
	}
	sub.NextOccurrenceUTC = &next
	return sub, nil
}

// Reactivate restores a dormant or unsubscribed subscription. The schedule
// restarts from now and all follow-up state is cleared.
func (s *Service) Reactivate(ctx context.Context, id string, now time.Time) (*models.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := s.computeNext(sub, now, false)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"status":                  types.SubscriptionStatusActive,
		"next_occurrence_utc":     next,
		"last_followup_at":        nil,
		"followup_count":          0,
		"followup_reminder_count": 0,
	}
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("reactivate subscription: %w", err)
	}
	sub.Status = types.SubscriptionStatusActive
	sub.NextOccurrenceUTC = &next
	sub.LastFollowupAt = nil
	sub.FollowupCount = 0
	sub.FollowupReminderCount = 0
	return sub, nil
}

// SetStatus moves a subscription to inactive or unsubscribed. Use
// Reactivate for the way back.
func (s *Service) SetStatus(ctx context.Context, id string, status types.SubscriptionStatus) error {
	if status == types.SubscriptionStatusActive {
		return fmt.Errorf("use Reactivate to restore a subscription")
	}
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	return nil
}

func (s *Service) computeNext(sub *models.Subscription, now time.Time, afterSend bool) (time.Time, error) {
	floor, err := s.cfg.Scheduler.Floor()
	if err != nil {
		return time.Time{}, err
	}
	if afterSend {
		return schedule.NextOccurrenceAfterSend(sub.Timezone, sub.TimePreference, sub.Frequency, sub.DaysOfWeek, now, floor)
	}
	return schedule.NextOccurrence(sub.Timezone, sub.TimePreference, sub.Frequency, sub.DaysOfWeek, now, floor)
}
