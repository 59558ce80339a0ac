package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/types"

	"gorm.io/gorm"
)

// Job-facing accessors. Both background jobs touch subscription rows only
// through the methods below, each of which is a single atomic UPDATE so
// the two jobs can run concurrently without lost updates.

// DueSubscriptions returns active, channel-verified subscriptions whose
// next occurrence is at or before now.
func (s *Service) DueSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscriber ON subscriber.id = subscription.subscriber_id").
		Where("subscription.status = ?", types.SubscriptionStatusActive).
		Where("subscriber.channel_verified_at IS NOT NULL").
		Where("subscription.next_occurrence_utc IS NOT NULL AND subscription.next_occurrence_utc <= ?", now).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("query due subscriptions: %w", err)
	}
	return subs, nil
}

// ActiveVerifiedSubscriptions returns the rows the escalation engine
// walks each run.
func (s *Service) ActiveVerifiedSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscriber ON subscriber.id = subscription.subscriber_id").
		Where("subscription.status = ?", types.SubscriptionStatusActive).
		Where("subscriber.channel_verified_at IS NOT NULL").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	return subs, nil
}

// AdvanceOccurrence moves next_occurrence_utc forward. The WHERE guard
// keeps the advance monotonic even if two runs race on the same row.
func (s *Service) AdvanceOccurrence(ctx context.Context, id string, next time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND (next_occurrence_utc IS NULL OR next_occurrence_utc < ?)", id, next).
		Update("next_occurrence_utc", next).Error
	if err != nil {
		return fmt.Errorf("advance occurrence: %w", err)
	}
	return nil
}

// MarkFollowupSent records one check-in message: stamps last_followup_at
// and sets the in-cycle message counter.
func (s *Service) MarkFollowupSent(ctx context.Context, id string, at time.Time, reminderCount int) error {
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_followup_at":        at,
			"followup_reminder_count": reminderCount,
		}).Error
	if err != nil {
		return fmt.Errorf("mark followup sent: %w", err)
	}
	return nil
}

// CompleteFollowupCycle closes the current escalation cycle: one more
// completed cycle, no pending check-in.
func (s *Service) CompleteFollowupCycle(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"followup_count":          gorm.Expr("followup_count + 1"),
			"followup_reminder_count": 0,
		}).Error
	if err != nil {
		return fmt.Errorf("complete followup cycle: %w", err)
	}
	return nil
}

// MarkDormant deactivates a subscription that ignored both check-ins. No
// further automatic messages until manual reactivation.
func (s *Service) MarkDormant(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("status", types.SubscriptionStatusInactive).Error
	if err != nil {
		return fmt.Errorf("mark dormant: %w", err)
	}
	return nil
}
