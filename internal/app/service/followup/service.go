package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/tool"
	"github.com/lampstand/intercede/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service handles explicit check-in answers and the response audit trail.
// An explicit answer and passively observed activity are equivalent cycle
// completions; this is the explicit path.
type Service struct {
	db   *gorm.DB
	log  *zap.SugaredLogger
	subs SubscriptionStore
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, subs SubscriptionStore) *Service {
	return &Service{db: db, log: log, subs: subs}
}

// RecordResponse stores the subscriber's answer and completes the current
// escalation cycle.
func (s *Service) RecordResponse(ctx context.Context, subscriptionID string, kind types.FollowupResponseKind, respondedAt time.Time) (*models.FollowupResponse, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid followup response %q", kind)
	}

	var sub models.Subscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", subscriptionID).Error; err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	resp := &models.FollowupResponse{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: subscriptionID,
		Response:       kind,
		FollowupSentAt: sub.LastFollowupAt,
		RespondedAt:    respondedAt,
	}
	if err := s.db.WithContext(ctx).Create(resp).Error; err != nil {
		return nil, fmt.Errorf("store followup response: %w", err)
	}
	if err := s.subs.CompleteFollowupCycle(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListResponses returns a subscription's response history, newest first.
func (s *Service) ListResponses(ctx context.Context, subscriptionID string) ([]*models.FollowupResponse, error) {
	var out []*models.FollowupResponse
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("responded_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list followup responses: %w", err)
	}
	return out, nil
}
