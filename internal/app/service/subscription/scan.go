package subscription

import (
	"context"
	"fmt"

	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/types"

	"gorm.io/gorm/clause"
)

type ScanSubscriptionsRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

type ScanSubscriptionsResponse struct {
	Total int64                  `json:"total"`
	Items []*models.Subscription `json:"items"`
}

// filtersAnd combines multiple CommonFilter into a single AND expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// Scan implements paginated admin listing with filters.
func (s *Service) Scan(ctx context.Context, req *ScanSubscriptionsRequest) (*ScanSubscriptionsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Subscription{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}

	var items []*models.Subscription
	err := tx.Order("created_at DESC").Offset(req.From).Limit(req.Size).Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions: %w", err)
	}
	return &ScanSubscriptionsResponse{Total: total, Items: items}, nil
}
