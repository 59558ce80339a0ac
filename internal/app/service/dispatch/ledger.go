package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the durable at-most-once record of sends, keyed by
// (subscription, calendar date).
type Ledger struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewLedger(db *gorm.DB, log *zap.SugaredLogger) *Ledger {
	return &Ledger{db: db, log: log}
}

// Record marks a send for the given local calendar date. Duplicate inserts
// are expected under retry and are absorbed silently.
func (l *Ledger) Record(ctx context.Context, subscriptionID, date string) error {
	entry := &models.DispatchLedgerEntry{
		SubscriptionID: subscriptionID,
		SentDate:       date,
	}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// WasSent reports whether a reminder already went out for the date.
func (l *Ledger) WasSent(ctx context.Context, subscriptionID, date string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.DispatchLedgerEntry{}).
		Where("subscription_id = ? AND sent_date = ?", subscriptionID, date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return count > 0, nil
}

// Prune removes entries older than the retention window and returns the
// number of rows deleted.
func (l *Ledger) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.DateOnly)
	res := l.db.WithContext(ctx).
		Where("sent_date < ?", cutoff).
		Delete(&models.DispatchLedgerEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune ledger: %w", res.Error)
	}
	return res.RowsAffected, nil
}
