package models

import "time"

// DispatchLedgerEntry records one reminder send per subscription per
// calendar day. Existence of a row is the sole source of truth for
// "already sent today". Rows are append-only; retention pruning is the only
// delete path.
type DispatchLedgerEntry struct {
	SubscriptionID string `gorm:"column:subscription_id;type:uuid;primary_key" json:"subscription_id"`
	// SentDate is the subscriber-local calendar date, YYYY-MM-DD.
	SentDate  string    `gorm:"column:sent_date;type:varchar(10);primary_key" json:"sent_date"`
	CreatedAt time.Time `json:"created_at"`
}

func (DispatchLedgerEntry) TableName() string {
	return "dispatch_ledger"
}
