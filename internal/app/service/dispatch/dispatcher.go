package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lampstand/intercede/internal/app/service/content"
	"github.com/lampstand/intercede/internal/app/service/notify"
	"github.com/lampstand/intercede/internal/app/service/schedule"
	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/metrics"
	"github.com/lampstand/intercede/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const jobName = "dispatch"

// SubscriptionStore is the slice of the subscription service the
// dispatcher needs.
type SubscriptionStore interface {
	DueSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	AdvanceOccurrence(ctx context.Context, id string, next time.Time) error
}

// ContactStore resolves verified delivery targets; unverified subscribers
// yield (nil, nil).
type ContactStore interface {
	VerifiedContact(ctx context.Context, subscriberID string) (*types.Contact, error)
}

// ContentProvider supplies the reminder body. A nil result is valid: the
// reminder still goes out without body content.
type ContentProvider interface {
	ContentForDate(ctx context.Context, campaignID string, date time.Time, locale string) (*content.Content, error)
}

// LedgerStore is the dedup guard the dispatcher consults before sending.
type LedgerStore interface {
	Record(ctx context.Context, subscriptionID, date string) error
	WasSent(ctx context.Context, subscriptionID, date string) (bool, error)
}

// Dispatcher finds due subscriptions and sends their reminders, at most
// once per subscription per calendar day. A notifier failure leaves the
// subscription due so the next poll retries it; only a successful (or
// deduplicated) send advances the schedule.
type Dispatcher struct {
	log      *zap.SugaredLogger
	m        *metrics.JobMetrics
	subs     SubscriptionStore
	contacts ContactStore
	content  ContentProvider
	notifier notify.Notifier
	ledger   LedgerStore
	floor    *time.Time

	now     func() time.Time
	running atomic.Bool
}

func NewDispatcher(
	log *zap.SugaredLogger,
	m *metrics.JobMetrics,
	subs SubscriptionStore,
	contacts ContactStore,
	contentProvider ContentProvider,
	notifier notify.Notifier,
	ledger LedgerStore,
	floor *time.Time,
) *Dispatcher {
	return &Dispatcher{
		log:      log,
		m:        m,
		subs:     subs,
		contacts: contacts,
		content:  contentProvider,
		notifier: notifier,
		ledger:   ledger,
		floor:    floor,
		now:      time.Now,
	}
}

// Run executes one dispatch pass. Single-flight: if a previous run is
// still in progress the tick is skipped entirely, never queued.
func (d *Dispatcher) Run(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		d.m.SkippedRuns.WithLabelValues(jobName).Inc()
		d.log.Warnw("dispatch run still in progress, skipping tick")
		return
	}
	defer d.running.Store(false)
	defer func() {
		// a panicking run must not kill the recurring timer
		if r := recover(); r != nil {
			d.log.Errorw("dispatch run panicked", "panic", r)
		}
	}()

	start := time.Now()
	d.runOnce(ctx, d.now().UTC())
	d.m.Runs.WithLabelValues(jobName).Inc()
	d.m.RunDuration.WithLabelValues(jobName).Observe(float64(time.Since(start).Milliseconds()))
}

func (d *Dispatcher) runOnce(ctx context.Context, now time.Time) {
	due, err := d.subs.DueSubscriptions(ctx, now)
	if err != nil {
		d.log.Errorw("failed to query due subscriptions", "err", err)
		return
	}
	if len(due) == 0 {
		return
	}
	d.log.Infow("dispatching reminders", "due", len(due))

	// one content fetch per campaign, shared by the whole batch
	byCampaign := lo.GroupBy(due, func(s *models.Subscription) string { return s.CampaignID })
	for campaignID, batch := range byCampaign {
		body, err := d.content.ContentForDate(ctx, campaignID, now, "")
		if err != nil {
			d.log.Warnw("content lookup failed, sending without body", "campaign_id", campaignID, "err", err)
			body = nil
		}
		for _, sub := range batch {
			if err := d.processOne(ctx, sub, body, now); err != nil {
				d.log.Errorw("failed to dispatch reminder",
					"subscription_id", sub.ID, "campaign_id", sub.CampaignID, "err", err)
			}
		}
	}
}

// processOne handles a single due subscription. Failures here never abort
// the batch; the caller logs and moves to the next row.
func (d *Dispatcher) processOne(ctx context.Context, sub *models.Subscription, body *content.Content, now time.Time) error {
	localDate, err := localSendDate(sub, now)
	if err != nil {
		return err
	}

	sent, err := d.ledger.WasSent(ctx, sub.ID, localDate)
	if err != nil {
		return err
	}
	if sent {
		// overlapping run or clock skew: skip the send but still move the
		// schedule forward so the row stops showing up as due
		d.m.DedupSkips.WithLabelValues(jobName).Inc()
		return d.advance(ctx, sub, now)
	}

	contact, err := d.contacts.VerifiedContact(ctx, sub.SubscriberID)
	if err != nil {
		return err
	}
	if contact == nil {
		d.log.Warnw("due subscription has no verified contact", "subscription_id", sub.ID)
		return nil
	}

	if err := d.notifier.Send(ctx, *contact, renderReminder(sub, body, *contact)); err != nil {
		// do not advance: the subscription stays due and retries next poll
		d.m.SendErrors.WithLabelValues(jobName).Inc()
		return err
	}
	d.m.Sends.WithLabelValues(jobName).Inc()

	if err := d.ledger.Record(ctx, sub.ID, localDate); err != nil {
		d.log.Errorw("ledger write failed after send", "subscription_id", sub.ID, "err", err)
	}
	return d.advance(ctx, sub, now)
}

func (d *Dispatcher) advance(ctx context.Context, sub *models.Subscription, now time.Time) error {
	next, err := schedule.NextOccurrenceAfterSend(sub.Timezone, sub.TimePreference, sub.Frequency, sub.DaysOfWeek, now, d.floor)
	if err != nil {
		return fmt.Errorf("compute next occurrence: %w", err)
	}
	return d.subs.AdvanceOccurrence(ctx, sub.ID, next)
}

// localSendDate is the subscriber-local calendar date used as the ledger
// key, so "once per day" means the subscriber's day, not the server's.
func localSendDate(sub *models.Subscription, now time.Time) (string, error) {
	loc, err := time.LoadLocation(sub.Timezone)
	if err != nil {
		return "", fmt.Errorf("load timezone %q: %w", sub.Timezone, err)
	}
	return now.In(loc).Format(time.DateOnly), nil
}

func renderReminder(sub *models.Subscription, body *content.Content, contact types.Contact) notify.Message {
	msg := notify.Message{Subject: "Time to pray"}
	if body != nil {
		if body.Subject != "" {
			msg.Subject = body.Subject
		}
		msg.Body = body.Body
	}
	if msg.Body == "" {
		msg.Body = fmt.Sprintf("This is your reminder to pray for %d minutes today.", sub.PrayerDurationMin)
	}
	return msg
}
