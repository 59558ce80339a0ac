package followup

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lampstand/intercede/internal/app/service/notify"
	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/metrics"
	"github.com/lampstand/intercede/pkg/types"

	"go.uber.org/zap"
)

const jobName = "followup"

// Escalation timing. The first cycle waits one month from the anchor, every
// later cycle three months; each step within a cycle waits one week.
const (
	firstCycleMonths = 1
	laterCycleMonths = 3
	stepWait         = 7 * 24 * time.Hour
)

// SubscriptionStore is the slice of the subscription service the engine
// needs. Every mutation is a single row-level update.
type SubscriptionStore interface {
	ActiveVerifiedSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	MarkFollowupSent(ctx context.Context, id string, at time.Time, reminderCount int) error
	CompleteFollowupCycle(ctx context.Context, id string) error
	MarkDormant(ctx context.Context, id string) error
}

// ActivityObserver supplies the latest engagement instant per
// (subscriber, campaign), or nil when none was ever observed.
type ActivityObserver interface {
	LastActivityAt(ctx context.Context, subscriberID, campaignID string) (*time.Time, error)
}

type ContactStore interface {
	VerifiedContact(ctx context.Context, subscriberID string) (*types.Contact, error)
}

// Engine walks active subscriptions and advances a bounded check-in state
// machine: at most two messages per cycle, then dormancy. Observed
// activity cancels the escalation and completes the cycle.
type Engine struct {
	log      *zap.SugaredLogger
	m        *metrics.JobMetrics
	subs     SubscriptionStore
	activity ActivityObserver
	contacts ContactStore
	notifier notify.Notifier

	now     func() time.Time
	running atomic.Bool
}

func NewEngine(
	log *zap.SugaredLogger,
	m *metrics.JobMetrics,
	subs SubscriptionStore,
	activity ActivityObserver,
	contacts ContactStore,
	notifier notify.Notifier,
) *Engine {
	return &Engine{
		log:      log,
		m:        m,
		subs:     subs,
		activity: activity,
		contacts: contacts,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run executes one escalation pass, single-flight guarded like the
// dispatcher: an overlapping tick is skipped, never queued.
func (e *Engine) Run(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.m.SkippedRuns.WithLabelValues(jobName).Inc()
		e.log.Warnw("followup run still in progress, skipping tick")
		return
	}
	defer e.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("followup run panicked", "panic", r)
		}
	}()

	start := time.Now()
	e.runOnce(ctx, e.now().UTC())
	e.m.Runs.WithLabelValues(jobName).Inc()
	e.m.RunDuration.WithLabelValues(jobName).Observe(float64(time.Since(start).Milliseconds()))
}

func (e *Engine) runOnce(ctx context.Context, now time.Time) {
	subs, err := e.subs.ActiveVerifiedSubscriptions(ctx)
	if err != nil {
		e.log.Errorw("failed to query active subscriptions", "err", err)
		return
	}
	for _, sub := range subs {
		if err := e.evaluate(ctx, sub, now); err != nil {
			e.log.Errorw("followup evaluation failed",
				"subscription_id", sub.ID, "err", err)
		}
	}
}

// evaluate advances one subscription's state machine by at most one step.
// A notifier failure leaves the counters untouched so the same step is
// retried on the next run, never skipped forward.
func (e *Engine) evaluate(ctx context.Context, sub *models.Subscription, now time.Time) error {
	switch sub.FollowupReminderCount {
	case 0:
		return e.maybeSendInitial(ctx, sub, now)
	case 1:
		return e.maybeEscalate(ctx, sub, now, 2)
	default:
		return e.maybeMarkDormant(ctx, sub, now)
	}
}

// maybeSendInitial starts a cycle once the subscriber has been quiet for
// the full cycle wait. The wait is anchored to genuine engagement when any
// exists, otherwise to the subscription's creation.
func (e *Engine) maybeSendInitial(ctx context.Context, sub *models.Subscription, now time.Time) error {
	lastActivity, err := e.activity.LastActivityAt(ctx, sub.SubscriberID, sub.CampaignID)
	if err != nil {
		return err
	}
	base := sub.CreatedAt
	if lastActivity != nil {
		base = *lastActivity
	}
	months := firstCycleMonths
	if sub.FollowupCount > 0 {
		months = laterCycleMonths
	}
	if now.Before(base.AddDate(0, months, 0)) {
		return nil
	}
	return e.sendCheckin(ctx, sub, now, 1)
}

// maybeEscalate handles a pending initial check-in: activity since the
// send completes the cycle, a week of silence triggers the reminder.
func (e *Engine) maybeEscalate(ctx context.Context, sub *models.Subscription, now time.Time, nextCount int) error {
	done, err := e.completeIfActive(ctx, sub)
	if err != nil || done {
		return err
	}
	if sub.LastFollowupAt == nil || now.Before(sub.LastFollowupAt.Add(stepWait)) {
		return nil
	}
	return e.sendCheckin(ctx, sub, now, nextCount)
}

// maybeMarkDormant handles a pending reminder: activity completes the
// cycle, another week of silence deactivates the subscription.
func (e *Engine) maybeMarkDormant(ctx context.Context, sub *models.Subscription, now time.Time) error {
	done, err := e.completeIfActive(ctx, sub)
	if err != nil || done {
		return err
	}
	if sub.LastFollowupAt == nil || now.Before(sub.LastFollowupAt.Add(stepWait)) {
		return nil
	}
	e.log.Infow("subscription went dormant after two unanswered check-ins", "subscription_id", sub.ID)
	return e.subs.MarkDormant(ctx, sub.ID)
}

// completeIfActive closes the cycle when engagement has been observed
// since the last check-in went out.
func (e *Engine) completeIfActive(ctx context.Context, sub *models.Subscription) (bool, error) {
	if sub.LastFollowupAt == nil {
		return false, nil
	}
	lastActivity, err := e.activity.LastActivityAt(ctx, sub.SubscriberID, sub.CampaignID)
	if err != nil {
		return false, err
	}
	if lastActivity == nil || !lastActivity.After(*sub.LastFollowupAt) {
		return false, nil
	}
	if err := e.subs.CompleteFollowupCycle(ctx, sub.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) sendCheckin(ctx context.Context, sub *models.Subscription, now time.Time, count int) error {
	contact, err := e.contacts.VerifiedContact(ctx, sub.SubscriberID)
	if err != nil {
		return err
	}
	if contact == nil {
		e.log.Warnw("active subscription has no verified contact", "subscription_id", sub.ID)
		return nil
	}
	if err := e.notifier.Send(ctx, *contact, renderCheckin(contact.Name, count)); err != nil {
		e.m.SendErrors.WithLabelValues(jobName).Inc()
		return fmt.Errorf("send check-in: %w", err)
	}
	e.m.Sends.WithLabelValues(jobName).Inc()
	return e.subs.MarkFollowupSent(ctx, sub.ID, now, count)
}

func renderCheckin(name string, count int) notify.Message {
	greeting := "there"
	if name != "" {
		greeting = name
	}
	if count <= 1 {
		return notify.Message{
			Subject: "Still praying with us?",
			Body:    fmt.Sprintf("Hi %s, we noticed it has been a while. Are you still praying with us? Reply to let us know.", greeting),
		}
	}
	return notify.Message{
		Subject: "Checking in one more time",
		Body:    fmt.Sprintf("Hi %s, just checking in one more time. We would love to hear whether you are still praying with us.", greeting),
	}
}
