package followup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lampstand/intercede/internal/app/service/notify"
	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/metrics"
	"github.com/lampstand/intercede/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore applies mutations to the in-memory rows so multi-run
// escalation sequences behave like the real storage layer.
type fakeStore struct {
	mu   sync.Mutex
	rows []*models.Subscription
}

func (f *fakeStore) find(id string) *models.Subscription {
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeStore) ActiveVerifiedSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Subscription
	for _, r := range f.rows {
		if r.Status == types.SubscriptionStatusActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkFollowupSent(ctx context.Context, id string, at time.Time, reminderCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	r.LastFollowupAt = &at
	r.FollowupReminderCount = reminderCount
	return nil
}

func (f *fakeStore) CompleteFollowupCycle(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	r.FollowupCount++
	r.FollowupReminderCount = 0
	return nil
}

func (f *fakeStore) MarkDormant(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.find(id).Status = types.SubscriptionStatusInactive
	return nil
}

type fakeActivity struct {
	last map[string]*time.Time // keyed by subscriber ID
}

func (f *fakeActivity) LastActivityAt(ctx context.Context, subscriberID, campaignID string) (*time.Time, error) {
	return f.last[subscriberID], nil
}

type fakeContacts struct{}

func (fakeContacts) VerifiedContact(ctx context.Context, subscriberID string) (*types.Contact, error) {
	return &types.Contact{SubscriberID: subscriberID, Channel: types.ChannelSMS, Address: "+15550100", Name: "Dana"}, nil
}

type fakeNotifier struct {
	sent []notify.Message
	fail bool
}

func (f *fakeNotifier) Send(ctx context.Context, contact types.Contact, msg notify.Message) error {
	if f.fail {
		return fmt.Errorf("boom")
	}
	f.sent = append(f.sent, msg)
	return nil
}

var creation = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func quietSubscription() *models.Subscription {
	return &models.Subscription{
		ID:             "sub-1",
		SubscriberID:   "person-1",
		CampaignID:     "campaign-1",
		Frequency:      types.FrequencyDaily,
		TimePreference: "09:00",
		Timezone:       "UTC",
		Status:         types.SubscriptionStatusActive,
		CreatedAt:      creation,
	}
}

func newTestEngine(store *fakeStore, act *fakeActivity, n *fakeNotifier, now time.Time) *Engine {
	m := metrics.NewJobMetrics(prometheus.NewRegistry())
	e := NewEngine(zap.NewNop().Sugar(), m, store, act, fakeContacts{}, n)
	e.now = func() time.Time { return now }
	return e
}

func TestEngine_InitialCheckinAfterOneQuietMonth(t *testing.T) {
	store := &fakeStore{rows: []*models.Subscription{quietSubscription()}}
	notifier := &fakeNotifier{}
	e := newTestEngine(store, &fakeActivity{}, notifier, creation.AddDate(0, 1, 0))

	e.Run(context.Background())

	require.Len(t, notifier.sent, 1)
	row := store.find("sub-1")
	assert.Equal(t, 1, row.FollowupReminderCount)
	require.NotNil(t, row.LastFollowupAt)
}

func TestEngine_NotDueBeforeOneMonth(t *testing.T) {
	store := &fakeStore{rows: []*models.Subscription{quietSubscription()}}
	notifier := &fakeNotifier{}
	e := newTestEngine(store, &fakeActivity{}, notifier, creation.AddDate(0, 1, -1))

	e.Run(context.Background())

	assert.Empty(t, notifier.sent)
	assert.Equal(t, 0, store.find("sub-1").FollowupReminderCount)
}

func TestEngine_LaterCyclesWaitThreeMonths(t *testing.T) {
	sub := quietSubscription()
	sub.FollowupCount = 1
	store := &fakeStore{rows: []*models.Subscription{sub}}
	notifier := &fakeNotifier{}

	e := newTestEngine(store, &fakeActivity{}, notifier, creation.AddDate(0, 2, 0))
	e.Run(context.Background())
	assert.Empty(t, notifier.sent, "three-month wait not yet elapsed")

	e = newTestEngine(store, &fakeActivity{}, notifier, creation.AddDate(0, 3, 0))
	e.Run(context.Background())
	assert.Len(t, notifier.sent, 1)
}

func TestEngine_ActivityAnchorsTheWait(t *testing.T) {
	recent := creation.AddDate(0, 2, 0)
	store := &fakeStore{rows: []*models.Subscription{quietSubscription()}}
	act := &fakeActivity{last: map[string]*time.Time{"person-1": &recent}}
	notifier := &fakeNotifier{}
	// two months past creation but engagement was observed recently
	e := newTestEngine(store, act, notifier, creation.AddDate(0, 2, 3))

	e.Run(context.Background())

	assert.Empty(t, notifier.sent, "wait is anchored to last activity, not creation")
}

func TestEngine_ReminderAfterOneSilentWeek(t *testing.T) {
	sub := quietSubscription()
	sentAt := creation.AddDate(0, 1, 0)
	sub.FollowupReminderCount = 1
	sub.LastFollowupAt = &sentAt
	store := &fakeStore{rows: []*models.Subscription{sub}}
	notifier := &fakeNotifier{}
	e := newTestEngine(store, &fakeActivity{}, notifier, sentAt.Add(stepWait))

	e.Run(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 2, store.find("sub-1").FollowupReminderCount)
}

func TestEngine_ActivityAfterInitialCompletesCycle(t *testing.T) {
	sub := quietSubscription()
	sentAt := creation.AddDate(0, 1, 0)
	engaged := sentAt.Add(48 * time.Hour)
	sub.FollowupReminderCount = 1
	sub.LastFollowupAt = &sentAt
	store := &fakeStore{rows: []*models.Subscription{sub}}
	act := &fakeActivity{last: map[string]*time.Time{"person-1": &engaged}}
	notifier := &fakeNotifier{}
	e := newTestEngine(store, act, notifier, sentAt.Add(stepWait))

	e.Run(context.Background())

	assert.Empty(t, notifier.sent, "no reminder once activity is observed")
	row := store.find("sub-1")
	assert.Equal(t, 1, row.FollowupCount)
	assert.Equal(t, 0, row.FollowupReminderCount)
	assert.Equal(t, types.SubscriptionStatusActive, row.Status)
}

func TestEngine_DormantAfterTwoSilentWeeks(t *testing.T) {
	sub := quietSubscription()
	sentAt := creation.AddDate(0, 1, 7)
	sub.FollowupReminderCount = 2
	sub.LastFollowupAt = &sentAt
	store := &fakeStore{rows: []*models.Subscription{sub}}
	notifier := &fakeNotifier{}
	e := newTestEngine(store, &fakeActivity{}, notifier, sentAt.Add(stepWait))

	e.Run(context.Background())

	assert.Empty(t, notifier.sent)
	assert.Equal(t, types.SubscriptionStatusInactive, store.find("sub-1").Status)
}

func TestEngine_NotifierFailureRetriesSameStep(t *testing.T) {
	store := &fakeStore{rows: []*models.Subscription{quietSubscription()}}
	notifier := &fakeNotifier{fail: true}
	e := newTestEngine(store, &fakeActivity{}, notifier, creation.AddDate(0, 1, 0))

	e.Run(context.Background())

	row := store.find("sub-1")
	assert.Equal(t, 0, row.FollowupReminderCount, "failed send must not advance the state machine")
	assert.Nil(t, row.LastFollowupAt)

	notifier.fail = false
	e.Run(context.Background())
	assert.Len(t, notifier.sent, 1)
	assert.Equal(t, 1, store.find("sub-1").FollowupReminderCount)
}

// Full bound: a subscription with zero activity receives exactly two
// check-ins one week apart, then goes inactive and receives nothing more.
func TestEngine_EscalationBounds(t *testing.T) {
	store := &fakeStore{rows: []*models.Subscription{quietSubscription()}}
	notifier := &fakeNotifier{}

	at := func(ts time.Time) {
		e := newTestEngine(store, &fakeActivity{}, notifier, ts)
		e.Run(context.Background())
	}

	initial := creation.AddDate(0, 1, 0)
	at(initial)
	require.Len(t, notifier.sent, 1)

	at(initial.Add(3 * 24 * time.Hour)) // mid-week run: nothing happens
	require.Len(t, notifier.sent, 1)

	at(initial.Add(stepWait)) // reminder
	require.Len(t, notifier.sent, 2)

	at(initial.Add(2 * stepWait)) // dormancy
	assert.Equal(t, types.SubscriptionStatusInactive, store.find("sub-1").Status)

	// dormant rows are out of the walk entirely
	at(initial.Add(3 * stepWait))
	at(initial.AddDate(1, 0, 0))
	assert.Len(t, notifier.sent, 2, "no further messages after dormancy")
}
