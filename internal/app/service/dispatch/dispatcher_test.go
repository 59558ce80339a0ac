package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lampstand/intercede/internal/app/service/content"
	"github.com/lampstand/intercede/internal/app/service/notify"
	"github.com/lampstand/intercede/internal/models"
	"github.com/lampstand/intercede/pkg/metrics"
	"github.com/lampstand/intercede/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubs struct {
	mu       sync.Mutex
	due      []*models.Subscription
	advanced map[string][]time.Time
}

func (f *fakeSubs) DueSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	return f.due, nil
}

func (f *fakeSubs) AdvanceOccurrence(ctx context.Context, id string, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advanced == nil {
		f.advanced = map[string][]time.Time{}
	}
	f.advanced[id] = append(f.advanced[id], next)
	return nil
}

type fakeContacts struct {
	contacts map[string]*types.Contact
}

func (f *fakeContacts) VerifiedContact(ctx context.Context, subscriberID string) (*types.Contact, error) {
	return f.contacts[subscriberID], nil
}

type fakeContent struct {
	c       *content.Content
	err     error
	fetches int
}

func (f *fakeContent) ContentForDate(ctx context.Context, campaignID string, date time.Time, locale string) (*content.Content, error) {
	f.fetches++
	return f.c, f.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []notify.Message
	targets []string
	failFor map[string]bool
	block   chan struct{}
}

func (f *fakeNotifier) Send(ctx context.Context, contact types.Contact, msg notify.Message) error {
	if f.block != nil {
		<-f.block
	}
	if f.failFor[contact.SubscriberID] {
		return fmt.Errorf("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	f.targets = append(f.targets, contact.Address)
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]bool
	records int
}

func (f *fakeLedger) key(id, date string) string { return id + "|" + date }

func (f *fakeLedger) Record(ctx context.Context, subscriptionID, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = map[string]bool{}
	}
	// insert-or-ignore: duplicates are silent no-ops
	f.entries[f.key(subscriptionID, date)] = true
	f.records++
	return nil
}

func (f *fakeLedger) WasSent(ctx context.Context, subscriptionID, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[f.key(subscriptionID, date)], nil
}

func testSubscription(id, subscriberID string) *models.Subscription {
	next := time.Date(2025, 6, 6, 9, 0, 0, 0, time.UTC)
	return &models.Subscription{
		ID:                id,
		SubscriberID:      subscriberID,
		CampaignID:        "campaign-1",
		Frequency:         types.FrequencyDaily,
		TimePreference:    "09:00",
		Timezone:          "UTC",
		PrayerDurationMin: 15,
		Status:            types.SubscriptionStatusActive,
		NextOccurrenceUTC: &next,
	}
}

func newTestDispatcher(subs *fakeSubs, contacts *fakeContacts, cp *fakeContent, n *fakeNotifier, l *fakeLedger) *Dispatcher {
	m := metrics.NewJobMetrics(prometheus.NewRegistry())
	d := NewDispatcher(zap.NewNop().Sugar(), m, subs, contacts, cp, n, l, nil)
	d.now = func() time.Time { return time.Date(2025, 6, 6, 9, 30, 0, 0, time.UTC) }
	return d
}

func defaultContacts() *fakeContacts {
	return &fakeContacts{contacts: map[string]*types.Contact{
		"person-1": {SubscriberID: "person-1", Channel: types.ChannelSMS, Address: "+15550100"},
		"person-2": {SubscriberID: "person-2", Channel: types.ChannelSMS, Address: "+15550101"},
	}}
}

func TestDispatcher_SendRecordsAndAdvances(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{testSubscription("sub-1", "person-1")}}
	notifier := &fakeNotifier{}
	ledger := &fakeLedger{}
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{c: &content.Content{Subject: "Day 12", Body: "Pray for rain"}}, notifier, ledger)

	d.Run(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Day 12", notifier.sent[0].Subject)
	assert.Equal(t, "Pray for rain", notifier.sent[0].Body)

	sent, err := ledger.WasSent(context.Background(), "sub-1", "2025-06-06")
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, subs.advanced["sub-1"], 1)
	// after-send advance must land strictly past the current day
	assert.Equal(t, time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC), subs.advanced["sub-1"][0])
}

func TestDispatcher_NotifierFailureDoesNotAdvance(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{testSubscription("sub-1", "person-1")}}
	notifier := &fakeNotifier{failFor: map[string]bool{"person-1": true}}
	ledger := &fakeLedger{}
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{}, notifier, ledger)

	d.Run(context.Background())

	assert.Empty(t, notifier.sent)
	assert.Empty(t, subs.advanced)
	sent, err := ledger.WasSent(context.Background(), "sub-1", "2025-06-06")
	require.NoError(t, err)
	assert.False(t, sent, "failed send must not be recorded")
}

func TestDispatcher_FailureDoesNotAbortBatch(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{
		testSubscription("sub-1", "person-1"),
		testSubscription("sub-2", "person-2"),
	}}
	notifier := &fakeNotifier{failFor: map[string]bool{"person-1": true}}
	ledger := &fakeLedger{}
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{}, notifier, ledger)

	d.Run(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []string{"+15550101"}, notifier.targets)
	assert.NotContains(t, subs.advanced, "sub-1")
	assert.Contains(t, subs.advanced, "sub-2")
}

func TestDispatcher_AlreadySentSkipsButAdvances(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{testSubscription("sub-1", "person-1")}}
	notifier := &fakeNotifier{}
	ledger := &fakeLedger{}
	require.NoError(t, ledger.Record(context.Background(), "sub-1", "2025-06-06"))
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{}, notifier, ledger)

	d.Run(context.Background())

	assert.Empty(t, notifier.sent, "no second send on the same calendar day")
	require.Len(t, subs.advanced["sub-1"], 1)
}

func TestDispatcher_OverlappingRunsSendOnce(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{testSubscription("sub-1", "person-1")}}
	notifier := &fakeNotifier{}
	ledger := &fakeLedger{}
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{}, notifier, ledger)

	// both runs see the row as due; the ledger makes the second a no-op send
	d.Run(context.Background())
	d.Run(context.Background())

	assert.Len(t, notifier.sent, 1)
	assert.Len(t, subs.advanced["sub-1"], 2, "both runs advance the schedule")
}

func TestDispatcher_SingleFlightSkipsTick(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{testSubscription("sub-1", "person-1")}}
	notifier := &fakeNotifier{block: make(chan struct{})}
	ledger := &fakeLedger{}
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{}, notifier, ledger)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	// wait until the first run is inside the notifier
	require.Eventually(t, func() bool { return d.running.Load() }, time.Second, time.Millisecond)

	d.Run(context.Background()) // overlapping tick: skipped, returns immediately

	close(notifier.block)
	<-done

	assert.Len(t, notifier.sent, 1)
	assert.Len(t, subs.advanced["sub-1"], 1)
}

func TestDispatcher_ContentFetchedOncePerCampaign(t *testing.T) {
	subA := testSubscription("sub-1", "person-1")
	subB := testSubscription("sub-2", "person-2")
	subs := &fakeSubs{due: []*models.Subscription{subA, subB}}
	cp := &fakeContent{}
	d := newTestDispatcher(subs, defaultContacts(), cp, &fakeNotifier{}, &fakeLedger{})

	d.Run(context.Background())

	assert.Equal(t, 1, cp.fetches, "both subscriptions share one campaign content fetch")
}

func TestDispatcher_MissingContentStillSends(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{testSubscription("sub-1", "person-1")}}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{c: nil}, notifier, &fakeLedger{})

	d.Run(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.NotEmpty(t, notifier.sent[0].Body, "fallback body is used when content is missing")
}

func TestDispatcher_UnverifiedContactNeitherSendsNorAdvances(t *testing.T) {
	subs := &fakeSubs{due: []*models.Subscription{testSubscription("sub-1", "ghost")}}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(subs, defaultContacts(), &fakeContent{}, notifier, &fakeLedger{})

	d.Run(context.Background())

	assert.Empty(t, notifier.sent)
	assert.Empty(t, subs.advanced)
}
