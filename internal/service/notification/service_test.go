package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeromwolf/FluxNews/internal/model"
	apperrors "github.com/jeromwolf/FluxNews/pkg/errors"
)

// fakeCompanies serves watcher lists.
type fakeCompanies struct {
	watchers map[int64][]string
}

func (f *fakeCompanies) All(context.Context) ([]*model.Company, error) { return nil, nil }

func (f *fakeCompanies) RelationshipBetween(context.Context, int64, int64) (model.RelationshipType, error) {
	return model.RelationshipNone, nil
}

func (f *fakeCompanies) RelatedCompanies(context.Context, int64) ([]*model.CompanyRelation, error) {
	return nil, nil
}

func (f *fakeCompanies) Watchers(_ context.Context, companyID int64) ([]string, error) {
	return f.watchers[companyID], nil
}

func newTestService(store *fakeStore, settings *fakeSettings, companies *fakeCompanies, capacity int) (*Service, *Queue) {
	queue := NewQueue(capacity, nil, nil)
	registry := NewRegistry(nil, nil)
	dispatcher := NewDispatcher(DispatcherConfig{
		Queue:    queue,
		Registry: registry,
		Store:    store,
		Settings: settings,
	})
	svc := NewService(ServiceConfig{
		Queue:      queue,
		Dispatcher: dispatcher,
		Registry:   registry,
		Store:      store,
		Settings:   settings,
		Companies:  companies,
	})
	return svc, queue
}

func TestNotifyPersistsThenEnqueues(t *testing.T) {
	store := newFakeStore()
	svc, queue := newTestService(store, newFakeSettings(), &fakeCompanies{}, 10)

	n := testNotification(model.PriorityHigh)
	require.NoError(t, svc.Notify(context.Background(), n))

	assert.Contains(t, store.created, n.ID)
	assert.Same(t, n, queue.Dequeue())
}

func TestNotifyRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), newFakeSettings(), &fakeCompanies{}, 10)

	n := testNotification(model.PriorityHigh)
	n.UserID = ""
	assert.Error(t, svc.Notify(context.Background(), n))

	n = testNotification(model.PriorityHigh)
	n.Type = "telepathy"
	assert.Error(t, svc.Notify(context.Background(), n))
}

func TestNotifyBackpressure(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, newFakeSettings(), &fakeCompanies{}, 1)

	require.NoError(t, svc.Notify(context.Background(), testNotification(model.PriorityLow)))

	overflow := testNotification(model.PriorityLow)
	err := svc.Notify(context.Background(), overflow)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrPolicyRejected, appErr.Code)
	// The record survives in storage for the restart reload path.
	assert.Contains(t, store.created, overflow.ID)
}

func TestHighImpactFanOutHonorsThresholds(t *testing.T) {
	store := newFakeStore()
	settings := newFakeSettings()

	// Alice wants everything above 0.5, Bob only above 0.9.
	alice := model.DefaultSettings("alice")
	alice.ImpactThreshold = 0.5
	require.NoError(t, settings.Upsert(context.Background(), alice))
	bob := model.DefaultSettings("bob")
	bob.ImpactThreshold = 0.9
	require.NoError(t, settings.Upsert(context.Background(), bob))

	companies := &fakeCompanies{watchers: map[int64][]string{42: {"alice", "bob"}}}
	svc, queue := newTestService(store, settings, companies, 10)

	article := &model.Article{
		ID:    "article-1",
		URL:   "https://example.com/story",
		Title: "Hyundai Motor announces major recall of 100,000 vehicles",
	}
	company := &model.Company{ID: 42, Name: "Hyundai Motor", Ticker: "005380"}

	require.NoError(t, svc.HighImpactNotification(context.Background(), article, company, 0.75))

	n := queue.Dequeue()
	require.NotNil(t, n, "alice must be notified")
	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, model.NotificationHighImpactNews, n.Type)
	assert.Equal(t, model.PriorityHigh, n.Priority)
	assert.Equal(t, "article-1", n.ArticleID)
	assert.Equal(t, int64(42), n.CompanyID)
	assert.Equal(t, 0.75, n.Data["impact_score"])
	assert.Equal(t, "https://example.com/story", n.Data["article_url"])

	assert.Nil(t, queue.Dequeue(), "bob's threshold filters him out")
}

func TestHighImpactMessageTruncatesLongTitles(t *testing.T) {
	store := newFakeStore()
	companies := &fakeCompanies{watchers: map[int64][]string{1: {"alice"}}}
	svc, queue := newTestService(store, newFakeSettings(), companies, 10)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	article := &model.Article{ID: "a1", Title: string(long)}
	company := &model.Company{ID: 1, Name: "Acme"}

	require.NoError(t, svc.HighImpactNotification(context.Background(), article, company, 0.95))

	n := queue.Dequeue()
	require.NotNil(t, n)
	assert.Less(t, len(n.Message), 150)
}

func TestSentimentAlertThreshold(t *testing.T) {
	store := newFakeStore()
	companies := &fakeCompanies{watchers: map[int64][]string{1: {"alice"}}}
	svc, queue := newTestService(store, newFakeSettings(), companies, 10)
	company := &model.Company{ID: 1, Name: "Acme", Ticker: "ACME"}

	// Default threshold is 0.3; a 0.1 move is ignored.
	require.NoError(t, svc.SentimentAlert(context.Background(), company, 0.5, 0.6))
	assert.Nil(t, queue.Dequeue())

	// A 0.4 drop crosses it.
	require.NoError(t, svc.SentimentAlert(context.Background(), company, 0.7, 0.3))
	n := queue.Dequeue()
	require.NotNil(t, n)
	assert.Equal(t, model.NotificationSentimentAlert, n.Type)
	assert.Equal(t, model.PriorityMedium, n.Priority)
	assert.Contains(t, n.Title, "deteriorated")
}

func TestStartReloadsPending(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	older := testNotification(model.PriorityHigh)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := testNotification(model.PriorityHigh)
	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, store.Create(ctx, newer))

	delivered := testNotification(model.PriorityLow)
	require.NoError(t, store.Create(ctx, delivered))
	require.NoError(t, store.MarkSent(ctx, delivered.ID, time.Now()))

	svc, queue := newTestService(store, newFakeSettings(), &fakeCompanies{}, 10)

	runCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, svc.Start(runCtx))
	cancel()
	svc.Stop()

	// Both pending notifications were requeued; the delivered one was not.
	stats := queue.Stats()
	assert.Equal(t, int64(2), stats.Enqueued)
}

func TestRetentionSweepKeepsUnsent(t *testing.T) {
	store := newFakeStore()
	settings := newFakeSettings()
	ctx := context.Background()

	// Keep the reloaded pending notification undeliverable so it stays
	// unsent while the sweep runs.
	s := model.DefaultSettings("user-1")
	s.ChannelSettings[model.ChannelInApp] = false
	require.NoError(t, settings.Upsert(ctx, s))

	old := time.Now().UTC().Add(-48 * time.Hour)
	delivered := testNotification(model.PriorityLow)
	delivered.CreatedAt = old
	require.NoError(t, store.Create(ctx, delivered))
	require.NoError(t, store.MarkSent(ctx, delivered.ID, old))

	pending := testNotification(model.PriorityLow)
	pending.CreatedAt = old
	require.NoError(t, store.Create(ctx, pending))

	queue := NewQueue(10, nil, nil)
	registry := NewRegistry(nil, nil)
	dispatcher := NewDispatcher(DispatcherConfig{
		Queue:    queue,
		Registry: registry,
		Store:    store,
		Settings: settings,
	})
	svc := NewService(ServiceConfig{
		Queue:          queue,
		Dispatcher:     dispatcher,
		Registry:       registry,
		Store:          store,
		Settings:       settings,
		Companies:      &fakeCompanies{},
		Retention:      24 * time.Hour,
		RetentionSweep: 10 * time.Millisecond,
	})

	runCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, svc.Start(runCtx))
	defer func() {
		cancel()
		svc.Stop()
	}()

	require.Eventually(t, func() bool {
		return store.deleteCallCount() > 0 && !store.contains(delivered.ID)
	}, time.Second, 5*time.Millisecond)
	assert.True(t, store.contains(pending.ID), "unsent notifications survive the sweep")
}
