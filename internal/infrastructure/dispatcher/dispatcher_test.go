package dispatcher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargegate/internal/domain/outbox"
	"chargegate/pkg/logger"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memStore mimics the claim semantics of the SQL store: due, non-terminal
// events in created_at order, excluding rows claimed by an open batch.
type memStore struct {
	mu     sync.Mutex
	events []*outbox.Event
	locked map[string]bool
}

func newMemStore(events ...*outbox.Event) *memStore {
	return &memStore{events: events, locked: map[string]bool{}}
}

func (s *memStore) Insert(ctx context.Context, ev *outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) ClaimBatch(ctx context.Context, statuses []outbox.Status, now time.Time, limit int) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eligible := map[outbox.Status]bool{}
	for _, st := range statuses {
		eligible[st] = true
	}

	var due []*outbox.Event
	for _, ev := range s.events {
		if !eligible[ev.Status] || s.locked[ev.ID.String()] {
			continue
		}
		if ev.NextAttemptAt != nil && ev.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, ev)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })

	if len(due) > limit {
		due = due[:limit]
	}
	for _, ev := range due {
		s.locked[ev.ID.String()] = true
	}
	return due, nil
}

func (s *memStore) Update(ctx context.Context, ev *outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, ev.ID.String())
	return nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []publishCall
	fail      bool
}

type publishCall struct {
	topic   string
	key     string
	payload string
}

func (b *recordingBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, publishCall{topic: topic, key: key, payload: string(payload)})
	return nil
}

func testConfig() Config {
	return Config{
		Topic:           "payments-events",
		BatchSize:       100,
		PublishInterval: time.Second,
		SendTimeout:     5 * time.Second,
		Retry:           outbox.RetryPolicy{MaxAttempts: 10, BaseBackoff: time.Second, MaxBackoff: 2 * time.Minute},
	}
}

func newEvent(t *testing.T, key, payload string, createdAt time.Time) *outbox.Event {
	t.Helper()
	ev, err := outbox.NewEvent("Payment", key, "PaymentCharged", key, nil, createdAt)
	require.NoError(t, err)
	ev.Payload = []byte(payload)
	return ev
}

func TestPublishBatch_Success(t *testing.T) {
	now := time.Now().UTC()
	ev := newEvent(t, "p1", `{"ok":true}`, now)
	store := newMemStore(ev)
	bus := &recordingBus{}

	d := New(passthroughTx{}, store, bus, testConfig(), logger.Default())
	handled, err := d.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	require.Len(t, bus.published, 1)
	assert.Equal(t, publishCall{topic: "payments-events", key: "p1", payload: `{"ok":true}`}, bus.published[0])

	assert.Equal(t, outbox.StatusSent, ev.Status)
	require.NotNil(t, ev.SentAt)
	assert.Nil(t, ev.NextAttemptAt)

	// A sent event is not claimed again.
	handled, err = d.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
	assert.Len(t, bus.published, 1)
}

func TestPublishBatch_EmptyBacklog(t *testing.T) {
	d := New(passthroughTx{}, newMemStore(), &recordingBus{}, testConfig(), logger.Default())
	handled, err := d.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
}

func TestPublishBatch_FailureSchedulesRetry(t *testing.T) {
	now := time.Now().UTC()
	ev := newEvent(t, "p1", `{}`, now)
	store := newMemStore(ev)
	bus := &recordingBus{fail: true}

	d := New(passthroughTx{}, store, bus, testConfig(), logger.Default())
	handled, err := d.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	assert.Equal(t, outbox.StatusRetry, ev.Status)
	assert.Equal(t, 1, ev.AttemptCount)
	require.NotNil(t, ev.NextAttemptAt)
	require.NotNil(t, ev.LastError)

	// Not due again until the backoff elapses.
	handled, err = d.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
}

func TestPublishBatch_DeadAfterMaxAttempts(t *testing.T) {
	base := time.Now().UTC()
	ev := newEvent(t, "p1", `{}`, base)
	store := newMemStore(ev)
	bus := &recordingBus{fail: true}

	cfg := testConfig()
	// Drive the clock past every scheduled retry so each tick claims the
	// event again.
	tick := 0
	d := New(passthroughTx{}, store, bus, cfg, logger.Default()).WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * cfg.Retry.MaxBackoff)
	})

	for i := 0; i < cfg.Retry.MaxAttempts; i++ {
		_, err := d.PublishBatch(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, outbox.StatusDead, ev.Status)
	assert.Equal(t, cfg.Retry.MaxAttempts, ev.AttemptCount)
	assert.Nil(t, ev.NextAttemptAt)

	// Dead events stop being claimed.
	handled, err := d.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
}

func TestPublishBatch_PreservesCreatedAtOrder(t *testing.T) {
	base := time.Now().UTC()
	ev1 := newEvent(t, "p1", `{"n":1}`, base)
	ev2 := newEvent(t, "p2", `{"n":2}`, base.Add(time.Millisecond))
	ev3 := newEvent(t, "p3", `{"n":3}`, base.Add(2*time.Millisecond))
	store := newMemStore(ev3, ev1, ev2)
	bus := &recordingBus{}

	d := New(passthroughTx{}, store, bus, testConfig(), logger.Default())
	_, err := d.PublishBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, bus.published, 3)
	assert.Equal(t, "p1", bus.published[0].key)
	assert.Equal(t, "p2", bus.published[1].key)
	assert.Equal(t, "p3", bus.published[2].key)
}

func TestTwoDispatchers_DisjointBatches(t *testing.T) {
	// With claims held open concurrently, two instances must not process the
	// same row: the second claim sees only unlocked rows.
	base := time.Now().UTC()
	store := newMemStore()
	for i := 0; i < 10; i++ {
		ev := newEvent(t, "p", `{}`, base.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, store.Insert(context.Background(), ev))
	}

	a, err := store.ClaimBatch(context.Background(), []outbox.Status{outbox.StatusNew}, base.Add(time.Second), 6)
	require.NoError(t, err)
	b, err := store.ClaimBatch(context.Background(), []outbox.Status{outbox.StatusNew}, base.Add(time.Second), 6)
	require.NoError(t, err)

	assert.Len(t, a, 6)
	assert.Len(t, b, 4)
	seen := map[string]bool{}
	for _, ev := range append(a, b...) {
		assert.False(t, seen[ev.ID.String()], "row claimed twice")
		seen[ev.ID.String()] = true
	}
}
