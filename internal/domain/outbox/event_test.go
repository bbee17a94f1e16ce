package outbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, BaseBackoff: time.Second, MaxBackoff: 2 * time.Minute}
}

func TestNewEvent(t *testing.T) {
	now := time.Now().UTC()
	ev, err := NewEvent("Payment", "p1", "PaymentCharged", "p1", map[string]any{"ok": true}, now)
	require.NoError(t, err)

	assert.Equal(t, StatusNew, ev.Status)
	assert.Equal(t, "p1", ev.EventKey)
	assert.JSONEq(t, `{"ok":true}`, string(ev.Payload))
	assert.Zero(t, ev.AttemptCount)
	assert.Nil(t, ev.NextAttemptAt)
	assert.False(t, ev.Terminal())
}

func TestMarkSent(t *testing.T) {
	now := time.Now().UTC()
	ev, err := NewEvent("Payment", "p1", "PaymentCharged", "p1", nil, now)
	require.NoError(t, err)

	sentAt := now.Add(time.Second)
	ev.MarkSent(sentAt)

	assert.Equal(t, StatusSent, ev.Status)
	require.NotNil(t, ev.SentAt)
	assert.Equal(t, sentAt, *ev.SentAt)
	assert.Nil(t, ev.NextAttemptAt)
	assert.Nil(t, ev.LastError)
	assert.True(t, ev.Terminal())
}

func TestMarkFailed_SchedulesRetry(t *testing.T) {
	now := time.Now().UTC()
	ev, err := NewEvent("Payment", "p1", "PaymentCharged", "p1", nil, now)
	require.NoError(t, err)

	ev.MarkFailed("broker timeout", now, testPolicy())

	assert.Equal(t, StatusRetry, ev.Status)
	assert.Equal(t, 1, ev.AttemptCount)
	require.NotNil(t, ev.NextAttemptAt)
	// First retry lands within [base, base*1.5] of now.
	delay := ev.NextAttemptAt.Sub(now)
	assert.GreaterOrEqual(t, delay, time.Second)
	assert.LessOrEqual(t, delay, 1500*time.Millisecond)
	require.NotNil(t, ev.LastError)
	assert.Equal(t, "broker timeout", *ev.LastError)
}

func TestMarkFailed_DeadAfterMaxAttempts(t *testing.T) {
	now := time.Now().UTC()
	ev, err := NewEvent("Payment", "p1", "PaymentCharged", "p1", nil, now)
	require.NoError(t, err)

	policy := testPolicy()
	for i := 0; i < policy.MaxAttempts; i++ {
		ev.MarkFailed("publish failed", now, policy)
	}

	assert.Equal(t, StatusDead, ev.Status)
	assert.Equal(t, policy.MaxAttempts, ev.AttemptCount)
	assert.Nil(t, ev.NextAttemptAt)
	assert.True(t, ev.Terminal())
}

func TestMarkFailed_TruncatesError(t *testing.T) {
	now := time.Now().UTC()
	ev, err := NewEvent("Payment", "p1", "PaymentCharged", "p1", nil, now)
	require.NoError(t, err)

	ev.MarkFailed(strings.Repeat("x", 5000), now, testPolicy())

	require.NotNil(t, ev.LastError)
	assert.Len(t, *ev.LastError, 2000)
}

func TestBackoff_Bounds(t *testing.T) {
	policy := testPolicy()

	for n := 1; n <= 20; n++ {
		d := policy.Backoff(n)
		assert.GreaterOrEqual(t, d, policy.BaseBackoff, "attempt %d below base", n)
		assert.LessOrEqual(t, d, policy.MaxBackoff, "attempt %d above max", n)
	}

	// High attempt counts saturate at the max.
	assert.Equal(t, policy.MaxBackoff, policy.Backoff(30))
}
