package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "payments:charge", cfg.Idempotency.Scope)
	assert.Equal(t, 30*time.Second, cfg.Idempotency.StaleInProgressAfter)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, time.Second, cfg.Outbox.PublishInterval)
	assert.Equal(t, 5*time.Second, cfg.Outbox.SendTimeout)
	assert.Equal(t, 10, cfg.Outbox.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Outbox.BaseBackoff)
	assert.Equal(t, 2*time.Minute, cfg.Outbox.MaxBackoff)
	assert.Equal(t, "payments-events", cfg.Outbox.Topic)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "25")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "3")
	t.Setenv("IDEMPOTENCY_STALE_AFTER", "1m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Outbox.BatchSize)
	assert.Equal(t, 3, cfg.Outbox.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Idempotency.StaleInProgressAfter)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_RejectsBadBounds(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvertedBackoff(t *testing.T) {
	t.Setenv("OUTBOX_BASE_BACKOFF", "5m")
	t.Setenv("OUTBOX_MAX_BACKOFF", "1s")
	_, err := Load()
	assert.Error(t, err)
}
