package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 30 * time.Second

	tests := []struct {
		name    string
		status  Status
		created time.Time
		updated time.Time
		want    bool
	}{
		{"fresh in-progress", StatusInProgress, now.Add(-5 * time.Second), now.Add(-5 * time.Second), false},
		{"old in-progress", StatusInProgress, now.Add(-2 * time.Minute), now.Add(-2 * time.Minute), true},
		{"old but recently touched", StatusInProgress, now.Add(-2 * time.Minute), now.Add(-10 * time.Second), false},
		{"completed never stale", StatusCompleted, now.Add(-time.Hour), now.Add(-time.Hour), false},
		{"exactly at threshold", StatusInProgress, now.Add(-maxAge), now.Add(-maxAge), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{Status: tt.status, CreatedAt: tt.created, UpdatedAt: tt.updated}
			assert.Equal(t, tt.want, rec.IsStale(maxAge, now))
		})
	}
}

func TestNewInProgress(t *testing.T) {
	now := time.Now().UTC()
	rec := NewInProgress("payments:charge", "k1", "hash1", now)

	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, "payments:charge", rec.Scope)
	assert.Equal(t, "k1", rec.IdempotencyKey)
	assert.Equal(t, "hash1", rec.RequestHash)
	assert.False(t, rec.ID.String() == "00000000-0000-0000-0000-000000000000")
	assert.Nil(t, rec.PaymentID)
}
