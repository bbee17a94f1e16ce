// Package outbox implements the transactional outbox event model.
//
// An event row is written atomically with the business state it announces
// and drained asynchronously to the external bus, avoiding dual-write
// inconsistency.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chargegate/internal/core/id"
)

// Status represents the delivery state of an outbox event.
type Status string

const (
	StatusNew   Status = "new"
	StatusRetry Status = "retry"
	StatusSent  Status = "sent"
	StatusDead  Status = "dead"
)

// maxErrorLen bounds last_error so a pathological broker error cannot bloat
// the row.
const maxErrorLen = 2000

// Event is one pending delivery to the bus.
type Event struct {
	ID            id.ID      `db:"id"`
	AggregateType string     `db:"aggregate_type"`
	AggregateID   string     `db:"aggregate_id"`
	EventType     string     `db:"event_type"`
	EventKey      string     `db:"event_key"` // bus partition key
	Payload       []byte     `db:"payload"`
	Status        Status     `db:"status"`
	AttemptCount  int        `db:"attempt_count"`
	NextAttemptAt *time.Time `db:"next_attempt_at"`
	LastError     *string    `db:"last_error"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	SentAt        *time.Time `db:"sent_at"`
}

// NewEvent creates a New event carrying the serialized payload.
func NewEvent(aggregateType, aggregateID, eventType, eventKey string, payload any, now time.Time) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{
		ID:            id.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		EventKey:      eventKey,
		Payload:       body,
		Status:        StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkSent transitions the event to its terminal success state.
func (e *Event) MarkSent(now time.Time) {
	e.Status = StatusSent
	e.SentAt = &now
	e.NextAttemptAt = nil
	e.LastError = nil
	e.UpdatedAt = now
}

// MarkFailed records a publish failure. The attempt that just failed counts;
// once the retry budget is exhausted the event goes Dead and is never
// claimed again.
func (e *Event) MarkFailed(cause string, now time.Time, policy RetryPolicy) {
	n := e.AttemptCount + 1
	e.AttemptCount = n
	msg := truncateError(cause)
	e.LastError = &msg
	e.UpdatedAt = now

	if n >= policy.MaxAttempts {
		e.Status = StatusDead
		e.NextAttemptAt = nil
		return
	}

	next := now.Add(policy.Backoff(n))
	e.Status = StatusRetry
	e.NextAttemptAt = &next
}

// Terminal reports whether the dispatcher is done with this event.
func (e *Event) Terminal() bool {
	return e.Status == StatusSent || e.Status == StatusDead
}

func truncateError(s string) string {
	if len(s) > maxErrorLen {
		return s[:maxErrorLen]
	}
	return s
}

// Store persists outbox events.
type Store interface {
	// Insert writes an event inside the caller's business transaction.
	Insert(ctx context.Context, ev *Event) error

	// ClaimBatch selects up to limit events with status in statuses and
	// next_attempt_at unset or due, ordered by created_at ascending, skipping
	// rows locked by concurrent dispatchers. The returned rows stay locked
	// for the current transaction.
	ClaimBatch(ctx context.Context, statuses []Status, now time.Time, limit int) ([]*Event, error)

	// Update persists a status transition.
	Update(ctx context.Context, ev *Event) error
}
