// Package idempotency holds the coordinator's state for one (scope, key).
package idempotency

import (
	"context"
	"time"

	"chargegate/internal/core/id"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Record is the coordinator's state for one (scope, idempotency_key) pair.
// Unique per (scope, key). Created as InProgress on first request,
// transitions to Completed on success; never deleted by the core.
type Record struct {
	ID             id.ID     `db:"id"`
	Scope          string    `db:"scope"`
	IdempotencyKey string    `db:"idempotency_key"`
	RequestHash    string    `db:"request_hash"`
	Status         Status    `db:"status"`
	HTTPStatus     *int      `db:"http_status"`
	ResponseBody   []byte    `db:"response_body"`
	PaymentID      *id.ID    `db:"payment_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// NewInProgress creates a fresh InProgress record for a first-time request.
func NewInProgress(scope, key, requestHash string, now time.Time) *Record {
	return &Record{
		ID:             id.New(),
		Scope:          scope,
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsStale reports whether an InProgress record was abandoned: its last
// activity is older than maxAge. Completed records are never stale.
func (r *Record) IsStale(maxAge time.Duration, now time.Time) bool {
	if r.Status != StatusInProgress {
		return false
	}
	last := r.CreatedAt
	if r.UpdatedAt.After(last) {
		last = r.UpdatedAt
	}
	return last.Before(now.Add(-maxAge))
}

// Store persists coordinator records.
type Store interface {
	// FindForUpdate returns the record for (scope, key) holding a row-level
	// write lock for the current transaction, or (nil, nil) if absent.
	FindForUpdate(ctx context.Context, scope, key string) (*Record, error)

	// InsertInProgress persists a new record. Fails with a duplicate error
	// if (scope, key) already exists.
	InsertInProgress(ctx context.Context, rec *Record) error

	// MarkCompleted transitions InProgress -> Completed with the response to
	// replay. Idempotent on the same completion values.
	MarkCompleted(ctx context.Context, recID id.ID, httpStatus int, body []byte, paymentID id.ID) error

	// Touch updates updated_at only.
	Touch(ctx context.Context, recID id.ID) error
}

// Locker serializes work for a (scope, key) pair before a row exists.
// The lock is transaction-scoped and released automatically on commit or
// rollback.
type Locker interface {
	Acquire(ctx context.Context, scope, key string) error
}
