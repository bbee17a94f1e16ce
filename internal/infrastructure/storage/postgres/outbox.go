package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"chargegate/internal/domain/outbox"
)

// Compile-time check.
var _ outbox.Store = (*OutboxStore)(nil)

// OutboxStore persists outbox events.
type OutboxStore struct {
	txManager *TxManager
}

// NewOutboxStore creates a new outbox store.
func NewOutboxStore(txManager *TxManager) *OutboxStore {
	return &OutboxStore{txManager: txManager}
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, event_key, payload, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, sent_at`

// Insert writes an event row. Called inside the business transaction so the
// event commits atomically with the payment it announces.
func (s *OutboxStore) Insert(ctx context.Context, ev *outbox.Event) error {
	if s.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("outbox insert requires transaction context")
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, event_key, payload, status, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ev.ID, ev.AggregateType, ev.AggregateID, ev.EventType, ev.EventKey,
		ev.Payload, ev.Status, ev.AttemptCount, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// ClaimBatch selects up to limit due events in created_at order, skipping
// rows already locked by concurrent dispatchers. The returned rows stay
// locked until the current transaction ends, which is what makes
// multi-instance dispatch safe.
func (s *OutboxStore) ClaimBatch(ctx context.Context, statuses []outbox.Status, now time.Time, limit int) ([]*outbox.Event, error) {
	if s.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("outbox claim requires transaction context")
	}

	var events []*outbox.Event
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &events, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE status = ANY($1)
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, statusStrings(statuses), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	return events, nil
}

// Update persists a status transition for a claimed event.
func (s *OutboxStore) Update(ctx context.Context, ev *outbox.Event) error {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE outbox_events
		SET status = $1,
		    attempt_count = $2,
		    next_attempt_at = $3,
		    last_error = $4,
		    updated_at = $5,
		    sent_at = $6
		WHERE id = $7
	`, ev.Status, ev.AttemptCount, ev.NextAttemptAt, ev.LastError, ev.UpdatedAt, ev.SentAt, ev.ID)
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update outbox event: %s not found", ev.ID)
	}
	return nil
}

func statusStrings(statuses []outbox.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
