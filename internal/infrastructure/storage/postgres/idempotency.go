package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"chargegate/internal/core/apperror"
	"chargegate/internal/core/id"
	"chargegate/internal/domain/idempotency"
)

// Compile-time check.
var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore persists coordinator records.
type IdempotencyStore struct {
	txManager *TxManager
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager}
}

const idempotencyColumns = `id, scope, idempotency_key, request_hash, status, http_status, response_body, payment_id, created_at, updated_at`

// FindForUpdate returns the record for (scope, key) holding a row-level
// write lock for the current transaction, or (nil, nil) if absent.
func (s *IdempotencyStore) FindForUpdate(ctx context.Context, scope, key string) (*idempotency.Record, error) {
	row := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT `+idempotencyColumns+`
		FROM idempotency_records
		WHERE scope = $1 AND idempotency_key = $2
		FOR UPDATE
	`, scope, key)

	rec, err := scanIdempotencyRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}
	return rec, nil
}

// InsertInProgress persists a fresh InProgress record. The flush happens
// immediately so a concurrent insert is detected via the unique constraint
// even if the advisory lock was bypassed.
func (s *IdempotencyStore) InsertInProgress(ctx context.Context, rec *idempotency.Record) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO idempotency_records (id, scope, idempotency_key, request_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Scope, rec.IdempotencyKey, rec.RequestHash, rec.Status, rec.CreatedAt, rec.UpdatedAt)

	if IsUniqueViolation(err) {
		return apperror.NewDuplicate("idempotency record", "idempotency_key").WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// MarkCompleted transitions InProgress -> Completed with the response bytes
// to replay. Idempotent on the same completion values.
func (s *IdempotencyStore) MarkCompleted(ctx context.Context, recID id.ID, httpStatus int, body []byte, paymentID id.ID) error {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_records
		SET status = $1,
		    http_status = $2,
		    response_body = $3,
		    payment_id = $4,
		    updated_at = $5
		WHERE id = $6
	`, idempotency.StatusCompleted, httpStatus, body, paymentID, time.Now().UTC(), recID)
	if err != nil {
		return fmt.Errorf("mark idempotency record completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark completed: record %s not found", recID)
	}
	return nil
}

// Touch updates updated_at only, extending an InProgress record's lease.
func (s *IdempotencyStore) Touch(ctx context.Context, recID id.ID) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_records SET updated_at = $1 WHERE id = $2
	`, time.Now().UTC(), recID)
	if err != nil {
		return fmt.Errorf("touch idempotency record: %w", err)
	}
	return nil
}

func scanIdempotencyRecord(row pgx.Row) (*idempotency.Record, error) {
	var rec idempotency.Record
	err := row.Scan(
		&rec.ID, &rec.Scope, &rec.IdempotencyKey, &rec.RequestHash, &rec.Status,
		&rec.HTTPStatus, &rec.ResponseBody, &rec.PaymentID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
