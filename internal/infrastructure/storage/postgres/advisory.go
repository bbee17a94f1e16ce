package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"chargegate/internal/domain/idempotency"
)

// Compile-time check.
var _ idempotency.Locker = (*AdvisoryLocker)(nil)

// AdvisoryLocker serializes work for a (scope, key) pair before the
// idempotency row exists. The lock is transaction-scoped: PostgreSQL
// releases it automatically when the enclosing transaction ends, and
// re-acquiring it within one transaction is a no-op.
type AdvisoryLocker struct {
	txManager *TxManager
}

// NewAdvisoryLocker creates a new advisory locker.
func NewAdvisoryLocker(txManager *TxManager) *AdvisoryLocker {
	return &AdvisoryLocker{txManager: txManager}
}

// Acquire blocks until the caller holds the advisory lock for (scope, key).
// Must be called inside a transaction; a pool-level advisory lock would
// outlive the request.
func (l *AdvisoryLocker) Acquire(ctx context.Context, scope, key string) error {
	if l.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("advisory lock requires transaction context")
	}

	_, err := l.txManager.GetQuerier(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock($1)", LockID(scope, key))
	if err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}

// LockID derives the 64-bit advisory lock id for (scope, key): the first
// 8 bytes of SHA-256(scope || "|" || key) interpreted as a signed
// big-endian integer. Stable across processes and restarts.
func LockID(scope, key string) int64 {
	sum := sha256.Sum256([]byte(scope + "|" + key))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
