// Package processor integrates with the external payment provider.
package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"chargegate/internal/domain/payment"
)

// Compile-time check.
var _ payment.Processor = (*Stub)(nil)

// Stub is a deterministic stand-in for the real provider: it always
// authorizes. The auth reference is derived from the idempotency key so
// repeated authorizations of the same charge produce the same reference.
type Stub struct{}

// NewStub creates a stub processor.
func NewStub() *Stub {
	return &Stub{}
}

// Authorize approves every charge.
func (s *Stub) Authorize(ctx context.Context, key string, req payment.ChargeRequest) (payment.Authorization, error) {
	sum := sha256.Sum256([]byte("auth|" + key))
	return payment.Authorization{
		Status:  payment.StatusAuthorized,
		AuthRef: "auth_" + hex.EncodeToString(sum[:8]),
	}, nil
}
