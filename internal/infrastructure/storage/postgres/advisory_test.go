package postgres

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockID_Deterministic(t *testing.T) {
	a := LockID("payments:charge", "k1")
	b := LockID("payments:charge", "k1")
	assert.Equal(t, a, b)
}

func TestLockID_ScopeIsolation(t *testing.T) {
	// The same client key under different scopes must not contend.
	assert.NotEqual(t, LockID("payments:charge", "k1"), LockID("payments:refund", "k1"))
	assert.NotEqual(t, LockID("payments:charge", "k1"), LockID("payments:charge", "k2"))
}

func TestLockID_MatchesDerivation(t *testing.T) {
	sum := sha256.Sum256([]byte("payments:charge|k1"))
	want := int64(binary.BigEndian.Uint64(sum[:8]))
	assert.Equal(t, want, LockID("payments:charge", "k1"))
}
