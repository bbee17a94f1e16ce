package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdempotencyKey(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", "order-123", "order-123", false},
		{"all allowed classes", "a.B_c:d-9", "a.B_c:d-9", false},
		{"trims whitespace", "  k1  ", "k1", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"illegal character", "key with space", "", true},
		{"unicode", "clé", "", true},
		{"max length", strings.Repeat("k", 128), strings.Repeat("k", 128), false},
		{"too long", strings.Repeat("k", 129), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateIdempotencyKey(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
