package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	volumes []CurrencyVolume
	status  *OutboxStatus
}

func (f *fakeRepo) ChargeVolume(ctx context.Context, from, to time.Time) ([]CurrencyVolume, error) {
	return f.volumes, nil
}

func (f *fakeRepo) OutboxStatus(ctx context.Context, now time.Time) (*OutboxStatus, error) {
	return f.status, nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, "123.45", MajorUnits(12345, "PLN"))
	assert.Equal(t, "0.01", MajorUnits(1, "EUR"))
	assert.Equal(t, "500", MajorUnits(500, "JPY"))
	assert.Equal(t, "1.234", MajorUnits(1234, "KWD"))
	assert.Equal(t, "-10.00", MajorUnits(-1000, "USD"))
}

func TestChargeVolume(t *testing.T) {
	svc := NewService(&fakeRepo{volumes: []CurrencyVolume{
		{Currency: "EUR", ChargeCount: 3, TotalMinor: 4500},
		{Currency: "JPY", ChargeCount: 1, TotalMinor: 900},
	}}, passthroughTx{})

	lines, err := svc.ChargeVolume(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "45.00", lines[0].TotalMajor)
	assert.Equal(t, "900", lines[1].TotalMajor)
}
