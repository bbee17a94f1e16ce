// Package reports provides operational aggregates over payments and the
// outbox.
package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"chargegate/internal/core/tx"
)

// CurrencyVolume is the raw per-currency aggregate from the store.
type CurrencyVolume struct {
	Currency    string `db:"currency"`
	ChargeCount int64  `db:"charge_count"`
	TotalMinor  int64  `db:"total_minor"`
}

// OutboxStatus is the dispatcher's backlog view.
type OutboxStatus struct {
	Counts           map[string]int64
	OldestPendingAge *time.Duration
}

// Repository serves aggregate queries.
type Repository interface {
	ChargeVolume(ctx context.Context, from, to time.Time) ([]CurrencyVolume, error)
	OutboxStatus(ctx context.Context, now time.Time) (*OutboxStatus, error)
}

// VolumeLine is one reported currency with the amount rendered in major
// units.
type VolumeLine struct {
	Currency    string `json:"currency"`
	ChargeCount int64  `json:"chargeCount"`
	TotalMinor  int64  `json:"totalMinor"`
	TotalMajor  string `json:"totalMajor"`
}

// minorDigits maps currencies to their minor-unit exponent. Unknown
// currencies default to 2.
var minorDigits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"BHD": 3,
	"KWD": 3,
}

// Service renders report aggregates for the HTTP layer.
type Service struct {
	repo Repository
	txm  tx.ReadOnlyManager
}

// NewService creates a reporting service.
func NewService(repo Repository, txm tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, txm: txm}
}

// ChargeVolume reports committed charges per currency in [from, to].
func (s *Service) ChargeVolume(ctx context.Context, from, to time.Time) ([]VolumeLine, error) {
	var rows []CurrencyVolume
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.ChargeVolume(ctx, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	lines := make([]VolumeLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, VolumeLine{
			Currency:    row.Currency,
			ChargeCount: row.ChargeCount,
			TotalMinor:  row.TotalMinor,
			TotalMajor:  MajorUnits(row.TotalMinor, row.Currency),
		})
	}
	return lines, nil
}

// Outbox reports the dispatcher backlog.
func (s *Service) Outbox(ctx context.Context, now time.Time) (*OutboxStatus, error) {
	var st *OutboxStatus
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.repo.OutboxStatus(ctx, now)
		return err
	})
	return st, err
}

// MajorUnits renders an integer minor-unit amount as a decimal string in
// the currency's major unit ("12345" PLN -> "123.45").
func MajorUnits(minor int64, currency string) string {
	digits, ok := minorDigits[currency]
	if !ok {
		digits = 2
	}
	return decimal.New(minor, -digits).StringFixed(digits)
}
