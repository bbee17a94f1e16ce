package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"chargegate/internal/domain/reports"
)

// Compile-time check.
var _ reports.Repository = (*ReportRepo)(nil)

// ReportRepo serves aggregate queries for the reporting endpoints.
type ReportRepo struct {
	txManager *TxManager
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *TxManager) *ReportRepo {
	return &ReportRepo{txManager: txManager}
}

// ChargeVolume aggregates committed charges per currency in [from, to].
func (r *ReportRepo) ChargeVolume(ctx context.Context, from, to time.Time) ([]reports.CurrencyVolume, error) {
	var rows []reports.CurrencyVolume
	err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, `
		SELECT currency,
		       COUNT(*)    AS charge_count,
		       SUM(amount) AS total_minor
		FROM payments
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY currency
		ORDER BY currency
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("charge volume: %w", err)
	}
	return rows, nil
}

// OutboxStatus counts events per status and measures the oldest unsent age.
func (r *ReportRepo) OutboxStatus(ctx context.Context, now time.Time) (*reports.OutboxStatus, error) {
	var counts []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}
	q := r.txManager.GetQuerier(ctx)
	err := pgxscan.Select(ctx, q, &counts, `
		SELECT status, COUNT(*) AS count
		FROM outbox_events
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("outbox status counts: %w", err)
	}

	st := &reports.OutboxStatus{Counts: make(map[string]int64, len(counts))}
	for _, c := range counts {
		st.Counts[c.Status] = c.Count
	}

	var oldest *time.Time
	err = q.QueryRow(ctx, `
		SELECT MIN(created_at)
		FROM outbox_events
		WHERE status IN ('new', 'retry')
	`).Scan(&oldest)
	if err != nil {
		return nil, fmt.Errorf("outbox oldest pending: %w", err)
	}
	if oldest != nil {
		lag := now.Sub(*oldest)
		st.OldestPendingAge = &lag
	}
	return st, nil
}
