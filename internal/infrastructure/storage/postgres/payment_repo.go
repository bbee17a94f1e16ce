package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"chargegate/internal/core/apperror"
	"chargegate/internal/core/id"
	"chargegate/internal/domain/payment"
)

// Compile-time check.
var _ payment.Repository = (*PaymentRepo)(nil)

// PaymentRepo persists payments.
type PaymentRepo struct {
	txManager *TxManager
}

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *TxManager) *PaymentRepo {
	return &PaymentRepo{txManager: txManager}
}

var paymentColumns = []string{
	"id", "idempotency_key", "customer_id", "amount", "currency",
	"payment_method_token", "description", "status", "created_at",
}

func (r *PaymentRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Insert persists a payment. Fails with a duplicate error if the
// idempotency key collides: the unique constraint is the last line of
// defense against double charges.
func (r *PaymentRepo) Insert(ctx context.Context, p *payment.Payment) error {
	q := r.builder().
		Insert("payments").
		Columns(paymentColumns...).
		Values(p.ID, p.IdempotencyKey, p.CustomerID, p.Amount, p.Currency,
			p.PaymentMethodToken, p.Description, p.Status, p.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if IsUniqueViolation(err) {
		return apperror.NewDuplicate("payment", "idempotency_key").WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FindByID returns a payment or (nil, nil) when absent.
func (r *PaymentRepo) FindByID(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return r.findOne(ctx, squirrel.Eq{"id": paymentID})
}

// FindByIdempotencyKey returns a payment or (nil, nil) when absent.
func (r *PaymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return r.findOne(ctx, squirrel.Eq{"idempotency_key": key})
}

func (r *PaymentRepo) findOne(ctx context.Context, pred any) (*payment.Payment, error) {
	sql, args, err := r.builder().
		Select(paymentColumns...).
		From("payments").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var p payment.Payment
	err = pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select payment: %w", err)
	}
	return &p, nil
}

// ListByCustomer returns a customer's payments, newest first.
func (r *PaymentRepo) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*payment.Payment, error) {
	sql, args, err := r.builder().
		Select(paymentColumns...).
		From("payments").
		Where(squirrel.Eq{"customer_id": customerID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var payments []*payment.Payment
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
