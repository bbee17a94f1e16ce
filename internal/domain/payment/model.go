// Package payment provides the charge domain: the Payment entity and the
// idempotent charge orchestration.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chargegate/internal/core/id"
)

// Status of a payment.
type Status string

const (
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
)

// Payment is the business fact of a charge. Created exactly once per
// accepted charge; never updated or deleted by the core.
type Payment struct {
	ID id.ID `db:"id"`

	// IdempotencyKey is globally unique. The DB constraint on it is the last
	// line of defense against double charges even if coordinator logic is
	// wrong.
	IdempotencyKey     string    `db:"idempotency_key"`
	CustomerID         string    `db:"customer_id"`
	Amount             int64     `db:"amount"` // minor units
	Currency           string    `db:"currency"`
	PaymentMethodToken string    `db:"payment_method_token"`
	Description        *string   `db:"description"`
	Status             Status    `db:"status"`
	CreatedAt          time.Time `db:"created_at"`
}

// ChargeRequest is the validated input to the charge operation.
type ChargeRequest struct {
	CustomerID         string  `json:"customerId"`
	Amount             int64   `json:"amount"`
	Currency           string  `json:"currency"`
	PaymentMethodToken string  `json:"paymentMethodToken"`
	Description        *string `json:"description,omitempty"`
}

// Response is the API representation of a payment. The charge orchestrator
// serializes it once and stores the bytes, so replays are byte-identical.
type Response struct {
	PaymentID   string  `json:"paymentId"`
	Status      string  `json:"status"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	CustomerID  string  `json:"customerId"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

// NewResponse builds the API view of a payment.
func NewResponse(p *Payment) Response {
	return Response{
		PaymentID:   p.ID.String(),
		Status:      string(p.Status),
		Amount:      p.Amount,
		Currency:    p.Currency,
		CustomerID:  p.CustomerID,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// EncodeResponse serializes the response to the exact bytes stored for
// replay.
func EncodeResponse(p *Payment) ([]byte, error) {
	body, err := json.Marshal(NewResponse(p))
	if err != nil {
		return nil, fmt.Errorf("encode payment response: %w", err)
	}
	return body, nil
}

// Repository persists payments.
type Repository interface {
	// Insert fails with a duplicate error if idempotency_key collides.
	Insert(ctx context.Context, p *Payment) error
	FindByID(ctx context.Context, paymentID id.ID) (*Payment, error)
	// FindByIdempotencyKey returns (nil, nil) when absent.
	FindByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*Payment, error)
}

// Processor authorizes charges against the external payment provider.
type Processor interface {
	// Authorize must be idempotent on the charge's idempotency key.
	Authorize(ctx context.Context, key string, req ChargeRequest) (Authorization, error)
}

// Authorization is the processor's verdict on a charge.
type Authorization struct {
	Status  Status
	AuthRef string
}
