package payment

import (
	"time"

	"chargegate/internal/domain/outbox"
)

// EventTypeCharged is emitted once per accepted charge.
const EventTypeCharged = "PaymentCharged"

// aggregateType tags outbox rows produced by this domain.
const aggregateType = "Payment"

// ChargedEvent is the bus payload announcing a committed charge.
type ChargedEvent struct {
	PaymentID  string `json:"paymentId"`
	CustomerID string `json:"customerId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurredAt"`
}

// NewChargedEvent builds the outbox row for a payment. The partition key is
// the payment id so downstream consumers see per-payment ordering.
func NewChargedEvent(p *Payment, now time.Time) (*outbox.Event, error) {
	payload := ChargedEvent{
		PaymentID:  p.ID.String(),
		CustomerID: p.CustomerID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     string(p.Status),
		OccurredAt: now.UTC().Format(time.RFC3339Nano),
	}
	return outbox.NewEvent(aggregateType, p.ID.String(), EventTypeCharged, p.ID.String(), payload, now)
}
