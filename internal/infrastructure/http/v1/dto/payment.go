// Package dto defines request/response shapes for the v1 API.
package dto

import (
	"regexp"
	"strings"

	"chargegate/internal/core/apperror"
	"chargegate/internal/domain/payment"
)

// idempotencyKeyPattern is the allowed character class and length for
// client-supplied keys.
var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidateIdempotencyKey normalizes and validates the X-Idempotency-Key
// header value.
func ValidateIdempotencyKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", apperror.NewValidation("X-Idempotency-Key header is required")
	}
	if !idempotencyKeyPattern.MatchString(key) {
		return "", apperror.NewValidation("X-Idempotency-Key must match ^[A-Za-z0-9._:-]{1,128}$").
			WithDetail("field", "X-Idempotency-Key")
	}
	return key, nil
}

// ChargeRequest is the POST /api/payments/charges body.
type ChargeRequest struct {
	CustomerID         string  `json:"customerId" binding:"required"`
	Amount             int64   `json:"amount" binding:"required,gt=0"`
	Currency           string  `json:"currency" binding:"required"`
	PaymentMethodToken string  `json:"paymentMethodToken" binding:"required"`
	Description        *string `json:"description,omitempty"`
}

// ToDomain converts the DTO to the domain request.
func (r ChargeRequest) ToDomain() payment.ChargeRequest {
	return payment.ChargeRequest{
		CustomerID:         r.CustomerID,
		Amount:             r.Amount,
		Currency:           r.Currency,
		PaymentMethodToken: r.PaymentMethodToken,
		Description:        r.Description,
	}
}
