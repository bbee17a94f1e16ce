package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chargegate/internal/core/apperror"
	"chargegate/internal/core/canonical"
	"chargegate/internal/domain/payment"
	"chargegate/internal/infrastructure/cache"
	"chargegate/internal/infrastructure/http/v1/dto"
	"chargegate/pkg/logger"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderRequestHash    = "X-Idempotency-Request-Hash"
	HeaderReplayed       = "X-Idempotency-Replayed"
)

// Charger is the charge orchestration surface the handler depends on.
type Charger interface {
	Charge(ctx context.Context, key, requestHash string, req payment.ChargeRequest) (*payment.Result, error)
	GetByID(ctx context.Context, paymentID string) (*payment.Payment, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*payment.Payment, error)
}

// ReplayCache is the read side of the response accelerator. A nil cache
// disables the fast path; correctness is unaffected.
type ReplayCache interface {
	Get(ctx context.Context, scope, key string) (*cache.Entry, error)
}

// PaymentHandler serves the charge API.
type PaymentHandler struct {
	BaseHandler
	charger Charger
	cache   ReplayCache
	scope   string
}

// NewPaymentHandler creates a payment handler. cache may be nil.
func NewPaymentHandler(charger Charger, replayCache ReplayCache, scope string) *PaymentHandler {
	return &PaymentHandler{charger: charger, cache: replayCache, scope: scope}
}

// Charge handles POST /api/payments/charges.
//
// The request hash is computed once here, at the edge, over the canonical
// form of the body; the orchestrator receives it and never re-hashes.
func (h *PaymentHandler) Charge(c *gin.Context) {
	key, err := dto.ValidateIdempotencyKey(c.GetHeader(HeaderIdempotencyKey))
	if err != nil {
		h.Error(c, err)
		return
	}

	var body dto.ChargeRequest
	if !h.BindJSON(c, &body) {
		return
	}
	req := body.ToDomain()

	requestHash, err := canonical.Hash(req)
	if err != nil {
		h.Error(c, apperror.NewInternal(err).WithDetail("component", "canonicalizer"))
		return
	}

	ctx := c.Request.Context()

	// Fast path: a completed replay served straight from the cache. A miss
	// or a cache failure falls through to the authoritative store.
	if h.cache != nil {
		if entry, err := h.cache.Get(ctx, h.scope, key); err != nil {
			logger.Warn(ctx, "response cache read failed", "error", err)
		} else if entry != nil {
			if entry.RequestHash != requestHash {
				h.Error(c, apperror.NewIdempotencyMismatch(key))
				return
			}
			h.writeChargeResponse(c, key, &payment.Result{
				HTTPStatus:  entry.HTTPStatus,
				Body:        entry.ResponseBody,
				Replayed:    true,
				RequestHash: requestHash,
			})
			return
		}
	}

	res, err := h.charger.Charge(ctx, key, requestHash, req)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.writeChargeResponse(c, key, res)
}

func (h *PaymentHandler) writeChargeResponse(c *gin.Context, key string, res *payment.Result) {
	c.Header(HeaderIdempotencyKey, key)
	c.Header(HeaderRequestHash, res.RequestHash)
	if res.Replayed {
		c.Header(HeaderReplayed, "true")
	}
	if res.PaymentID != "" {
		c.Header("Location", "/api/payments/"+res.PaymentID)
	}
	c.Data(res.HTTPStatus, "application/json", res.Body)
}

// Get handles GET /api/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.charger.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, payment.NewResponse(p))
}

// List handles GET /api/payments?customerId=.
func (h *PaymentHandler) List(c *gin.Context) {
	customerID := c.Query("customerId")
	if customerID == "" {
		h.Error(c, apperror.NewValidation("customerId query parameter is required"))
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	payments, err := h.charger.ListByCustomer(c.Request.Context(), customerID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]payment.Response, 0, len(payments))
	for _, p := range payments {
		out = append(out, payment.NewResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}
