package payment

import (
	"context"
	"net/http"
	"time"

	"chargegate/internal/core/apperror"
	"chargegate/internal/core/id"
	"chargegate/internal/core/tx"
	"chargegate/internal/domain/idempotency"
	"chargegate/internal/domain/outbox"
	"chargegate/pkg/logger"
)

// Result of one charge request.
type Result struct {
	HTTPStatus  int
	Body        []byte
	Replayed    bool
	RequestHash string
	PaymentID   string
}

// ResponseCache is the write side of the read-through response accelerator.
// It has no correctness role; failures are logged and swallowed.
type ResponseCache interface {
	Put(ctx context.Context, scope, key, requestHash string, httpStatus int, body []byte) error
}

// ServiceConfig tunes the charge coordinator.
type ServiceConfig struct {
	// Scope namespaces idempotency keys for this operation.
	Scope string

	// StaleInProgressAfter is how old an InProgress record must be before a
	// later caller may recover it.
	StaleInProgressAfter time.Duration
}

// Service coordinates idempotent charges. All stores are driven through a
// single database transaction per request; the advisory lock plus the row
// lock form a two-phase barrier that serializes racing callers even before
// the idempotency row exists.
type Service struct {
	txm       tx.Manager
	locker    idempotency.Locker
	records   idempotency.Store
	payments  Repository
	outbox    outbox.Store
	processor Processor
	cache     ResponseCache // optional
	cfg       ServiceConfig
	now       func() time.Time
}

// NewService creates the charge orchestrator. cache may be nil.
func NewService(
	txm tx.Manager,
	locker idempotency.Locker,
	records idempotency.Store,
	payments Repository,
	outboxStore outbox.Store,
	processor Processor,
	cache ResponseCache,
	cfg ServiceConfig,
) *Service {
	return &Service{
		txm:       txm,
		locker:    locker,
		records:   records,
		payments:  payments,
		outbox:    outboxStore,
		processor: processor,
		cache:     cache,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. For tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Charge executes the idempotent charge operation for (scope, key).
// requestHash must have been computed over req by the canonical hasher at
// the edge. At most one business effect occurs per key; repeated calls with
// the same hash replay the original response byte for byte.
func (s *Service) Charge(ctx context.Context, key, requestHash string, req ChargeRequest) (*Result, error) {
	res, err := s.chargeOnce(ctx, key, requestHash, req)
	if apperror.IsDuplicate(err) {
		// A concurrent winner committed between our lock acquisition windows.
		// The transaction rolled back; re-enter the read path once and replay.
		logger.Warn(ctx, "idempotency race lost, retrying read path",
			"idempotency_key", key)
		res, err = s.chargeOnce(ctx, key, requestHash, req)
	}
	if err != nil {
		return nil, err
	}

	s.populateCache(ctx, key, res)
	return res, nil
}

func (s *Service) chargeOnce(ctx context.Context, key, requestHash string, req ChargeRequest) (*Result, error) {
	var out *Result

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		// Serialize all requests for this key before any row exists.
		if err := s.locker.Acquire(ctx, s.cfg.Scope, key); err != nil {
			return apperror.NewDatabase(err)
		}

		rec, err := s.records.FindForUpdate(ctx, s.cfg.Scope, key)
		if err != nil {
			return err
		}

		if rec != nil {
			if rec.RequestHash != requestHash {
				return apperror.NewIdempotencyMismatch(key)
			}

			if rec.Status == idempotency.StatusCompleted {
				out = replayResult(rec, requestHash)
				return nil
			}

			// InProgress under the advisory lock: either a crashed request we
			// can recover, or genuine contention.
			if !rec.IsStale(s.cfg.StaleInProgressAfter, s.now()) {
				return apperror.NewIdempotencyInProgress(key)
			}

			if err := s.records.Touch(ctx, rec.ID); err != nil {
				return err
			}

			// The crashed request may have committed its payment without
			// completing the record. If so, derive the response from it.
			existing, err := s.payments.FindByIdempotencyKey(ctx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				body, err := EncodeResponse(existing)
				if err != nil {
					return err
				}
				if err := s.records.MarkCompleted(ctx, rec.ID, http.StatusCreated, body, existing.ID); err != nil {
					return err
				}
				out = &Result{
					HTTPStatus:  http.StatusCreated,
					Body:        body,
					Replayed:    true,
					RequestHash: requestHash,
					PaymentID:   existing.ID.String(),
				}
				return nil
			}
			// No payment committed: run the business operation, completing the
			// record we already hold.
		} else {
			rec = idempotency.NewInProgress(s.cfg.Scope, key, requestHash, s.now())
			// A unique violation here means the advisory lock was bypassed and
			// a concurrent insert won; it propagates so Charge retries the
			// read path.
			if err := s.records.InsertInProgress(ctx, rec); err != nil {
				return err
			}
		}

		p, err := s.executeCharge(ctx, key, req)
		if err != nil {
			return err
		}

		body, err := EncodeResponse(p)
		if err != nil {
			return err
		}
		if err := s.records.MarkCompleted(ctx, rec.ID, http.StatusCreated, body, p.ID); err != nil {
			return err
		}

		out = &Result{
			HTTPStatus:  http.StatusCreated,
			Body:        body,
			Replayed:    false,
			RequestHash: requestHash,
			PaymentID:   p.ID.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// executeCharge performs the business effect: authorize with the processor,
// persist the payment, and enqueue the PaymentCharged event in the same
// transaction.
func (s *Service) executeCharge(ctx context.Context, key string, req ChargeRequest) (*Payment, error) {
	auth, err := s.processor.Authorize(ctx, key, req)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("component", "processor")
	}

	now := s.now()
	p := &Payment{
		ID:                 id.New(),
		IdempotencyKey:     key,
		CustomerID:         req.CustomerID,
		Amount:             req.Amount,
		Currency:           req.Currency,
		PaymentMethodToken: req.PaymentMethodToken,
		Description:        req.Description,
		Status:             auth.Status,
		CreatedAt:          now,
	}

	if err := s.payments.Insert(ctx, p); err != nil {
		return nil, err
	}

	ev, err := NewChargedEvent(p, now)
	if err != nil {
		return nil, err
	}
	if err := s.outbox.Insert(ctx, ev); err != nil {
		return nil, err
	}

	return p, nil
}

// GetByID returns a payment for the read endpoint.
func (s *Service) GetByID(ctx context.Context, paymentID string) (*Payment, error) {
	pid, err := id.Parse(paymentID)
	if err != nil {
		return nil, apperror.NewNotFound("payment", paymentID)
	}
	p, err := s.payments.FindByID(ctx, pid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNotFound("payment", paymentID)
	}
	return p, nil
}

// ListByCustomer returns a customer's charges, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.payments.ListByCustomer(ctx, customerID, limit)
}

func replayResult(rec *idempotency.Record, requestHash string) *Result {
	status := http.StatusCreated
	if rec.HTTPStatus != nil {
		status = *rec.HTTPStatus
	}
	paymentID := ""
	if rec.PaymentID != nil {
		paymentID = rec.PaymentID.String()
	}
	return &Result{
		HTTPStatus:  status,
		Body:        rec.ResponseBody,
		Replayed:    true,
		RequestHash: requestHash,
		PaymentID:   paymentID,
	}
}

func (s *Service) populateCache(ctx context.Context, key string, res *Result) {
	if s.cache == nil || res == nil {
		return
	}
	if err := s.cache.Put(ctx, s.cfg.Scope, key, res.RequestHash, res.HTTPStatus, res.Body); err != nil {
		logger.Warn(ctx, "response cache populate failed",
			"idempotency_key", key, "error", err)
	}
}
