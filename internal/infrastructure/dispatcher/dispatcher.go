// Package dispatcher drains the transactional outbox to the message bus.
package dispatcher

import (
	"context"
	"time"

	"chargegate/internal/core/tx"
	"chargegate/internal/domain/outbox"
	"chargegate/pkg/logger"
)

// Publisher delivers one event to the bus and waits for acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Config tunes one dispatcher instance. Multiple instances may run against
// the same table; the skip-locked claim keeps their batches disjoint.
type Config struct {
	Topic           string
	BatchSize       int
	PublishInterval time.Duration
	SendTimeout     time.Duration
	Retry           outbox.RetryPolicy
}

// Dispatcher periodically claims a batch of due events and publishes them.
// The claim and the status updates share one transaction so the row locks
// are held until the transitions commit.
type Dispatcher struct {
	txm   tx.Manager
	store outbox.Store
	bus   Publisher
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
}

// New creates a dispatcher.
func New(txm tx.Manager, store outbox.Store, bus Publisher, cfg Config, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		txm:   txm,
		store: store,
		bus:   bus,
		cfg:   cfg,
		log:   log.WithComponent("outbox-dispatcher"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. For tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Run ticks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PublishInterval)
	defer ticker.Stop()

	d.log.Infow("dispatcher started",
		"topic", d.cfg.Topic,
		"batch_size", d.cfg.BatchSize,
		"interval", d.cfg.PublishInterval,
	)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.PublishBatch(ctx); err != nil {
				d.log.Errorw("publish batch failed", "error", err)
			}
		}
	}
}

// PublishBatch claims one batch and publishes each event sequentially,
// persisting the resulting transitions before commit. Returns the number of
// events handled.
func (d *Dispatcher) PublishBatch(ctx context.Context) (int, error) {
	handled := 0

	err := d.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := d.now()
		batch, err := d.store.ClaimBatch(ctx, []outbox.Status{outbox.StatusNew, outbox.StatusRetry}, now, d.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for _, ev := range batch {
			d.publishOne(ctx, ev)
			if err := d.store.Update(ctx, ev); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return handled, nil
}

// publishOne attempts a single delivery and applies the transition to ev.
// A failed publish never fails the batch; the event carries its own retry
// state.
func (d *Dispatcher) publishOne(ctx context.Context, ev *outbox.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	err := d.bus.Publish(pubCtx, d.cfg.Topic, ev.EventKey, ev.Payload)
	now := d.now()

	if err == nil {
		ev.MarkSent(now)
		return
	}

	ev.MarkFailed(err.Error(), now, d.cfg.Retry)
	if ev.Status == outbox.StatusDead {
		d.log.Errorw("event dead-lettered",
			"event_id", ev.ID,
			"event_key", ev.EventKey,
			"attempts", ev.AttemptCount,
			"error", err,
		)
		return
	}
	d.log.Warnw("publish failed, scheduled retry",
		"event_id", ev.ID,
		"event_key", ev.EventKey,
		"attempt", ev.AttemptCount,
		"next_attempt_at", ev.NextAttemptAt,
		"error", err,
	)
}
