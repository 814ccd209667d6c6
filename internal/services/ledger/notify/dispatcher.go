// Package notify delivers journaled ledger events to subscribers through the
// store's notification outbox.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/telemetry"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
)

// Dispatcher defaults balance delivery latency against database churn.
const (
	DefaultInterval = 2 * time.Second
	DefaultBatch    = 64
)

// EventDeadLettered is the telemetry event recorded when rows exhaust their
// delivery attempts.
const EventDeadLettered = "notification.dead_lettered"

// Subscriber receives journaled events. Delivery is at least once: a failed
// attempt redelivers the event to every subscriber.
type Subscriber interface {
	Deliver(ctx context.Context, evt storage.JournalEvent) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, evt storage.JournalEvent) error

// Deliver calls f.
func (f SubscriberFunc) Deliver(ctx context.Context, evt storage.JournalEvent) error {
	return f(ctx, evt)
}

// Outbox is the slice of the store the dispatcher drains.
type Outbox interface {
	ProcessOutbox(ctx context.Context, now time.Time, limit int, deliver func(context.Context, storage.JournalEvent) error) (int, error)
	GetOutboxSummary(ctx context.Context) (storage.OutboxSummary, error)
}

// Dispatcher periodically drains the outbox into subscribers.
type Dispatcher struct {
	outbox      Outbox
	subscribers []Subscriber
	emitter     *telemetry.Emitter
	clock       func() time.Time
	interval    time.Duration
	batch       int
	logf        func(string, ...any)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInterval sets the polling interval.
func WithInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithBatch sets how many rows one pass may claim.
func WithBatch(batch int) Option {
	return func(d *Dispatcher) {
		if batch > 0 {
			d.batch = batch
		}
	}
}

// WithClock overrides the dispatcher clock.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithEmitter records dead letters as telemetry.
func WithEmitter(emitter *telemetry.Emitter) Option {
	return func(d *Dispatcher) {
		d.emitter = emitter
	}
}

// WithLogf overrides the dispatcher logger.
func WithLogf(logf func(string, ...any)) Option {
	return func(d *Dispatcher) {
		if logf != nil {
			d.logf = logf
		}
	}
}

// NewDispatcher builds a dispatcher over outbox. Nil subscribers are skipped.
func NewDispatcher(outbox Outbox, subscribers []Subscriber, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		outbox:   outbox,
		clock:    time.Now,
		interval: DefaultInterval,
		batch:    DefaultBatch,
		logf:     log.Printf,
	}
	for _, sub := range subscribers {
		if sub != nil {
			d.subscribers = append(d.subscribers, sub)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// RunOnce performs one delivery pass and returns how many rows it handled.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	if d == nil || d.outbox == nil {
		return 0, fmt.Errorf("dispatcher outbox is not configured")
	}

	before, err := d.outbox.GetOutboxSummary(ctx)
	if err != nil {
		return 0, err
	}
	processed, err := d.outbox.ProcessOutbox(ctx, d.clock().UTC(), d.batch, d.deliver)
	if err != nil {
		return processed, err
	}
	after, err := d.outbox.GetOutboxSummary(ctx)
	if err != nil {
		return processed, err
	}
	if dead := after.DeadCount - before.DeadCount; dead > 0 {
		d.logf("notification outbox dead-lettered %d rows", dead)
		if emitErr := d.emitter.EmitSeverity(ctx, EventDeadLettered, telemetry.SeverityError, 0, map[string]any{
			"dead_lettered": dead,
			"dead_total":    after.DeadCount,
		}); emitErr != nil {
			d.logf("record dead letter telemetry: %v", emitErr)
		}
	}
	return processed, nil
}

func (d *Dispatcher) deliver(ctx context.Context, evt storage.JournalEvent) error {
	var errs []error
	for _, sub := range d.subscribers {
		if err := sub.Deliver(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		d.logf("deliver event %d (%s): %v", evt.Seq, evt.Event.Type, err)
		return err
	}
	return nil
}

// Run drains the outbox every interval until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d == nil || d.outbox == nil {
		return fmt.Errorf("dispatcher outbox is not configured")
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.logf("notification dispatch: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
