package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/telemetry"
	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
)

// fakeOutbox hands every queued event to deliver once per pass and counts
// failures as dead after maxAttempts.
type fakeOutbox struct {
	queue       []storage.JournalEvent
	attempts    map[uint64]int
	maxAttempts int
	dead        int
	lastNow     time.Time
	lastLimit   int
}

func (o *fakeOutbox) ProcessOutbox(ctx context.Context, now time.Time, limit int, deliver func(context.Context, storage.JournalEvent) error) (int, error) {
	o.lastNow = now
	o.lastLimit = limit
	remaining := o.queue[:0]
	processed := 0
	for _, evt := range o.queue {
		processed++
		if err := deliver(ctx, evt); err != nil {
			o.attempts[evt.Seq]++
			if o.attempts[evt.Seq] >= o.maxAttempts {
				o.dead++
				continue
			}
			remaining = append(remaining, evt)
		}
	}
	o.queue = remaining
	return processed, nil
}

func (o *fakeOutbox) GetOutboxSummary(context.Context) (storage.OutboxSummary, error) {
	return storage.OutboxSummary{PendingCount: len(o.queue), DeadCount: o.dead}, nil
}

type recordingAudit struct {
	events []storage.AuditEvent
}

func (a *recordingAudit) AppendAuditEvent(_ context.Context, evt storage.AuditEvent) error {
	a.events = append(a.events, evt)
	return nil
}

func journalEvent(seq uint64) storage.JournalEvent {
	return storage.JournalEvent{
		Seq: seq,
		Event: domain.Event{
			Type:       domain.EventContributionReceived,
			CampaignID: 1,
			Actor:      "bob",
			Amount:     10,
		},
	}
}

func TestRunOnceDeliversToEverySubscriber(t *testing.T) {
	outbox := &fakeOutbox{queue: []storage.JournalEvent{journalEvent(1), journalEvent(2)}, attempts: map[uint64]int{}, maxAttempts: 8}
	var first, second []uint64
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(outbox, []Subscriber{
		SubscriberFunc(func(_ context.Context, evt storage.JournalEvent) error { first = append(first, evt.Seq); return nil }),
		nil,
		SubscriberFunc(func(_ context.Context, evt storage.JournalEvent) error { second = append(second, evt.Seq); return nil }),
	}, WithClock(func() time.Time { return now }), WithBatch(16))

	processed, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("deliveries = %v / %v", first, second)
	}
	if !outbox.lastNow.Equal(now) || outbox.lastLimit != 16 {
		t.Fatalf("outbox called with now=%s limit=%d", outbox.lastNow, outbox.lastLimit)
	}
	if len(outbox.queue) != 0 {
		t.Fatalf("queue = %d, want drained", len(outbox.queue))
	}
}

func TestRunOnceRetriesWhenAnySubscriberFails(t *testing.T) {
	outbox := &fakeOutbox{queue: []storage.JournalEvent{journalEvent(1)}, attempts: map[uint64]int{}, maxAttempts: 8}
	var logs []string
	d := NewDispatcher(outbox, []Subscriber{
		SubscriberFunc(func(context.Context, storage.JournalEvent) error { return nil }),
		SubscriberFunc(func(context.Context, storage.JournalEvent) error { return errors.New("down") }),
	}, WithLogf(func(format string, args ...any) { logs = append(logs, fmt.Sprintf(format, args...)) }))

	if _, err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.queue) != 1 || outbox.attempts[1] != 1 {
		t.Fatalf("queue = %d attempts = %d, want retry", len(outbox.queue), outbox.attempts[1])
	}
	if len(logs) == 0 {
		t.Fatal("expected delivery failure to be logged")
	}
}

func TestRunOnceRecordsDeadLetters(t *testing.T) {
	outbox := &fakeOutbox{queue: []storage.JournalEvent{journalEvent(1)}, attempts: map[uint64]int{}, maxAttempts: 1}
	audit := &recordingAudit{}
	d := NewDispatcher(outbox, []Subscriber{
		SubscriberFunc(func(context.Context, storage.JournalEvent) error { return errors.New("down") }),
	}, WithEmitter(telemetry.NewEmitter(audit, nil)), WithLogf(func(string, ...any) {}))

	if _, err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(audit.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(audit.events))
	}
	got := audit.events[0]
	if got.EventName != EventDeadLettered || got.Severity != string(telemetry.SeverityError) {
		t.Fatalf("audit event = %+v", got)
	}
	if got.Attributes["dead_lettered"] != 1 {
		t.Fatalf("attributes = %v", got.Attributes)
	}
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	outbox := &fakeOutbox{attempts: map[uint64]int{}, maxAttempts: 8}
	d := NewDispatcher(outbox, nil, WithInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherRequiresOutbox(t *testing.T) {
	if _, err := NewDispatcher(nil, nil).RunOnce(context.Background()); err == nil {
		t.Fatal("expected error for missing outbox")
	}
	var d *Dispatcher
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
}
