package telemetry

import (
	"context"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/requestctx"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"go.opentelemetry.io/otel/trace"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.AuditStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.AuditStore, clock func() time.Time) *Emitter {
	return &Emitter{store: store, clock: clock}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
//
// Missing actor and trace fields are filled from the request context.
func (e *Emitter) Emit(ctx context.Context, evt storage.AuditEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if evt.ActorID == "" {
		evt.ActorID = requestctx.SubjectFromContext(ctx)
	}
	if evt.RequestID == "" {
		evt.RequestID = requestctx.RequestIDFromContext(ctx)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		if evt.TraceID == "" {
			evt.TraceID = sc.TraceID().String()
		}
		if evt.SpanID == "" {
			evt.SpanID = sc.SpanID().String()
		}
	}
	return e.store.AppendAuditEvent(ctx, evt)
}

// EmitSeverity is a shorthand for events without extra identifiers.
func (e *Emitter) EmitSeverity(ctx context.Context, name string, severity Severity, campaignID uint64, attributes map[string]any) error {
	return e.Emit(ctx, storage.AuditEvent{
		EventName:  name,
		Severity:   string(severity),
		CampaignID: campaignID,
		Attributes: attributes,
	})
}
