// Package storage defines persistence contracts for the campaign ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
)

var (
	// ErrNotFound indicates a requested ledger record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict indicates a staged write lost a race with another
	// writer of the same record.
	ErrVersionConflict = errors.New("version conflict")
)

// Condition is a SQL WHERE fragment with positional parameters.
type Condition struct {
	Clause string
	Params []any
}

// CampaignPage stores one page of campaigns ordered by id.
type CampaignPage struct {
	Campaigns []domain.Campaign
	// LastID is the id of the final campaign on the page when more remain.
	LastID uint64
}

// JournalEvent is one persisted, chained and signed ledger notification.
type JournalEvent struct {
	Seq            uint64
	Event          domain.Event
	EventHash      string
	PrevHash       string
	ChainHash      string
	Signature      string
	SignatureKeyID string
}

// JournalReport summarizes a full journal verification pass.
type JournalReport struct {
	EventsChecked int
	LastSeq       uint64
}

// OutboxSummary reports notification outbox depth by status.
type OutboxSummary struct {
	PendingCount    int
	ProcessingCount int
	FailedCount     int
	DeadCount       int
}

// AuditEvent is one operational telemetry record.
type AuditEvent struct {
	Timestamp  time.Time
	EventName  string
	Severity   string
	CampaignID uint64
	ActorID    string
	RequestID  string
	TraceID    string
	SpanID     string
	Attributes map[string]any
}

// CampaignReader exposes read-only campaign state.
type CampaignReader interface {
	GetCampaign(ctx context.Context, id uint64) (domain.Campaign, error)
	CampaignCount(ctx context.Context) (uint64, error)
	GetContribution(ctx context.Context, campaignID uint64, identity string) (uint64, error)
	ListCampaigns(ctx context.Context, pageSize int, afterID uint64, cond Condition) (CampaignPage, error)
}

// Stage collects the writes of one operation inside a single transaction.
// Nothing is visible to readers until Commit; Rollback after Commit is a
// no-op so callers can always defer it.
type Stage interface {
	// InsertCampaign stores a new campaign and advances the ledger count from
	// priorCount to the campaign's id.
	InsertCampaign(ctx context.Context, campaign domain.Campaign, priorCount uint64) error
	// UpdateCampaign writes the campaign only if the stored version still
	// equals priorVersion.
	UpdateCampaign(ctx context.Context, campaign domain.Campaign, priorVersion int64) error
	PutContribution(ctx context.Context, campaignID uint64, identity string, amount uint64) error
	// AppendEvents chains, signs and journals events and enqueues each for
	// notification delivery.
	AppendEvents(ctx context.Context, events ...domain.Event) ([]JournalEvent, error)
	Commit() error
	Rollback() error
}

// Stager opens staged write transactions.
type Stager interface {
	Begin(ctx context.Context) (Stage, error)
}

// JournalStore exposes the notification journal.
type JournalStore interface {
	ListEvents(ctx context.Context, campaignID uint64, afterSeq uint64, limit int) ([]JournalEvent, error)
	VerifyJournal(ctx context.Context) (JournalReport, error)
}

// OutboxStore drives notification delivery.
type OutboxStore interface {
	// ProcessOutbox claims due rows, calls deliver for each, deletes delivered
	// rows and schedules retries for failures.
	ProcessOutbox(ctx context.Context, now time.Time, limit int, deliver func(context.Context, JournalEvent) error) (int, error)
	GetOutboxSummary(ctx context.Context) (OutboxSummary, error)
	RequeueDeadOutbox(ctx context.Context, limit int, now time.Time) (int, error)
}

// AuditStore persists operational telemetry.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, evt AuditEvent) error
}

// Store is the full ledger persistence surface.
type Store interface {
	CampaignReader
	Stager
	JournalStore
	OutboxStore
	AuditStore
	Close() error
}

// AmountWidth is the fixed decimal width of stored amounts.
const AmountWidth = 20

// EncodeAmount renders an amount as fixed-width decimal text so SQL text
// comparison orders amounts numerically across the full uint64 range.
func EncodeAmount(amount uint64) string {
	return fmt.Sprintf("%0*d", AmountWidth, amount)
}

// DecodeAmount parses a stored amount.
func DecodeAmount(value string) (uint64, error) {
	amount, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode amount %q: %w", value, err)
	}
	return amount, nil
}
