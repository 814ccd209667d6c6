// Package maintenance implements offline operator checks against a ledger
// database: journal integrity, notification outbox inspection and recovery,
// audit trail reads and per-campaign custody reconciliation.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/pledgebank/internal/platform/cmd"
	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage/integrity"
	storagesqlite "github.com/louisbranch/pledgebank/internal/services/ledger/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath            string        `env:"LEDGER_DB_PATH"`
	Timeout           time.Duration `env:"MAINTENANCE_TIMEOUT" envDefault:"10m"`
	Integrity         bool
	OutboxReport      bool
	OutboxRequeueDead bool
	OutboxRequeueMax  int
	Audit             bool
	AuditLimit        int
	Reconcile         bool
	CampaignID        uint64
	JSONOutput        bool
}

// ParseConfig parses environment and flags into a Config. Flag defaults apply
// first, the environment overrides them and explicit flags win.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.DBPath, "db-path", filepath.Join("data", "ledger.db"), "path to the ledger sqlite database (env: PLEDGEBANK_LEDGER_DB_PATH)")
	fs.BoolVar(&cfg.Integrity, "integrity", false, "verify the journal hash chain and signatures")
	fs.BoolVar(&cfg.OutboxReport, "outbox-report", false, "report notification outbox depth")
	fs.BoolVar(&cfg.OutboxRequeueDead, "outbox-requeue-dead", false, "requeue a bounded batch of dead notification rows")
	fs.IntVar(&cfg.OutboxRequeueMax, "outbox-requeue-dead-limit", 0, "max dead rows to requeue (required with -outbox-requeue-dead)")
	fs.BoolVar(&cfg.Audit, "audit", false, "print recent audit events, newest first")
	fs.IntVar(&cfg.AuditLimit, "audit-limit", 50, "max audit events to print")
	fs.BoolVar(&cfg.Reconcile, "reconcile", false, "compare a campaign's raised amount with the contributions still held")
	fs.Uint64Var(&cfg.CampaignID, "campaign-id", 0, "campaign id for -reconcile or -audit")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", 10*time.Minute, "overall timeout (env: PLEDGEBANK_MAINTENANCE_TIMEOUT)")
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ledgerStore is the persistence surface maintenance reads and repairs.
type ledgerStore interface {
	VerifyJournal(ctx context.Context) (storage.JournalReport, error)
	GetOutboxSummary(ctx context.Context) (storage.OutboxSummary, error)
	RequeueDeadOutbox(ctx context.Context, limit int, now time.Time) (int, error)
	ListAuditEvents(ctx context.Context, campaignID uint64, limit int) ([]storage.AuditEvent, error)
	GetCampaign(ctx context.Context, id uint64) (domain.Campaign, error)
	ListContributions(ctx context.Context, campaignID uint64) (map[string]uint64, error)
	ListEvents(ctx context.Context, campaignID uint64, afterSeq uint64, limit int) ([]storage.JournalEvent, error)
	Close() error
}

// mode names the single action a run performs.
type mode string

const (
	modeIntegrity   mode = "integrity"
	modeOutbox      mode = "outbox-report"
	modeRequeueDead mode = "outbox-requeue-dead"
	modeAudit       mode = "audit"
	modeReconcile   mode = "reconcile"
)

// selectMode validates flag combinations and returns the requested action.
func selectMode(cfg Config) (mode, error) {
	var selected []mode
	if cfg.Integrity {
		selected = append(selected, modeIntegrity)
	}
	if cfg.OutboxReport {
		selected = append(selected, modeOutbox)
	}
	if cfg.OutboxRequeueDead {
		selected = append(selected, modeRequeueDead)
	}
	if cfg.Audit {
		selected = append(selected, modeAudit)
	}
	if cfg.Reconcile {
		selected = append(selected, modeReconcile)
	}
	switch len(selected) {
	case 0:
		return "", errors.New("one of -integrity, -outbox-report, -outbox-requeue-dead, -audit or -reconcile is required")
	case 1:
	default:
		return "", fmt.Errorf("-%s cannot be combined with -%s", selected[0], selected[1])
	}

	switch selected[0] {
	case modeRequeueDead:
		if cfg.OutboxRequeueMax <= 0 {
			return "", errors.New("-outbox-requeue-dead-limit must be > 0")
		}
	case modeAudit:
		if cfg.AuditLimit <= 0 {
			return "", errors.New("-audit-limit must be > 0")
		}
	case modeReconcile:
		if cfg.CampaignID == 0 {
			return "", errors.New("-campaign-id is required with -reconcile")
		}
	}
	if cfg.CampaignID != 0 && selected[0] != modeAudit && selected[0] != modeReconcile {
		return "", fmt.Errorf("-campaign-id cannot be combined with -%s", selected[0])
	}
	return selected[0], nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if _, err := selectMode(cfg); err != nil {
		return err
	}
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	return runWithStore(ctx, cfg, store, time.Now().UTC(), out, errOut)
}

// runWithStore performs the selected action and closes store on return.
func runWithStore(ctx context.Context, cfg Config, store ledgerStore, now time.Time, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if store == nil {
		return errors.New("ledger store is not configured")
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close ledger store: %v\n", closeErr)
		}
	}()

	selected, err := selectMode(cfg)
	if err != nil {
		return err
	}
	switch selected {
	case modeIntegrity:
		return runIntegrity(ctx, store, cfg.JSONOutput, out)
	case modeOutbox:
		return runOutboxReport(ctx, store, cfg.JSONOutput, out)
	case modeRequeueDead:
		return runOutboxRequeueDead(ctx, store, cfg.OutboxRequeueMax, now, cfg.JSONOutput, out)
	case modeAudit:
		return runAudit(ctx, store, cfg.CampaignID, cfg.AuditLimit, cfg.JSONOutput, out)
	default:
		return runReconcile(ctx, store, cfg.CampaignID, now, cfg.JSONOutput, out)
	}
}

type integrityReport struct {
	Mode          string `json:"mode"`
	OK            bool   `json:"ok"`
	EventsChecked int    `json:"events_checked"`
	LastSeq       uint64 `json:"last_seq"`
	Error         string `json:"error,omitempty"`
}

func runIntegrity(ctx context.Context, store ledgerStore, jsonOutput bool, out io.Writer) error {
	report, verifyErr := store.VerifyJournal(ctx)
	result := integrityReport{
		Mode:          string(modeIntegrity),
		OK:            verifyErr == nil,
		EventsChecked: report.EventsChecked,
		LastSeq:       report.LastSeq,
	}
	if verifyErr != nil {
		result.Error = verifyErr.Error()
	}

	if jsonOutput {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else if verifyErr == nil {
		fmt.Fprintf(out, "Journal OK: events=%d last_seq=%d\n", result.EventsChecked, result.LastSeq)
	} else {
		fmt.Fprintf(out, "Journal FAILED after %d events: %v\n", result.EventsChecked, verifyErr)
	}
	if verifyErr != nil {
		return fmt.Errorf("journal integrity check failed: %w", verifyErr)
	}
	return nil
}

type outboxReport struct {
	Mode    string                `json:"mode"`
	Summary storage.OutboxSummary `json:"summary"`
}

func runOutboxReport(ctx context.Context, store ledgerStore, jsonOutput bool, out io.Writer) error {
	summary, err := store.GetOutboxSummary(ctx)
	if err != nil {
		return fmt.Errorf("read outbox summary: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, outboxReport{Mode: string(modeOutbox), Summary: summary})
	}
	fmt.Fprintf(
		out,
		"Outbox summary: pending=%d processing=%d failed=%d dead=%d\n",
		summary.PendingCount,
		summary.ProcessingCount,
		summary.FailedCount,
		summary.DeadCount,
	)
	return nil
}

type outboxRequeueDeadResult struct {
	Mode     string `json:"mode"`
	Limit    int    `json:"limit"`
	Requeued int    `json:"requeued"`
}

func runOutboxRequeueDead(ctx context.Context, store ledgerStore, limit int, now time.Time, jsonOutput bool, out io.Writer) error {
	if limit <= 0 {
		return fmt.Errorf("outbox requeue limit must be > 0")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	requeued, err := store.RequeueDeadOutbox(ctx, limit, now)
	if err != nil {
		return fmt.Errorf("requeue dead outbox rows: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, outboxRequeueDeadResult{Mode: string(modeRequeueDead), Limit: limit, Requeued: requeued})
	}
	fmt.Fprintf(out, "Requeued dead outbox rows: %d (limit=%d)\n", requeued, limit)
	return nil
}

type auditEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventName  string         `json:"event_name"`
	Severity   string         `json:"severity"`
	CampaignID uint64         `json:"campaign_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type auditReport struct {
	Mode   string       `json:"mode"`
	Events []auditEntry `json:"events"`
}

func runAudit(ctx context.Context, store ledgerStore, campaignID uint64, limit int, jsonOutput bool, out io.Writer) error {
	events, err := store.ListAuditEvents(ctx, campaignID, limit)
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}
	entries := make([]auditEntry, 0, len(events))
	for _, evt := range events {
		entries = append(entries, auditEntry{
			Timestamp:  evt.Timestamp.UTC(),
			EventName:  evt.EventName,
			Severity:   evt.Severity,
			CampaignID: evt.CampaignID,
			ActorID:    evt.ActorID,
			RequestID:  evt.RequestID,
			Attributes: evt.Attributes,
		})
	}
	if jsonOutput {
		return writeJSON(out, auditReport{Mode: string(modeAudit), Events: entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit events")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintf(out, "%s %-5s %s", entry.Timestamp.Format(time.RFC3339), entry.Severity, entry.EventName)
		if entry.CampaignID != 0 {
			fmt.Fprintf(out, " campaign=%d", entry.CampaignID)
		}
		if entry.ActorID != "" {
			fmt.Fprintf(out, " actor=%s", entry.ActorID)
		}
		fmt.Fprintf(out, "%s\n", formatAttributes(entry.Attributes))
	}
	return nil
}

func formatAttributes(attributes map[string]any) string {
	if len(attributes) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, attributes[key])
	}
	return b.String()
}

// replayPageSize bounds each journal read during reconciliation.
const replayPageSize = 500

type reconcileReport struct {
	Mode         string   `json:"mode"`
	CampaignID   uint64   `json:"campaign_id"`
	Phase        string   `json:"phase"`
	RaisedAmount string   `json:"raised_amount"`
	HeldAmount   string   `json:"held_amount"`
	PaidOut      string   `json:"paid_out_amount"`
	Refunded     string   `json:"refunded_amount"`
	EntryTotal   string   `json:"entry_total"`
	Holders      int      `json:"holders"`
	Contributors uint64   `json:"contributors_count"`
	Events       int      `json:"events_replayed"`
	Mismatches   []string `json:"mismatches,omitempty"`
}

// runReconcile reports raised funds against contributions still held and
// checks the stored rows against a replay of the campaign journal. Refunds
// zero entries without reducing the raised amount, so a failed campaign shows
// the refunded portion as the difference. A withdrawal moves the whole raised
// amount out of custody while the entries stay as history, so a paid out
// campaign holds nothing.
func runReconcile(ctx context.Context, store ledgerStore, campaignID uint64, now time.Time, jsonOutput bool, out io.Writer) error {
	campaign, err := store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("get campaign %d: %w", campaignID, err)
	}
	entries, err := store.ListContributions(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("list contributions for campaign %d: %w", campaignID, err)
	}
	var entryTotal uint64
	for _, amount := range entries {
		entryTotal += amount
	}
	if entryTotal > campaign.RaisedAmount {
		return fmt.Errorf("campaign %d holds %d but raised only %d", campaignID, entryTotal, campaign.RaisedAmount)
	}
	held, paidOut, refunded := entryTotal, uint64(0), campaign.RaisedAmount-entryTotal
	if campaign.Completed {
		held, paidOut, refunded = 0, campaign.RaisedAmount, 0
	}
	replayed, events, err := replayCampaign(ctx, store, campaignID)
	if err != nil {
		return err
	}

	report := reconcileReport{
		Mode:         string(modeReconcile),
		CampaignID:   campaign.ID,
		Phase:        string(campaign.PhaseAt(now)),
		RaisedAmount: strconv.FormatUint(campaign.RaisedAmount, 10),
		HeldAmount:   strconv.FormatUint(held, 10),
		PaidOut:      strconv.FormatUint(paidOut, 10),
		Refunded:     strconv.FormatUint(refunded, 10),
		EntryTotal:   strconv.FormatUint(entryTotal, 10),
		Holders:      len(entries),
		Contributors: campaign.ContributorsCount,
		Events:       events,
		Mismatches:   compareReplay(campaign, entries, replayed),
	}
	if jsonOutput {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(
			out,
			"Campaign %d (%s): raised=%s held=%s paid_out=%s refunded=%s entries=%s holders=%d contributors=%d events=%d\n",
			report.CampaignID,
			report.Phase,
			report.RaisedAmount,
			report.HeldAmount,
			report.PaidOut,
			report.Refunded,
			report.EntryTotal,
			report.Holders,
			report.Contributors,
			report.Events,
		)
		for _, mismatch := range report.Mismatches {
			fmt.Fprintf(out, "  mismatch: %s\n", mismatch)
		}
	}
	if len(report.Mismatches) > 0 {
		return fmt.Errorf("campaign %d diverges from its journal (%d mismatches)", campaignID, len(report.Mismatches))
	}
	return nil
}

// replayCampaign folds every journal event of the campaign.
func replayCampaign(ctx context.Context, store ledgerStore, campaignID uint64) (domain.State, int, error) {
	var (
		events   []domain.Event
		afterSeq uint64
	)
	for {
		page, err := store.ListEvents(ctx, campaignID, afterSeq, replayPageSize)
		if err != nil {
			return domain.State{}, 0, fmt.Errorf("list events for campaign %d: %w", campaignID, err)
		}
		for _, evt := range page {
			events = append(events, evt.Event)
			afterSeq = evt.Seq
		}
		if len(page) < replayPageSize {
			break
		}
	}
	return domain.Replay(events)[campaignID], len(events), nil
}

func compareReplay(campaign domain.Campaign, entries map[string]uint64, replayed domain.State) []string {
	var mismatches []string
	want := replayed.Campaign
	if want.RaisedAmount != campaign.RaisedAmount {
		mismatches = append(mismatches, fmt.Sprintf("raised_amount stored=%d replayed=%d", campaign.RaisedAmount, want.RaisedAmount))
	}
	if want.ContributorsCount != campaign.ContributorsCount {
		mismatches = append(mismatches, fmt.Sprintf("contributors_count stored=%d replayed=%d", campaign.ContributorsCount, want.ContributorsCount))
	}
	if want.Funded != campaign.Funded {
		mismatches = append(mismatches, fmt.Sprintf("funded stored=%t replayed=%t", campaign.Funded, want.Funded))
	}
	if want.Completed != campaign.Completed {
		mismatches = append(mismatches, fmt.Sprintf("completed stored=%t replayed=%t", campaign.Completed, want.Completed))
	}

	identities := make(map[string]struct{}, len(entries)+len(replayed.Contributions))
	for identity := range entries {
		identities[identity] = struct{}{}
	}
	for identity := range replayed.Contributions {
		identities[identity] = struct{}{}
	}
	keys := make([]string, 0, len(identities))
	for identity := range identities {
		keys = append(keys, identity)
	}
	sort.Strings(keys)
	for _, identity := range keys {
		if stored, expected := entries[identity], replayed.Contributions[identity]; stored != expected {
			mismatches = append(mismatches, fmt.Sprintf("contribution %s stored=%d replayed=%d", identity, stored, expected))
		}
	}
	return mismatches
}

func writeJSON(out io.Writer, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}

func openStore(path string) (*storagesqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("ledger db path is required")
	}
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return nil, err
	}
	store, err := storagesqlite.Open(cleanPath, keyring)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	return store, nil
}
