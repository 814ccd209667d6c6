package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"
	"github.com/louisbranch/pledgebank/internal/platform/grpc/pagination"
	"github.com/louisbranch/pledgebank/internal/platform/telemetry"
	"github.com/louisbranch/pledgebank/internal/platform/timeouts"
	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/filter"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"github.com/louisbranch/pledgebank/internal/services/ledger/transfer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/pledgebank/internal/services/ledger/app"

// Telemetry event names recorded by the service.
const (
	EventCommandRejected = "campaign.command_rejected"
	EventTransferFailed  = "campaign.transfer_failed"
	EventCommitFailed    = "campaign.commit_failed"
)

// Paging limits for campaign and journal listings.
var (
	campaignPageSize = pagination.PageSizeConfig{Default: 20, Max: 100}
	eventPageSize    = pagination.PageSizeConfig{Default: 50, Max: 500}
)

// Store is the persistence surface the service needs.
type Store interface {
	storage.CampaignReader
	storage.Stager
	storage.JournalStore
}

// Result describes an applied mutation.
type Result struct {
	Campaign domain.Campaign
	Event    storage.JournalEvent
	// Receipt is set when the operation moved value out of custody.
	Receipt *transfer.Receipt
}

// Service applies campaign commands against the ledger. Mutations on the same
// campaign are serialized in process; the store's version checks guard
// against writers in other processes.
type Service struct {
	store     Store
	transfers transfer.Transferrer
	emitter   *telemetry.Emitter
	clock     func() time.Time
	logf      func(string, ...any)
	tracer    trace.Tracer

	locks    *campaignLocks
	createMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEmitter records operational telemetry through emitter.
func WithEmitter(emitter *telemetry.Emitter) Option {
	return func(s *Service) {
		s.emitter = emitter
	}
}

// WithLogf overrides the logger used for failures that cannot be returned.
func WithLogf(logf func(string, ...any)) Option {
	return func(s *Service) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// NewService builds a ledger service.
func NewService(store Store, transfers transfer.Transferrer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if transfers == nil {
		return nil, errors.New("transferrer is required")
	}
	s := &Service{
		store:     store,
		transfers: transfers,
		clock:     time.Now,
		logf:      log.Printf,
		tracer:    otel.Tracer(tracerName),
		locks:     newCampaignLocks(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// now returns the service time at the millisecond precision the store keeps.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

// CreateCampaign opens the next sequential campaign.
func (s *Service) CreateCampaign(ctx context.Context, cmd domain.CreateCampaign) (result Result, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.CreateCampaign")
	defer func() { endSpan(span, result.Campaign.ID, err) }()

	s.createMu.Lock()
	defer s.createMu.Unlock()

	count, err := s.store.CampaignCount(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load campaign count: %w", err)
	}
	now := s.now()
	decision := domain.DecideCreate(count, cmd, now)
	if !decision.Accepted() {
		return Result{}, s.rejected(ctx, 0, "create", cmd.Creator, decision)
	}
	return s.apply(ctx, domain.State{}, decision, func(ctx context.Context, stage storage.Stage, next domain.State) error {
		return stage.InsertCampaign(ctx, next.Campaign, count)
	})
}

// Contribute records a pledge from the contributor.
func (s *Service) Contribute(ctx context.Context, cmd domain.Contribute) (result Result, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Contribute", trace.WithAttributes(campaignAttr(cmd.CampaignID)))
	defer func() { endSpan(span, cmd.CampaignID, err) }()

	release := s.locks.lock(cmd.CampaignID)
	defer release()

	state, err := s.loadState(ctx, cmd.CampaignID, cmd.Contributor)
	if err != nil {
		return Result{}, err
	}
	decision := domain.DecideContribute(state, cmd, s.now())
	if !decision.Accepted() {
		return Result{}, s.rejected(ctx, cmd.CampaignID, "contribute", cmd.Contributor, decision)
	}
	return s.apply(ctx, state, decision, func(ctx context.Context, stage storage.Stage, next domain.State) error {
		if err := stage.UpdateCampaign(ctx, next.Campaign, state.Campaign.Version); err != nil {
			return err
		}
		return stage.PutContribution(ctx, cmd.CampaignID, cmd.Contributor, next.ContributionOf(cmd.Contributor))
	})
}

// Withdraw pays the raised amount to the creator once the goal is reached.
func (s *Service) Withdraw(ctx context.Context, cmd domain.Withdraw) (result Result, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Withdraw", trace.WithAttributes(campaignAttr(cmd.CampaignID)))
	defer func() { endSpan(span, cmd.CampaignID, err) }()

	release := s.locks.lock(cmd.CampaignID)
	defer release()

	state, err := s.loadState(ctx, cmd.CampaignID, "")
	if err != nil {
		return Result{}, err
	}
	decision := domain.DecideWithdraw(state, cmd, s.now())
	if !decision.Accepted() {
		return Result{}, s.rejected(ctx, cmd.CampaignID, "withdraw", cmd.Caller, decision)
	}
	return s.apply(ctx, state, decision, func(ctx context.Context, stage storage.Stage, next domain.State) error {
		return stage.UpdateCampaign(ctx, next.Campaign, state.Campaign.Version)
	})
}

// ClaimRefund returns the caller's contribution from a failed campaign.
func (s *Service) ClaimRefund(ctx context.Context, cmd domain.ClaimRefund) (result Result, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ClaimRefund", trace.WithAttributes(campaignAttr(cmd.CampaignID)))
	defer func() { endSpan(span, cmd.CampaignID, err) }()

	release := s.locks.lock(cmd.CampaignID)
	defer release()

	state, err := s.loadState(ctx, cmd.CampaignID, cmd.Caller)
	if err != nil {
		return Result{}, err
	}
	decision := domain.DecideClaimRefund(state, cmd, s.now())
	if !decision.Accepted() {
		return Result{}, s.rejected(ctx, cmd.CampaignID, "claim_refund", cmd.Caller, decision)
	}
	return s.apply(ctx, state, decision, func(ctx context.Context, stage storage.Stage, next domain.State) error {
		if err := stage.UpdateCampaign(ctx, next.Campaign, state.Campaign.Version); err != nil {
			return err
		}
		return stage.PutContribution(ctx, cmd.CampaignID, cmd.Caller, next.ContributionOf(cmd.Caller))
	})
}

// loadState reads the campaign and, when identity is set, that identity's
// contribution. A missing campaign yields the zero state.
func (s *Service) loadState(ctx context.Context, campaignID uint64, identity string) (domain.State, error) {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.State{}, nil
		}
		return domain.State{}, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	state := domain.State{Campaign: campaign, Contributions: map[string]uint64{}}
	if strings.TrimSpace(identity) == "" {
		return state, nil
	}
	amount, err := s.store.GetContribution(ctx, campaignID, identity)
	if err != nil {
		return domain.State{}, fmt.Errorf("load contribution: %w", err)
	}
	if amount > 0 {
		state.Contributions[identity] = amount
	}
	return state, nil
}

// apply stages the accepted decision, performs its payout and commits. A
// failed payout rolls back every staged row.
func (s *Service) apply(ctx context.Context, prior domain.State, decision domain.Decision, stageRows func(context.Context, storage.Stage, domain.State) error) (Result, error) {
	next := prior
	for _, evt := range decision.Events {
		next = domain.Fold(next, evt)
	}
	campaignID := next.Campaign.ID

	// The transaction outlives caller cancellation once a transfer may have
	// happened, so the commit is never abandoned halfway.
	stage, err := s.store.Begin(context.WithoutCancel(ctx))
	if err != nil {
		return Result{}, s.storeErr(campaignID, "begin", err)
	}
	defer func() {
		_ = stage.Rollback()
	}()

	if err := stageRows(ctx, stage, next); err != nil {
		return Result{}, s.storeErr(campaignID, "stage campaign", err)
	}
	journaled, err := stage.AppendEvents(ctx, decision.Events...)
	if err != nil {
		return Result{}, s.storeErr(campaignID, "append events", err)
	}

	result := Result{Campaign: next.Campaign}
	if len(journaled) > 0 {
		result.Event = journaled[len(journaled)-1]
	}

	if decision.Payout != nil {
		instruction := transfer.InstructionFor(campaignID, *decision.Payout)
		receipt, err := s.settle(ctx, instruction)
		if err != nil {
			// Release the write transaction before recording the failure in
			// the same database.
			_ = stage.Rollback()
			return Result{}, s.transferFailed(ctx, instruction, err)
		}
		result.Receipt = &receipt
	}

	if err := stage.Commit(); err != nil {
		_ = stage.Rollback()
		if result.Receipt != nil {
			// The value has moved but the state has not. A retried command
			// finds the recorded installments and only pays what is still
			// owed, including contributions accepted in the meantime.
			s.logf("ledger: commit after transfer %s failed: %v", result.Receipt.ID, err)
			s.emit(ctx, EventCommitFailed, telemetry.SeverityError, campaignID, map[string]any{
				"transfer_id": result.Receipt.ID,
				"error":       err.Error(),
			})
		}
		return Result{}, s.storeErr(campaignID, "commit", err)
	}
	return result, nil
}

func (s *Service) settle(ctx context.Context, instruction transfer.Instruction) (transfer.Receipt, error) {
	transferCtx, cancel := context.WithTimeout(ctx, timeouts.Transfer)
	defer cancel()
	return transfer.Settle(transferCtx, s.transfers, instruction)
}

func (s *Service) transferFailed(ctx context.Context, instruction transfer.Instruction, err error) error {
	s.emit(ctx, EventTransferFailed, telemetry.SeverityError, instruction.CampaignID, map[string]any{
		"transfer_id": instruction.ID,
		"kind":        string(instruction.Kind),
		"recipient":   instruction.Recipient,
		"amount":      strconv.FormatUint(instruction.Amount, 10),
		"error":       err.Error(),
	})
	return apperrors.WrapWithMetadata(
		apperrors.CodeTransferFailed,
		"value transfer failed",
		map[string]string{
			apperrors.MetadataCampaignID: strconv.FormatUint(instruction.CampaignID, 10),
			"Reason":                     err.Error(),
		},
		err,
	)
}

func (s *Service) rejected(ctx context.Context, campaignID uint64, command, actor string, decision domain.Decision) error {
	attrs := map[string]any{"command": command}
	if decision.Rejection != nil {
		attrs["code"] = string(decision.Rejection.Code)
		attrs["reason"] = decision.Rejection.Message
	}
	if actor != "" {
		attrs["actor"] = actor
	}
	s.emit(ctx, EventCommandRejected, telemetry.SeverityWarn, campaignID, attrs)
	return decision.Err(campaignID)
}

func (s *Service) storeErr(campaignID uint64, step string, err error) error {
	if errors.Is(err, storage.ErrVersionConflict) {
		return apperrors.WrapWithMetadata(
			apperrors.CodeCampaignConcurrentUpdate,
			"campaign changed during "+step,
			map[string]string{apperrors.MetadataCampaignID: strconv.FormatUint(campaignID, 10)},
			err,
		)
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return fmt.Errorf("%s campaign %d: %w", step, campaignID, err)
}

func (s *Service) emit(ctx context.Context, name string, severity telemetry.Severity, campaignID uint64, attrs map[string]any) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitSeverity(ctx, name, severity, campaignID, attrs); err != nil {
		s.logf("ledger: emit %s: %v", name, err)
	}
}

// GetCampaign returns one campaign's public state.
func (s *Service) GetCampaign(ctx context.Context, campaignID uint64) (domain.Campaign, error) {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, notFound(campaignID, err)
	}
	return campaign, nil
}

// CampaignCount returns the number of campaigns created so far.
func (s *Service) CampaignCount(ctx context.Context) (uint64, error) {
	count, err := s.store.CampaignCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("load campaign count: %w", err)
	}
	return count, nil
}

// GetContribution returns the amount identity currently has in campaign.
func (s *Service) GetContribution(ctx context.Context, campaignID uint64, identity string) (uint64, error) {
	if strings.TrimSpace(identity) == "" {
		return 0, apperrors.ForCampaign(apperrors.CodeIdentityMissing, "contributor identity is required", campaignID)
	}
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return 0, notFound(campaignID, err)
	}
	amount, err := s.store.GetContribution(ctx, campaignID, identity)
	if err != nil {
		return 0, fmt.Errorf("load contribution: %w", err)
	}
	return amount, nil
}

// CampaignList is one page of campaigns.
type CampaignList struct {
	Campaigns     []domain.Campaign
	NextPageToken string
}

// ListCampaigns pages campaigns in id order, optionally filtered.
func (s *Service) ListCampaigns(ctx context.Context, pageSize int32, pageToken, filterStr string) (CampaignList, error) {
	afterID, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return CampaignList{}, apperrors.Wrap(apperrors.CodePageTokenInvalid, "invalid page token", err)
	}
	cond, err := filter.ParseCampaignFilter(filterStr, s.now())
	if err != nil {
		return CampaignList{}, err
	}
	page, err := s.store.ListCampaigns(ctx, pagination.ClampPageSize(pageSize, campaignPageSize), afterID, cond)
	if err != nil {
		return CampaignList{}, fmt.Errorf("list campaigns: %w", err)
	}
	list := CampaignList{Campaigns: page.Campaigns}
	if page.LastID != 0 {
		list.NextPageToken = pagination.EncodeCursor(page.LastID)
	}
	return list, nil
}

// ListEvents reads journal entries after afterSeq. campaignID 0 reads the
// whole journal.
func (s *Service) ListEvents(ctx context.Context, campaignID, afterSeq uint64, limit int32) ([]storage.JournalEvent, error) {
	events, err := s.store.ListEvents(ctx, campaignID, afterSeq, pagination.ClampPageSize(limit, eventPageSize))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// VerifyJournal recomputes the journal hash chain and signatures.
func (s *Service) VerifyJournal(ctx context.Context) (storage.JournalReport, error) {
	return s.store.VerifyJournal(ctx)
}

// Phase derives the campaign phase at the service clock.
func (s *Service) Phase(campaign domain.Campaign) domain.Phase {
	return campaign.PhaseAt(s.now())
}

func notFound(campaignID uint64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.ForCampaign(apperrors.CodeCampaignNotFound, "campaign not found", campaignID)
	}
	return fmt.Errorf("load campaign %d: %w", campaignID, err)
}

func campaignAttr(campaignID uint64) attribute.KeyValue {
	return attribute.Int64("campaign.id", int64(campaignID))
}

func endSpan(span trace.Span, campaignID uint64, err error) {
	if campaignID != 0 {
		span.SetAttributes(campaignAttr(campaignID))
	}
	if err != nil {
		span.SetAttributes(attribute.String("outcome", string(apperrors.CodeOf(err))))
		span.SetStatus(otelcodes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("outcome", "ok"))
	}
	span.End()
}
