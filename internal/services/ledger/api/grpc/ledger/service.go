// Package ledger serves the campaign ledger over gRPC.
package ledger

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"
	"github.com/louisbranch/pledgebank/internal/platform/requestctx"
	"github.com/louisbranch/pledgebank/internal/services/ledger/app"
	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"github.com/louisbranch/pledgebank/internal/services/ledger/transfer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ LedgerServer = (*Service)(nil)

// Service implements LedgerServer on top of the ledger application service.
// The caller identity comes from the auth interceptor.
type Service struct {
	ledger *app.Service
}

// NewService creates the gRPC ledger service.
func NewService(ledger *app.Service) *Service {
	return &Service{ledger: ledger}
}

// CreateCampaign opens a campaign owned by the caller.
func (s *Service) CreateCampaign(ctx context.Context, in *CreateCampaignRequest) (*CreateCampaignResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "create campaign request is required")
	}
	result, err := s.ledger.CreateCampaign(ctx, domain.CreateCampaign{
		Creator:      requestctx.SubjectFromContext(ctx),
		Title:        in.Title,
		Description:  in.Description,
		TargetAmount: in.TargetAmount,
		DurationDays: in.DurationDays,
	})
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return &CreateCampaignResponse{
		Campaign: s.campaignToMessage(result.Campaign),
		Event:    eventToMessage(result.Event),
	}, nil
}

// Contribute pledges value from the caller.
func (s *Service) Contribute(ctx context.Context, in *ContributeRequest) (*ContributeResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "contribute request is required")
	}
	result, err := s.ledger.Contribute(ctx, domain.Contribute{
		CampaignID:  in.CampaignID,
		Contributor: requestctx.SubjectFromContext(ctx),
		Amount:      in.Amount,
	})
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return &ContributeResponse{
		Campaign: s.campaignToMessage(result.Campaign),
		Event:    eventToMessage(result.Event),
	}, nil
}

// Withdraw pays a funded campaign to its creator.
func (s *Service) Withdraw(ctx context.Context, in *WithdrawRequest) (*WithdrawResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "withdraw request is required")
	}
	result, err := s.ledger.Withdraw(ctx, domain.Withdraw{
		CampaignID: in.CampaignID,
		Caller:     requestctx.SubjectFromContext(ctx),
	})
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return &WithdrawResponse{
		Campaign: s.campaignToMessage(result.Campaign),
		Event:    eventToMessage(result.Event),
		Receipt:  receiptToMessage(result.Receipt),
	}, nil
}

// ClaimRefund returns the caller's contribution from a failed campaign.
func (s *Service) ClaimRefund(ctx context.Context, in *ClaimRefundRequest) (*ClaimRefundResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "claim refund request is required")
	}
	result, err := s.ledger.ClaimRefund(ctx, domain.ClaimRefund{
		CampaignID: in.CampaignID,
		Caller:     requestctx.SubjectFromContext(ctx),
	})
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return &ClaimRefundResponse{
		Campaign: s.campaignToMessage(result.Campaign),
		Event:    eventToMessage(result.Event),
		Receipt:  receiptToMessage(result.Receipt),
	}, nil
}

func (s *Service) GetCampaign(ctx context.Context, in *GetCampaignRequest) (*GetCampaignResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get campaign request is required")
	}
	campaign, err := s.ledger.GetCampaign(ctx, in.CampaignID)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return &GetCampaignResponse{Campaign: s.campaignToMessage(campaign)}, nil
}

func (s *Service) GetCampaignCount(ctx context.Context, in *GetCampaignCountRequest) (*GetCampaignCountResponse, error) {
	count, err := s.ledger.CampaignCount(ctx)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return &GetCampaignCountResponse{Count: count}, nil
}

// GetContribution reads one identity's contribution, defaulting to the caller.
func (s *Service) GetContribution(ctx context.Context, in *GetContributionRequest) (*GetContributionResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get contribution request is required")
	}
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		identity = requestctx.SubjectFromContext(ctx)
	}
	amount, err := s.ledger.GetContribution(ctx, in.CampaignID, identity)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	return &GetContributionResponse{CampaignID: in.CampaignID, Identity: identity, Amount: amount}, nil
}

func (s *Service) ListCampaigns(ctx context.Context, in *ListCampaignsRequest) (*ListCampaignsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list campaigns request is required")
	}
	list, err := s.ledger.ListCampaigns(ctx, in.PageSize, in.PageToken, in.Filter)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	response := &ListCampaignsResponse{
		Campaigns:     make([]*Campaign, 0, len(list.Campaigns)),
		NextPageToken: list.NextPageToken,
	}
	for _, campaign := range list.Campaigns {
		response.Campaigns = append(response.Campaigns, s.campaignToMessage(campaign))
	}
	return response, nil
}

func (s *Service) ListEvents(ctx context.Context, in *ListEventsRequest) (*ListEventsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list events request is required")
	}
	events, err := s.ledger.ListEvents(ctx, in.CampaignID, in.AfterSeq, in.PageSize)
	if err != nil {
		return nil, handleDomainError(ctx, err)
	}
	response := &ListEventsResponse{Events: make([]*Event, 0, len(events))}
	for _, evt := range events {
		response.Events = append(response.Events, eventToMessage(evt))
	}
	return response, nil
}

// VerifyJournal recomputes the journal chain. A broken chain is reported as
// DataLoss.
func (s *Service) VerifyJournal(ctx context.Context, in *VerifyJournalRequest) (*VerifyJournalResponse, error) {
	report, err := s.ledger.VerifyJournal(ctx)
	if err != nil {
		log.Printf("verify journal: %v", err)
		return nil, status.Errorf(codes.DataLoss, "journal verification failed: %v", err)
	}
	return &VerifyJournalResponse{EventsChecked: report.EventsChecked, LastSeq: report.LastSeq}, nil
}

func handleDomainError(ctx context.Context, err error) error {
	if apperrors.CodeOf(err) == apperrors.CodeUnknown {
		log.Printf("ledger request %s: %v", requestctx.RequestIDFromContext(ctx), err)
	}
	return apperrors.HandleError(err, requestctx.LocaleFromContext(ctx))
}

func (s *Service) campaignToMessage(c domain.Campaign) *Campaign {
	return &Campaign{
		ID:                c.ID,
		Creator:           c.Creator,
		Title:             c.Title,
		Description:       c.Description,
		TargetAmount:      c.TargetAmount,
		RaisedAmount:      c.RaisedAmount,
		Deadline:          c.Deadline,
		CreatedAt:         c.CreatedAt,
		Completed:         c.Completed,
		Funded:            c.Funded,
		ContributorsCount: c.ContributorsCount,
		Phase:             string(s.ledger.Phase(c)),
		Version:           c.Version,
	}
}

func eventToMessage(evt storage.JournalEvent) *Event {
	if evt.Seq == 0 {
		return nil
	}
	msg := &Event{
		Seq:            evt.Seq,
		CampaignID:     evt.Event.CampaignID,
		Type:           string(evt.Event.Type),
		Actor:          evt.Event.Actor,
		Amount:         evt.Event.Amount,
		OccurredAt:     evt.Event.OccurredAt,
		EventHash:      evt.EventHash,
		PrevHash:       evt.PrevHash,
		ChainHash:      evt.ChainHash,
		Signature:      evt.Signature,
		SignatureKeyID: evt.SignatureKeyID,
	}
	if json.Valid(evt.Event.PayloadJSON) {
		msg.Payload = json.RawMessage(evt.Event.PayloadJSON)
	}
	return msg
}

func receiptToMessage(receipt *transfer.Receipt) *Receipt {
	if receipt == nil {
		return nil
	}
	return &Receipt{
		ID:          receipt.ID,
		Kind:        string(receipt.Kind),
		CampaignID:  receipt.CampaignID,
		Recipient:   receipt.Recipient,
		Amount:      receipt.Amount,
		CompletedAt: receipt.CompletedAt,
	}
}
