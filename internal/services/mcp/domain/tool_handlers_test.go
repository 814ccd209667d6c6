package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/requestctx"
	"github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/ledger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

type fakeLedgerClient struct {
	createReq     *ledger.CreateCampaignRequest
	createResp    *ledger.CreateCampaignResponse
	contributeReq *ledger.ContributeRequest
	withdrawResp  *ledger.WithdrawResponse
	refundResp    *ledger.ClaimRefundResponse
	getResp       *ledger.GetCampaignResponse
	contribReq    *ledger.GetContributionRequest
	listReq       *ledger.ListCampaignsRequest
	listResp      *ledger.ListCampaignsResponse
	eventsReq     *ledger.ListEventsRequest
	eventsResp    *ledger.ListEventsResponse
	count         uint64
	requestID     string
	err           error
}

func (f *fakeLedgerClient) CreateCampaign(ctx context.Context, in *ledger.CreateCampaignRequest, _ ...grpc.CallOption) (*ledger.CreateCampaignResponse, error) {
	f.createReq = in
	f.requestID = requestctx.RequestIDFromContext(ctx)
	return f.createResp, f.err
}

func (f *fakeLedgerClient) Contribute(_ context.Context, in *ledger.ContributeRequest, _ ...grpc.CallOption) (*ledger.ContributeResponse, error) {
	f.contributeReq = in
	if f.err != nil {
		return nil, f.err
	}
	return &ledger.ContributeResponse{Campaign: testCampaign(in.CampaignID, in.Amount)}, nil
}

func (f *fakeLedgerClient) Withdraw(_ context.Context, _ *ledger.WithdrawRequest, _ ...grpc.CallOption) (*ledger.WithdrawResponse, error) {
	return f.withdrawResp, f.err
}

func (f *fakeLedgerClient) ClaimRefund(_ context.Context, _ *ledger.ClaimRefundRequest, _ ...grpc.CallOption) (*ledger.ClaimRefundResponse, error) {
	return f.refundResp, f.err
}

func (f *fakeLedgerClient) GetCampaign(_ context.Context, _ *ledger.GetCampaignRequest, _ ...grpc.CallOption) (*ledger.GetCampaignResponse, error) {
	return f.getResp, f.err
}

func (f *fakeLedgerClient) GetCampaignCount(_ context.Context, _ *ledger.GetCampaignCountRequest, _ ...grpc.CallOption) (*ledger.GetCampaignCountResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ledger.GetCampaignCountResponse{Count: f.count}, nil
}

func (f *fakeLedgerClient) GetContribution(_ context.Context, in *ledger.GetContributionRequest, _ ...grpc.CallOption) (*ledger.GetContributionResponse, error) {
	f.contribReq = in
	if f.err != nil {
		return nil, f.err
	}
	identity := in.Identity
	if identity == "" {
		identity = "bridge"
	}
	return &ledger.GetContributionResponse{CampaignID: in.CampaignID, Identity: identity, Amount: 40}, nil
}

func (f *fakeLedgerClient) ListCampaigns(_ context.Context, in *ledger.ListCampaignsRequest, _ ...grpc.CallOption) (*ledger.ListCampaignsResponse, error) {
	f.listReq = in
	return f.listResp, f.err
}

func (f *fakeLedgerClient) ListEvents(_ context.Context, in *ledger.ListEventsRequest, _ ...grpc.CallOption) (*ledger.ListEventsResponse, error) {
	f.eventsReq = in
	return f.eventsResp, f.err
}

func testCampaign(campaignID, raised uint64) *ledger.Campaign {
	return &ledger.Campaign{
		ID:           campaignID,
		Creator:      "alice",
		Title:        "Garden",
		TargetAmount: 100,
		RaisedAmount: raised,
		Deadline:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Phase:        "ongoing",
	}
}

func TestCampaignCreateHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeLedgerClient{
			createResp: &ledger.CreateCampaignResponse{
				Campaign: testCampaign(1, 0),
				Event:    &ledger.Event{Seq: 1, CampaignID: 1, Type: "campaign.created", Actor: "alice"},
			},
		}
		var notified []string
		notify := func(_ context.Context, uri string) { notified = append(notified, uri) }

		toolResult, result, err := CampaignCreateHandler(client, notify)(context.Background(), nil, CampaignCreateInput{
			Title:        "Garden",
			Description:  "Community garden",
			TargetAmount: "18446744073709551615",
			DurationDays: 30,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if toolResult == nil {
			t.Fatal("expected non-nil tool result")
		}
		if client.createReq.TargetAmount != 18446744073709551615 {
			t.Fatalf("target amount = %d, want max uint64", client.createReq.TargetAmount)
		}
		if client.requestID == "" {
			t.Fatal("expected invocation request id")
		}
		if result.Campaign.ID != "1" || result.Campaign.Creator != "alice" {
			t.Fatalf("campaign = %+v", result.Campaign)
		}
		if result.Event == nil || result.Event.Type != "campaign.created" {
			t.Fatalf("event = %+v", result.Event)
		}
		if len(notified) != 1 || notified[0] != "campaigns://count" {
			t.Fatalf("notified = %v", notified)
		}
	})

	t.Run("invalid target", func(t *testing.T) {
		client := &fakeLedgerClient{}
		_, _, err := CampaignCreateHandler(client, nil)(context.Background(), nil, CampaignCreateInput{Title: "X", TargetAmount: "-5"})
		if err == nil {
			t.Fatal("expected error")
		}
		if client.createReq != nil {
			t.Fatal("expected no ledger call")
		}
	})

	t.Run("gRPC error", func(t *testing.T) {
		client := &fakeLedgerClient{err: fmt.Errorf("connection refused")}
		_, _, err := CampaignCreateHandler(client, nil)(context.Background(), nil, CampaignCreateInput{Title: "X", TargetAmount: "1"})
		if err == nil || !strings.Contains(err.Error(), "campaign create failed") {
			t.Fatalf("expected wrapped error, got %v", err)
		}
	})

	t.Run("nil response", func(t *testing.T) {
		client := &fakeLedgerClient{createResp: &ledger.CreateCampaignResponse{}}
		_, _, err := CampaignCreateHandler(client, nil)(context.Background(), nil, CampaignCreateInput{Title: "X", TargetAmount: "1"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestCampaignContributeHandler(t *testing.T) {
	client := &fakeLedgerClient{}
	_, result, err := CampaignContributeHandler(client)(context.Background(), nil, CampaignContributeInput{CampaignID: "7", Amount: "25"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.contributeReq.CampaignID != 7 || client.contributeReq.Amount != 25 {
		t.Fatalf("request = %+v", client.contributeReq)
	}
	if result.Campaign.RaisedAmount != "25" {
		t.Fatalf("raised = %q", result.Campaign.RaisedAmount)
	}

	for _, input := range []CampaignContributeInput{
		{CampaignID: "", Amount: "1"},
		{CampaignID: "0", Amount: "1"},
		{CampaignID: "abc", Amount: "1"},
		{CampaignID: "1", Amount: ""},
	} {
		if _, _, err := CampaignContributeHandler(&fakeLedgerClient{})(context.Background(), nil, input); err == nil {
			t.Fatalf("expected error for %+v", input)
		}
	}
}

func TestCampaignWithdrawHandler(t *testing.T) {
	completedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	client := &fakeLedgerClient{
		withdrawResp: &ledger.WithdrawResponse{
			Campaign: testCampaign(1, 150),
			Receipt: &ledger.Receipt{
				ID:          "withdrawal:1",
				Kind:        "withdrawal",
				CampaignID:  1,
				Recipient:   "alice",
				Amount:      150,
				CompletedAt: completedAt,
			},
		},
	}
	_, result, err := CampaignWithdrawHandler(client)(context.Background(), nil, CampaignIDInput{CampaignID: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Receipt == nil || result.Receipt.ID != "withdrawal:1" || result.Receipt.Amount != "150" {
		t.Fatalf("receipt = %+v", result.Receipt)
	}
	if result.Receipt.CompletedAt != "2026-03-02T00:00:00Z" {
		t.Fatalf("completed_at = %q", result.Receipt.CompletedAt)
	}
}

func TestCampaignClaimRefundHandler(t *testing.T) {
	client := &fakeLedgerClient{
		refundResp: &ledger.ClaimRefundResponse{
			Campaign: testCampaign(2, 50),
			Receipt:  &ledger.Receipt{ID: "refund:2:bob", Kind: "refund", Recipient: "bob", Amount: 50},
		},
	}
	toolResult, result, err := CampaignClaimRefundHandler(client)(context.Background(), nil, CampaignIDInput{CampaignID: "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Receipt == nil || result.Receipt.Recipient != "bob" {
		t.Fatalf("receipt = %+v", result.Receipt)
	}
	text, ok := toolResult.Content[0].(*mcp.TextContent)
	if !ok || !strings.Contains(text.Text, "refunded 50") {
		t.Fatalf("content = %+v", toolResult.Content)
	}
}

func TestCampaignGetHandler(t *testing.T) {
	client := &fakeLedgerClient{getResp: &ledger.GetCampaignResponse{Campaign: testCampaign(3, 10)}}
	_, result, err := CampaignGetHandler(client)(context.Background(), nil, CampaignIDInput{CampaignID: "3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Campaign.Phase != "ongoing" || result.Campaign.Deadline != "2026-03-01T00:00:00Z" {
		t.Fatalf("campaign = %+v", result.Campaign)
	}

	missing := &fakeLedgerClient{err: fmt.Errorf("not found")}
	if _, _, err := CampaignGetHandler(missing)(context.Background(), nil, CampaignIDInput{CampaignID: "3"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestContributionGetHandler(t *testing.T) {
	client := &fakeLedgerClient{}
	_, result, err := ContributionGetHandler(client)(context.Background(), nil, ContributionGetInput{CampaignID: "4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.contribReq.Identity != "" {
		t.Fatalf("identity = %q, want empty", client.contribReq.Identity)
	}
	if result.Identity != "bridge" || result.Amount != "40" || result.CampaignID != "4" {
		t.Fatalf("result = %+v", result)
	}
}

func TestCampaignListHandler(t *testing.T) {
	client := &fakeLedgerClient{
		listResp: &ledger.ListCampaignsResponse{
			Campaigns:     []*ledger.Campaign{testCampaign(1, 0), nil, testCampaign(2, 5)},
			NextPageToken: "next",
		},
	}
	_, result, err := CampaignListHandler(client)(context.Background(), nil, CampaignListInput{PageSize: 2, Filter: `creator = "alice"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.listReq.PageSize != 2 || client.listReq.Filter != `creator = "alice"` {
		t.Fatalf("request = %+v", client.listReq)
	}
	if len(result.Campaigns) != 2 || result.NextPageToken != "next" {
		t.Fatalf("result = %+v", result)
	}
}

func TestCampaignEventsHandler(t *testing.T) {
	client := &fakeLedgerClient{
		eventsResp: &ledger.ListEventsResponse{
			Events: []*ledger.Event{{Seq: 5, CampaignID: 2, Type: "campaign.contributed", Actor: "bob", Amount: 10}},
		},
	}
	_, result, err := CampaignEventsHandler(client)(context.Background(), nil, CampaignEventsInput{CampaignID: "2", AfterSeq: "4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.eventsReq.CampaignID != 2 || client.eventsReq.AfterSeq != 4 {
		t.Fatalf("request = %+v", client.eventsReq)
	}
	if len(result.Events) != 1 || result.Events[0].Seq != "5" || result.Events[0].Amount != "10" {
		t.Fatalf("events = %+v", result.Events)
	}

	all := &fakeLedgerClient{eventsResp: &ledger.ListEventsResponse{}}
	if _, _, err := CampaignEventsHandler(all)(context.Background(), nil, CampaignEventsInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.eventsReq.CampaignID != 0 {
		t.Fatalf("campaign id = %d, want 0", all.eventsReq.CampaignID)
	}
}

func TestCampaignCountResourceHandler(t *testing.T) {
	client := &fakeLedgerClient{count: 12}
	result, err := CampaignCountResourceHandler(client)(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "campaigns://count"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(result.Contents))
	}
	var payload CampaignCountPayload
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Count != "12" {
		t.Fatalf("count = %q, want 12", payload.Count)
	}

	if _, err := CampaignCountResourceHandler(client)(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "campaigns://other"},
	}); err == nil {
		t.Fatal("expected error for unknown uri")
	}
	if _, err := CampaignCountResourceHandler(nil)(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
