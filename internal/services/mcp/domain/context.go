package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/id"
	"github.com/louisbranch/pledgebank/internal/platform/requestctx"
	"github.com/louisbranch/pledgebank/internal/platform/timeouts"
	"github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/ledger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

// LedgerClient is the subset of the ledger gRPC client used by MCP handlers.
type LedgerClient interface {
	CreateCampaign(ctx context.Context, in *ledger.CreateCampaignRequest, opts ...grpc.CallOption) (*ledger.CreateCampaignResponse, error)
	Contribute(ctx context.Context, in *ledger.ContributeRequest, opts ...grpc.CallOption) (*ledger.ContributeResponse, error)
	Withdraw(ctx context.Context, in *ledger.WithdrawRequest, opts ...grpc.CallOption) (*ledger.WithdrawResponse, error)
	ClaimRefund(ctx context.Context, in *ledger.ClaimRefundRequest, opts ...grpc.CallOption) (*ledger.ClaimRefundResponse, error)
	GetCampaign(ctx context.Context, in *ledger.GetCampaignRequest, opts ...grpc.CallOption) (*ledger.GetCampaignResponse, error)
	GetCampaignCount(ctx context.Context, in *ledger.GetCampaignCountRequest, opts ...grpc.CallOption) (*ledger.GetCampaignCountResponse, error)
	GetContribution(ctx context.Context, in *ledger.GetContributionRequest, opts ...grpc.CallOption) (*ledger.GetContributionResponse, error)
	ListCampaigns(ctx context.Context, in *ledger.ListCampaignsRequest, opts ...grpc.CallOption) (*ledger.ListCampaignsResponse, error)
	ListEvents(ctx context.Context, in *ledger.ListEventsRequest, opts ...grpc.CallOption) (*ledger.ListEventsResponse, error)
}

// ResourceUpdateNotifier tells subscribed MCP clients that a resource changed.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// NotifyResourceUpdates sends one notification per non-empty uri.
func NotifyResourceUpdates(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		notify(ctx, uri)
	}
}

// toolInvocationContext carries the bounded context for one tool call.
type toolInvocationContext struct {
	RunCtx       context.Context
	Cancel       context.CancelFunc
	InvocationID string
}

func newToolInvocationContext(ctx context.Context) (toolInvocationContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	invocationID, err := id.NewID()
	if err != nil {
		return toolInvocationContext{}, err
	}
	runCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	runCtx = requestctx.WithRequestID(runCtx, invocationID)
	return toolInvocationContext{RunCtx: runCtx, Cancel: cancel, InvocationID: invocationID}, nil
}

// parseCampaignID reads a decimal campaign id.
func parseCampaignID(value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("campaign_id is required")
	}
	campaignID, err := strconv.ParseUint(value, 10, 64)
	if err != nil || campaignID == 0 {
		return 0, fmt.Errorf("campaign_id %q is not a positive integer", value)
	}
	return campaignID, nil
}

// parseAmount reads a decimal amount in the smallest currency unit.
func parseAmount(field, value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	amount, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a non-negative integer", field, value)
	}
	return amount, nil
}

func formatUint(value uint64) string {
	return strconv.FormatUint(value, 10)
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

// textResult returns a tool result whose text content summarizes the call.
// Structured output is filled in by the SDK from the typed result.
func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}
