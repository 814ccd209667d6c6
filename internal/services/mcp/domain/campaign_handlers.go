package domain

import (
	"context"
	"fmt"

	"github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/ledger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CampaignCreateTool defines the MCP tool schema for creating a campaign.
func CampaignCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_create",
		Description: "Creates a crowdfunding campaign owned by the bridge identity",
	}
}

// CampaignContributeTool defines the MCP tool schema for pledging to a campaign.
func CampaignContributeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_contribute",
		Description: "Pledges an amount to an ongoing campaign",
	}
}

// CampaignWithdrawTool defines the MCP tool schema for the creator payout.
func CampaignWithdrawTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_withdraw",
		Description: "Pays the raised amount to the creator once the goal is reached; only the creator may call it, once",
	}
}

// CampaignClaimRefundTool defines the MCP tool schema for refunds.
func CampaignClaimRefundTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_claim_refund",
		Description: "Returns the bridge identity's pledge from a campaign that ended without reaching its goal",
	}
}

// CampaignGetTool defines the MCP tool schema for reading a campaign.
func CampaignGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_get",
		Description: "Reads one campaign with its derived phase",
	}
}

// ContributionGetTool defines the MCP tool schema for reading a pledge.
func ContributionGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "contribution_get",
		Description: "Reads the amount an identity currently has pledged to a campaign",
	}
}

// CampaignListTool defines the MCP tool schema for listing campaigns.
func CampaignListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_list",
		Description: "Lists campaigns in creation order with an optional AIP-160 filter",
	}
}

// CampaignEventsTool defines the MCP tool schema for reading the journal.
func CampaignEventsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_events",
		Description: "Reads signed journal events, optionally for one campaign",
	}
}

// CampaignCreateHandler executes a campaign creation request.
func CampaignCreateHandler(client LedgerClient, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[CampaignCreateInput, CampaignMutationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignCreateInput) (*mcp.CallToolResult, CampaignMutationResult, error) {
		target, err := parseAmount("target_amount", input.TargetAmount)
		if err != nil {
			return nil, CampaignMutationResult{}, err
		}
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.CreateCampaign(callContext.RunCtx, &ledger.CreateCampaignRequest{
			Title:        input.Title,
			Description:  input.Description,
			TargetAmount: target,
			DurationDays: input.DurationDays,
		})
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign create failed: %w", err)
		}
		if response == nil || response.Campaign == nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign create response is missing")
		}

		result := mutationResult(response.Campaign, response.Event, nil)
		NotifyResourceUpdates(ctx, notify, CampaignCountResource().URI)
		return textResult("created campaign %s", result.Campaign.ID), result, nil
	}
}

// CampaignContributeHandler executes a contribution request.
func CampaignContributeHandler(client LedgerClient) mcp.ToolHandlerFor[CampaignContributeInput, CampaignMutationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignContributeInput) (*mcp.CallToolResult, CampaignMutationResult, error) {
		campaignID, err := parseCampaignID(input.CampaignID)
		if err != nil {
			return nil, CampaignMutationResult{}, err
		}
		amount, err := parseAmount("amount", input.Amount)
		if err != nil {
			return nil, CampaignMutationResult{}, err
		}
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.Contribute(callContext.RunCtx, &ledger.ContributeRequest{CampaignID: campaignID, Amount: amount})
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign contribute failed: %w", err)
		}
		if response == nil || response.Campaign == nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign contribute response is missing")
		}
		result := mutationResult(response.Campaign, response.Event, nil)
		return textResult("campaign %s raised %s of %s", result.Campaign.ID, result.Campaign.RaisedAmount, result.Campaign.TargetAmount), result, nil
	}
}

// CampaignWithdrawHandler executes a creator withdrawal.
func CampaignWithdrawHandler(client LedgerClient) mcp.ToolHandlerFor[CampaignIDInput, CampaignMutationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignIDInput) (*mcp.CallToolResult, CampaignMutationResult, error) {
		campaignID, err := parseCampaignID(input.CampaignID)
		if err != nil {
			return nil, CampaignMutationResult{}, err
		}
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.Withdraw(callContext.RunCtx, &ledger.WithdrawRequest{CampaignID: campaignID})
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign withdraw failed: %w", err)
		}
		if response == nil || response.Campaign == nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign withdraw response is missing")
		}
		result := mutationResult(response.Campaign, response.Event, response.Receipt)
		return textResult("withdrew %s from campaign %s", result.Campaign.RaisedAmount, result.Campaign.ID), result, nil
	}
}

// CampaignClaimRefundHandler executes a refund claim.
func CampaignClaimRefundHandler(client LedgerClient) mcp.ToolHandlerFor[CampaignIDInput, CampaignMutationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignIDInput) (*mcp.CallToolResult, CampaignMutationResult, error) {
		campaignID, err := parseCampaignID(input.CampaignID)
		if err != nil {
			return nil, CampaignMutationResult{}, err
		}
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.ClaimRefund(callContext.RunCtx, &ledger.ClaimRefundRequest{CampaignID: campaignID})
		if err != nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign claim refund failed: %w", err)
		}
		if response == nil || response.Campaign == nil {
			return nil, CampaignMutationResult{}, fmt.Errorf("campaign claim refund response is missing")
		}
		result := mutationResult(response.Campaign, response.Event, response.Receipt)
		refunded := "0"
		if result.Receipt != nil {
			refunded = result.Receipt.Amount
		}
		return textResult("refunded %s from campaign %s", refunded, result.Campaign.ID), result, nil
	}
}

// CampaignGetHandler reads one campaign.
func CampaignGetHandler(client LedgerClient) mcp.ToolHandlerFor[CampaignIDInput, CampaignGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignIDInput) (*mcp.CallToolResult, CampaignGetResult, error) {
		campaignID, err := parseCampaignID(input.CampaignID)
		if err != nil {
			return nil, CampaignGetResult{}, err
		}
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, CampaignGetResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.GetCampaign(callContext.RunCtx, &ledger.GetCampaignRequest{CampaignID: campaignID})
		if err != nil {
			return nil, CampaignGetResult{}, fmt.Errorf("campaign get failed: %w", err)
		}
		if response == nil || response.Campaign == nil {
			return nil, CampaignGetResult{}, fmt.Errorf("campaign get response is missing")
		}
		result := CampaignGetResult{Campaign: campaignEntry(response.Campaign)}
		return textResult("campaign %s is %s", result.Campaign.ID, result.Campaign.Phase), result, nil
	}
}

// ContributionGetHandler reads one identity's pledge.
func ContributionGetHandler(client LedgerClient) mcp.ToolHandlerFor[ContributionGetInput, ContributionGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ContributionGetInput) (*mcp.CallToolResult, ContributionGetResult, error) {
		campaignID, err := parseCampaignID(input.CampaignID)
		if err != nil {
			return nil, ContributionGetResult{}, err
		}
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, ContributionGetResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.GetContribution(callContext.RunCtx, &ledger.GetContributionRequest{
			CampaignID: campaignID,
			Identity:   input.Identity,
		})
		if err != nil {
			return nil, ContributionGetResult{}, fmt.Errorf("contribution get failed: %w", err)
		}
		if response == nil {
			return nil, ContributionGetResult{}, fmt.Errorf("contribution get response is missing")
		}
		result := ContributionGetResult{
			CampaignID: formatUint(response.CampaignID),
			Identity:   response.Identity,
			Amount:     formatUint(response.Amount),
		}
		return textResult("%s has %s pledged to campaign %s", result.Identity, result.Amount, result.CampaignID), result, nil
	}
}

// CampaignListHandler lists campaigns.
func CampaignListHandler(client LedgerClient) mcp.ToolHandlerFor[CampaignListInput, CampaignListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignListInput) (*mcp.CallToolResult, CampaignListResult, error) {
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, CampaignListResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.ListCampaigns(callContext.RunCtx, &ledger.ListCampaignsRequest{
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
			Filter:    input.Filter,
		})
		if err != nil {
			return nil, CampaignListResult{}, fmt.Errorf("campaign list failed: %w", err)
		}
		if response == nil {
			return nil, CampaignListResult{}, fmt.Errorf("campaign list response is missing")
		}
		result := CampaignListResult{
			Campaigns:     make([]CampaignEntry, 0, len(response.Campaigns)),
			NextPageToken: response.NextPageToken,
		}
		for _, campaign := range response.Campaigns {
			if campaign == nil {
				continue
			}
			result.Campaigns = append(result.Campaigns, campaignEntry(campaign))
		}
		return textResult("%d campaigns", len(result.Campaigns)), result, nil
	}
}

// CampaignEventsHandler reads journal events.
func CampaignEventsHandler(client LedgerClient) mcp.ToolHandlerFor[CampaignEventsInput, CampaignEventsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignEventsInput) (*mcp.CallToolResult, CampaignEventsResult, error) {
		req := &ledger.ListEventsRequest{PageSize: input.PageSize}
		if input.CampaignID != "" {
			campaignID, err := parseCampaignID(input.CampaignID)
			if err != nil {
				return nil, CampaignEventsResult{}, err
			}
			req.CampaignID = campaignID
		}
		if input.AfterSeq != "" {
			afterSeq, err := parseAmount("after_seq", input.AfterSeq)
			if err != nil {
				return nil, CampaignEventsResult{}, err
			}
			req.AfterSeq = afterSeq
		}
		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, CampaignEventsResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.ListEvents(callContext.RunCtx, req)
		if err != nil {
			return nil, CampaignEventsResult{}, fmt.Errorf("campaign events failed: %w", err)
		}
		if response == nil {
			return nil, CampaignEventsResult{}, fmt.Errorf("campaign events response is missing")
		}
		result := CampaignEventsResult{Events: make([]EventEntry, 0, len(response.Events))}
		for _, event := range response.Events {
			if event == nil {
				continue
			}
			result.Events = append(result.Events, eventEntry(event))
		}
		return textResult("%d events", len(result.Events)), result, nil
	}
}

func mutationResult(campaign *ledger.Campaign, event *ledger.Event, receipt *ledger.Receipt) CampaignMutationResult {
	result := CampaignMutationResult{Campaign: campaignEntry(campaign)}
	if event != nil {
		entry := eventEntry(event)
		result.Event = &entry
	}
	if receipt != nil {
		result.Receipt = &ReceiptEntry{
			ID:          receipt.ID,
			Kind:        receipt.Kind,
			Recipient:   receipt.Recipient,
			Amount:      formatUint(receipt.Amount),
			CompletedAt: formatTimestamp(receipt.CompletedAt),
		}
	}
	return result
}

func campaignEntry(campaign *ledger.Campaign) CampaignEntry {
	return CampaignEntry{
		ID:                formatUint(campaign.ID),
		Creator:           campaign.Creator,
		Title:             campaign.Title,
		Description:       campaign.Description,
		TargetAmount:      formatUint(campaign.TargetAmount),
		RaisedAmount:      formatUint(campaign.RaisedAmount),
		Deadline:          formatTimestamp(campaign.Deadline),
		CreatedAt:         formatTimestamp(campaign.CreatedAt),
		Completed:         campaign.Completed,
		Funded:            campaign.Funded,
		ContributorsCount: formatUint(campaign.ContributorsCount),
		Phase:             campaign.Phase,
	}
}

func eventEntry(event *ledger.Event) EventEntry {
	return EventEntry{
		Seq:        formatUint(event.Seq),
		CampaignID: formatUint(event.CampaignID),
		Type:       event.Type,
		Actor:      event.Actor,
		Amount:     formatUint(event.Amount),
		OccurredAt: formatTimestamp(event.OccurredAt),
		ChainHash:  event.ChainHash,
	}
}
