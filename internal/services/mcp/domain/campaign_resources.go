package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/ledger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CampaignCountResource defines the MCP resource for the number of campaigns.
func CampaignCountResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "campaign_count",
		Title:       "Campaign count",
		Description: "Number of campaigns created so far; the next campaign id is count + 1",
		MIMEType:    "application/json",
		URI:         "campaigns://count",
	}
}

// CampaignCountResourceHandler reads the campaign count from the ledger.
func CampaignCountResourceHandler(client LedgerClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("ledger client is not configured")
		}
		uri := CampaignCountResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		if uri != CampaignCountResource().URI {
			return nil, mcp.ResourceNotFoundError(uri)
		}

		callContext, err := newToolInvocationContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate invocation id: %w", err)
		}
		defer callContext.Cancel()

		response, err := client.GetCampaignCount(callContext.RunCtx, &ledger.GetCampaignCountRequest{})
		if err != nil {
			return nil, fmt.Errorf("campaign count failed: %w", err)
		}
		if response == nil {
			return nil, fmt.Errorf("campaign count response is missing")
		}

		payload, err := json.MarshalIndent(CampaignCountPayload{Count: formatUint(response.Count)}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal campaign count: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			},
		}, nil
	}
}
