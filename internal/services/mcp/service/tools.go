package service

import (
	"github.com/louisbranch/pledgebank/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerCampaignTools installs every campaign tool. Mutating tools that
// change the campaign count notify subscribers of the count resource.
func registerCampaignTools(server *mcp.Server, client domain.LedgerClient, notify domain.ResourceUpdateNotifier) {
	mcp.AddTool(server, domain.CampaignCreateTool(), domain.CampaignCreateHandler(client, notify))
	mcp.AddTool(server, domain.CampaignContributeTool(), domain.CampaignContributeHandler(client))
	mcp.AddTool(server, domain.CampaignWithdrawTool(), domain.CampaignWithdrawHandler(client))
	mcp.AddTool(server, domain.CampaignClaimRefundTool(), domain.CampaignClaimRefundHandler(client))

	mcp.AddTool(server, domain.CampaignGetTool(), domain.CampaignGetHandler(client))
	mcp.AddTool(server, domain.ContributionGetTool(), domain.ContributionGetHandler(client))
	mcp.AddTool(server, domain.CampaignListTool(), domain.CampaignListHandler(client))
	mcp.AddTool(server, domain.CampaignEventsTool(), domain.CampaignEventsHandler(client))
}

func registerCampaignResources(server *mcp.Server, client domain.LedgerClient) {
	server.AddResource(domain.CampaignCountResource(), domain.CampaignCountResourceHandler(client))
}
