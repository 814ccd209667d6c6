package domain

// CampaignCreateInput represents the MCP tool input for campaign creation.
type CampaignCreateInput struct {
	Title        string `json:"title" jsonschema:"campaign title"`
	Description  string `json:"description" jsonschema:"campaign description"`
	TargetAmount string `json:"target_amount" jsonschema:"funding goal in the smallest currency unit, decimal string"`
	DurationDays uint32 `json:"duration_days" jsonschema:"days from now until the deadline (1 to 365)"`
}

// CampaignContributeInput represents the MCP tool input for a contribution.
type CampaignContributeInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
	Amount     string `json:"amount" jsonschema:"amount to pledge in the smallest currency unit, decimal string"`
}

// CampaignIDInput represents MCP tool input that only names a campaign.
type CampaignIDInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
}

// ContributionGetInput represents the MCP tool input for reading a pledge.
type ContributionGetInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
	Identity   string `json:"identity,omitempty" jsonschema:"contributor identity; defaults to the bridge's own identity"`
}

// CampaignListInput represents the MCP tool input for listing campaigns.
type CampaignListInput struct {
	PageSize  int32  `json:"page_size,omitempty" jsonschema:"maximum campaigns to return (default 20, max 100)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous call"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over creator, funded, completed, target_amount, raised_amount, deadline and phase"`
}

// CampaignEventsInput represents the MCP tool input for reading the journal.
type CampaignEventsInput struct {
	CampaignID string `json:"campaign_id,omitempty" jsonschema:"campaign identifier; empty reads every campaign"`
	AfterSeq   string `json:"after_seq,omitempty" jsonschema:"only events after this journal sequence"`
	PageSize   int32  `json:"page_size,omitempty" jsonschema:"maximum events to return (default 50, max 500)"`
}

// CampaignEntry is the flat MCP view of a campaign.
type CampaignEntry struct {
	ID                string `json:"id" jsonschema:"campaign identifier"`
	Creator           string `json:"creator" jsonschema:"creator identity"`
	Title             string `json:"title" jsonschema:"campaign title"`
	Description       string `json:"description" jsonschema:"campaign description"`
	TargetAmount      string `json:"target_amount" jsonschema:"funding goal"`
	RaisedAmount      string `json:"raised_amount" jsonschema:"total pledged, never reduced by refunds"`
	Deadline          string `json:"deadline" jsonschema:"RFC3339 deadline"`
	CreatedAt         string `json:"created_at" jsonschema:"RFC3339 creation time"`
	Completed         bool   `json:"completed" jsonschema:"creator has withdrawn"`
	Funded            bool   `json:"funded" jsonschema:"goal reached"`
	ContributorsCount string `json:"contributors_count" jsonschema:"distinct contributors"`
	Phase             string `json:"phase" jsonschema:"ongoing, succeeded_unclaimed, paid_out or failed"`
}

// EventEntry is the flat MCP view of a journal event.
type EventEntry struct {
	Seq        string `json:"seq" jsonschema:"journal sequence"`
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
	Type       string `json:"type" jsonschema:"event type"`
	Actor      string `json:"actor" jsonschema:"acting identity"`
	Amount     string `json:"amount" jsonschema:"amount moved by the event"`
	OccurredAt string `json:"occurred_at" jsonschema:"RFC3339 time of the event"`
	ChainHash  string `json:"chain_hash" jsonschema:"hash chaining this event to the previous one"`
}

// ReceiptEntry is the flat MCP view of a transfer receipt.
type ReceiptEntry struct {
	ID          string `json:"id" jsonschema:"transfer identifier"`
	Kind        string `json:"kind" jsonschema:"withdrawal or refund"`
	Recipient   string `json:"recipient" jsonschema:"identity paid"`
	Amount      string `json:"amount" jsonschema:"amount paid"`
	CompletedAt string `json:"completed_at" jsonschema:"RFC3339 completion time"`
}

// CampaignMutationResult represents the MCP tool output for any state change.
type CampaignMutationResult struct {
	Campaign CampaignEntry `json:"campaign" jsonschema:"campaign after the change"`
	Event    *EventEntry   `json:"event,omitempty" jsonschema:"journal entry recorded"`
	Receipt  *ReceiptEntry `json:"receipt,omitempty" jsonschema:"transfer receipt, for withdrawals and refunds"`
}

// CampaignGetResult represents the MCP tool output for reading a campaign.
type CampaignGetResult struct {
	Campaign CampaignEntry `json:"campaign" jsonschema:"campaign"`
}

// ContributionGetResult represents the MCP tool output for reading a pledge.
type ContributionGetResult struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
	Identity   string `json:"identity" jsonschema:"contributor identity"`
	Amount     string `json:"amount" jsonschema:"amount still held for this contributor"`
}

// CampaignListResult represents the MCP tool output for listing campaigns.
type CampaignListResult struct {
	Campaigns     []CampaignEntry `json:"campaigns" jsonschema:"campaigns on this page"`
	NextPageToken string          `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// CampaignEventsResult represents the MCP tool output for reading the journal.
type CampaignEventsResult struct {
	Events []EventEntry `json:"events" jsonschema:"journal entries in sequence order"`
}

// CampaignCountPayload represents the MCP resource payload for the campaign count.
type CampaignCountPayload struct {
	Count string `json:"count"`
}
