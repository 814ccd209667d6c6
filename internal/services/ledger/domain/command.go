package domain

// CreateCampaign opens a new campaign owned by Creator.
type CreateCampaign struct {
	Creator      string
	Title        string
	Description  string
	TargetAmount uint64
	DurationDays uint32
}

// Contribute pledges Amount from Contributor to a campaign.
type Contribute struct {
	CampaignID  uint64
	Contributor string
	Amount      uint64
}

// Withdraw pays the raised amount out to the campaign creator.
type Withdraw struct {
	CampaignID uint64
	Caller     string
}

// ClaimRefund returns the caller's contribution from a failed campaign.
type ClaimRefund struct {
	CampaignID uint64
	Caller     string
}
