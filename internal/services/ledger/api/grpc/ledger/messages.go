package ledger

import (
	"encoding/json"
	"time"
)

// Amounts and ids are uint64 and travel as JSON strings so clients without
// 64-bit integers keep full precision.

// Campaign is the public view of one campaign.
type Campaign struct {
	ID                uint64    `json:"id,string"`
	Creator           string    `json:"creator"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	TargetAmount      uint64    `json:"target_amount,string"`
	RaisedAmount      uint64    `json:"raised_amount,string"`
	Deadline          time.Time `json:"deadline"`
	CreatedAt         time.Time `json:"created_at"`
	Completed         bool      `json:"completed"`
	Funded            bool      `json:"funded"`
	ContributorsCount uint64    `json:"contributors_count,string"`
	Phase             string    `json:"phase"`
	Version           int64     `json:"version"`
}

// Event is one journal entry.
type Event struct {
	Seq            uint64          `json:"seq,string"`
	CampaignID     uint64          `json:"campaign_id,string"`
	Type           string          `json:"type"`
	Actor          string          `json:"actor"`
	Amount         uint64          `json:"amount,string"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	EventHash      string          `json:"event_hash"`
	PrevHash       string          `json:"prev_hash,omitempty"`
	ChainHash      string          `json:"chain_hash"`
	Signature      string          `json:"signature"`
	SignatureKeyID string          `json:"signature_key_id"`
}

// Receipt confirms value that left custody.
type Receipt struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	CampaignID  uint64    `json:"campaign_id,string"`
	Recipient   string    `json:"recipient"`
	Amount      uint64    `json:"amount,string"`
	CompletedAt time.Time `json:"completed_at"`
}

type CreateCampaignRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TargetAmount uint64 `json:"target_amount,string"`
	DurationDays uint32 `json:"duration_days"`
}

type CreateCampaignResponse struct {
	Campaign *Campaign `json:"campaign"`
	Event    *Event    `json:"event"`
}

type ContributeRequest struct {
	CampaignID uint64 `json:"campaign_id,string"`
	Amount     uint64 `json:"amount,string"`
}

func (r *ContributeRequest) GetCampaignID() uint64 {
	if r == nil {
		return 0
	}
	return r.CampaignID
}

type ContributeResponse struct {
	Campaign *Campaign `json:"campaign"`
	Event    *Event    `json:"event"`
}

type WithdrawRequest struct {
	CampaignID uint64 `json:"campaign_id,string"`
}

func (r *WithdrawRequest) GetCampaignID() uint64 {
	if r == nil {
		return 0
	}
	return r.CampaignID
}

type WithdrawResponse struct {
	Campaign *Campaign `json:"campaign"`
	Event    *Event    `json:"event"`
	Receipt  *Receipt  `json:"receipt"`
}

type ClaimRefundRequest struct {
	CampaignID uint64 `json:"campaign_id,string"`
}

func (r *ClaimRefundRequest) GetCampaignID() uint64 {
	if r == nil {
		return 0
	}
	return r.CampaignID
}

type ClaimRefundResponse struct {
	Campaign *Campaign `json:"campaign"`
	Event    *Event    `json:"event"`
	Receipt  *Receipt  `json:"receipt"`
}

type GetCampaignRequest struct {
	CampaignID uint64 `json:"campaign_id,string"`
}

func (r *GetCampaignRequest) GetCampaignID() uint64 {
	if r == nil {
		return 0
	}
	return r.CampaignID
}

type GetCampaignResponse struct {
	Campaign *Campaign `json:"campaign"`
}

type GetCampaignCountRequest struct{}

type GetCampaignCountResponse struct {
	Count uint64 `json:"count,string"`
}

// GetContributionRequest reads one identity's contribution. An empty
// Identity reads the caller's own.
type GetContributionRequest struct {
	CampaignID uint64 `json:"campaign_id,string"`
	Identity   string `json:"identity,omitempty"`
}

func (r *GetContributionRequest) GetCampaignID() uint64 {
	if r == nil {
		return 0
	}
	return r.CampaignID
}

type GetContributionResponse struct {
	CampaignID uint64 `json:"campaign_id,string"`
	Identity   string `json:"identity"`
	Amount     uint64 `json:"amount,string"`
}

// ListCampaignsRequest pages campaigns. Filter is an AIP-160 expression over
// creator, funded, completed, target_amount, raised_amount, deadline and phase.
type ListCampaignsRequest struct {
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

type ListCampaignsResponse struct {
	Campaigns     []*Campaign `json:"campaigns"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// ListEventsRequest reads the journal after AfterSeq. A zero CampaignID
// reads every campaign.
type ListEventsRequest struct {
	CampaignID uint64 `json:"campaign_id,string,omitempty"`
	AfterSeq   uint64 `json:"after_seq,string,omitempty"`
	PageSize   int32  `json:"page_size,omitempty"`
}

func (r *ListEventsRequest) GetCampaignID() uint64 {
	if r == nil {
		return 0
	}
	return r.CampaignID
}

type ListEventsResponse struct {
	Events []*Event `json:"events"`
}

type VerifyJournalRequest struct{}

type VerifyJournalResponse struct {
	EventsChecked int    `json:"events_checked"`
	LastSeq       uint64 `json:"last_seq,string"`
}
