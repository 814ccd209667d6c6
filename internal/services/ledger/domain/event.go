package domain

import (
	"encoding/json"
	"time"
)

// EventType names a ledger notification.
type EventType string

const (
	EventCampaignCreated      EventType = "campaign.created"
	EventContributionReceived EventType = "campaign.contribution_received"
	EventFundsWithdrawn       EventType = "campaign.funds_withdrawn"
	EventRefundClaimed        EventType = "campaign.refund_claimed"
)

// Event is one accepted state change. Actor is the identity the event is
// indexed by: creator for creation and withdrawal, contributor otherwise.
type Event struct {
	Type        EventType
	CampaignID  uint64
	Actor       string
	Amount      uint64
	OccurredAt  time.Time
	PayloadJSON []byte
}

// CampaignCreatedPayload carries the new campaign's immutable fields.
type CampaignCreatedPayload struct {
	CampaignID   uint64    `json:"campaign_id"`
	Creator      string    `json:"creator"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	TargetAmount uint64    `json:"target_amount"`
	Deadline     time.Time `json:"deadline"`
	CreatedAt    time.Time `json:"created_at"`
}

// ContributionReceivedPayload records one pledge.
type ContributionReceivedPayload struct {
	CampaignID  uint64 `json:"campaign_id"`
	Contributor string `json:"contributor"`
	Amount      uint64 `json:"amount"`
}

// FundsWithdrawnPayload records the creator payout.
type FundsWithdrawnPayload struct {
	CampaignID uint64 `json:"campaign_id"`
	Creator    string `json:"creator"`
	Amount     uint64 `json:"amount"`
}

// RefundClaimedPayload records one contributor refund.
type RefundClaimedPayload struct {
	CampaignID  uint64 `json:"campaign_id"`
	Contributor string `json:"contributor"`
	Amount      uint64 `json:"amount"`
}

func newEvent(eventType EventType, campaignID uint64, actor string, amount uint64, at time.Time, payload any) Event {
	payloadJSON, _ := json.Marshal(payload)
	return Event{
		Type:        eventType,
		CampaignID:  campaignID,
		Actor:       actor,
		Amount:      amount,
		OccurredAt:  at,
		PayloadJSON: payloadJSON,
	}
}
