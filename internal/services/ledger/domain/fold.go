package domain

import "encoding/json"

// Fold applies an accepted event to state and returns the new state. The
// input state's contribution map is not modified.
func Fold(state State, evt Event) State {
	next := State{Campaign: state.Campaign, Contributions: make(map[string]uint64, len(state.Contributions)+1)}
	for identity, amount := range state.Contributions {
		next.Contributions[identity] = amount
	}

	switch evt.Type {
	case EventCampaignCreated:
		var payload CampaignCreatedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		next.Campaign = Campaign{
			ID:           payload.CampaignID,
			Creator:      payload.Creator,
			Title:        payload.Title,
			Description:  payload.Description,
			TargetAmount: payload.TargetAmount,
			Deadline:     payload.Deadline.UTC(),
			CreatedAt:    payload.CreatedAt.UTC(),
		}
	case EventContributionReceived:
		var payload ContributionReceivedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		prior := next.Contributions[payload.Contributor]
		if prior == 0 {
			next.Campaign.ContributorsCount++
		}
		next.Contributions[payload.Contributor] = prior + payload.Amount
		next.Campaign.RaisedAmount += payload.Amount
		if next.Campaign.GoalReached() {
			next.Campaign.Funded = true
		}
	case EventFundsWithdrawn:
		next.Campaign.Completed = true
	case EventRefundClaimed:
		var payload RefundClaimedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		// raisedAmount keeps the lifetime total; only the entry is cleared.
		next.Contributions[payload.Contributor] = 0
	default:
		return state
	}
	next.Campaign.Version++
	return next
}

// Replay folds events in order, grouping state by campaign id.
func Replay(events []Event) map[uint64]State {
	states := make(map[uint64]State)
	for _, evt := range events {
		states[evt.CampaignID] = Fold(states[evt.CampaignID], evt)
	}
	return states
}
