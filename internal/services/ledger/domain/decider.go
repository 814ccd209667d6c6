package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"
)

// DecideCreate opens campaign count+1. Any identity may create a campaign.
func DecideCreate(count uint64, cmd CreateCampaign, now time.Time) Decision {
	if strings.TrimSpace(cmd.Creator) == "" {
		return reject(apperrors.CodeIdentityMissing, "creator identity is required")
	}
	if cmd.TargetAmount == 0 {
		return reject(apperrors.CodeCampaignInvalidTarget, "target amount must be positive")
	}
	if cmd.DurationDays == 0 || cmd.DurationDays > MaxDurationDays {
		return reject(apperrors.CodeCampaignInvalidDuration, "duration days out of range")
	}
	if utf8.RuneCountInString(cmd.Title) > MaxTitleLength {
		return reject(apperrors.CodeCampaignTitleTooLong, "title exceeds maximum length")
	}
	if utf8.RuneCountInString(cmd.Description) > MaxDescriptionLength {
		return reject(apperrors.CodeCampaignDescriptionTooLong, "description exceeds maximum length")
	}
	if count == ^uint64(0) {
		return reject(apperrors.CodeAmountOverflow, "campaign identifiers exhausted")
	}

	id := count + 1
	now = now.UTC()
	deadline := now.Add(time.Duration(cmd.DurationDays) * 24 * time.Hour)
	payload := CampaignCreatedPayload{
		CampaignID:   id,
		Creator:      cmd.Creator,
		Title:        cmd.Title,
		Description:  cmd.Description,
		TargetAmount: cmd.TargetAmount,
		Deadline:     deadline,
		CreatedAt:    now,
	}
	return accept(newEvent(EventCampaignCreated, id, cmd.Creator, cmd.TargetAmount, now, payload), nil)
}

// DecideContribute records a pledge while the campaign is open.
func DecideContribute(state State, cmd Contribute, now time.Time) Decision {
	c := state.Campaign
	if !c.Exists() {
		return reject(apperrors.CodeCampaignNotFound, "campaign not found")
	}
	if strings.TrimSpace(cmd.Contributor) == "" {
		return reject(apperrors.CodeIdentityMissing, "contributor identity is required")
	}
	if c.Ended(now) {
		return reject(apperrors.CodeCampaignEnded, "campaign deadline has passed")
	}
	if c.Completed {
		return reject(apperrors.CodeCampaignAlreadyCompleted, "campaign is completed")
	}
	if cmd.Amount == 0 {
		return reject(apperrors.CodeContributionZero, "contribution must be positive")
	}
	if _, ok := addAmount(c.RaisedAmount, cmd.Amount); !ok {
		return reject(apperrors.CodeAmountOverflow, "raised amount would overflow")
	}
	if _, ok := addAmount(state.ContributionOf(cmd.Contributor), cmd.Amount); !ok {
		return reject(apperrors.CodeAmountOverflow, "contribution would overflow")
	}

	payload := ContributionReceivedPayload{
		CampaignID:  c.ID,
		Contributor: cmd.Contributor,
		Amount:      cmd.Amount,
	}
	return accept(newEvent(EventContributionReceived, c.ID, cmd.Contributor, cmd.Amount, now.UTC(), payload), nil)
}

// DecideWithdraw pays the whole raised amount to the creator once the goal is
// reached. The deadline does not matter: a funded campaign may be withdrawn
// before it ends.
func DecideWithdraw(state State, cmd Withdraw, now time.Time) Decision {
	c := state.Campaign
	if !c.Exists() {
		return reject(apperrors.CodeCampaignNotFound, "campaign not found")
	}
	if strings.TrimSpace(cmd.Caller) == "" {
		return reject(apperrors.CodeIdentityMissing, "caller identity is required")
	}
	if cmd.Caller != c.Creator {
		return reject(apperrors.CodeCampaignNotCreator, "only the creator may withdraw")
	}
	if !c.GoalReached() {
		return reject(apperrors.CodeCampaignGoalNotReached, "funding goal not reached")
	}
	if c.Completed {
		return reject(apperrors.CodeCampaignAlreadyWithdrawn, "funds already withdrawn")
	}

	payload := FundsWithdrawnPayload{
		CampaignID: c.ID,
		Creator:    c.Creator,
		Amount:     c.RaisedAmount,
	}
	payout := &Payout{Kind: PayoutWithdrawal, Recipient: c.Creator, Amount: c.RaisedAmount}
	return accept(newEvent(EventFundsWithdrawn, c.ID, c.Creator, c.RaisedAmount, now.UTC(), payload), payout)
}

// DecideClaimRefund returns the caller's full contribution from a campaign
// that ended without reaching its goal.
func DecideClaimRefund(state State, cmd ClaimRefund, now time.Time) Decision {
	c := state.Campaign
	if !c.Exists() {
		return reject(apperrors.CodeCampaignNotFound, "campaign not found")
	}
	if strings.TrimSpace(cmd.Caller) == "" {
		return reject(apperrors.CodeIdentityMissing, "caller identity is required")
	}
	if !c.Ended(now) {
		return reject(apperrors.CodeCampaignStillOpen, "campaign deadline has not passed")
	}
	if c.GoalReached() {
		return reject(apperrors.CodeCampaignWasSuccessful, "campaign reached its goal")
	}
	if c.Completed {
		return reject(apperrors.CodeCampaignAlreadyCompleted, "campaign is completed")
	}
	amount := state.ContributionOf(cmd.Caller)
	if amount == 0 {
		return reject(apperrors.CodeRefundNoContribution, "no contribution to refund")
	}

	payload := RefundClaimedPayload{
		CampaignID:  c.ID,
		Contributor: cmd.Caller,
		Amount:      amount,
	}
	payout := &Payout{Kind: PayoutRefund, Recipient: cmd.Caller, Amount: amount}
	return accept(newEvent(EventRefundClaimed, c.ID, cmd.Caller, amount, now.UTC(), payload), payout)
}
