package domain

import (
	"math"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"
)

var t0 = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

func mustAccept(t *testing.T, d Decision) Event {
	t.Helper()
	if !d.Accepted() {
		t.Fatalf("expected accepted decision, got rejection %+v", d.Rejection)
	}
	if len(d.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(d.Events))
	}
	return d.Events[0]
}

func assertRejected(t *testing.T, d Decision, code apperrors.Code) {
	t.Helper()
	if d.Rejection == nil {
		t.Fatalf("expected rejection %s, got accepted %+v", code, d.Events)
	}
	if d.Rejection.Code != code {
		t.Fatalf("rejection code = %s, want %s", d.Rejection.Code, code)
	}
	if len(d.Events) != 0 || d.Payout != nil {
		t.Fatal("rejected decision must not carry events or payouts")
	}
}

func created(t *testing.T, target uint64, days uint32) State {
	t.Helper()
	evt := mustAccept(t, DecideCreate(0, CreateCampaign{
		Creator: "creator", Title: "Solar", Description: "Panels", TargetAmount: target, DurationDays: days,
	}, t0))
	return Fold(State{}, evt)
}

func contribute(t *testing.T, state State, who string, amount uint64, at time.Time) State {
	t.Helper()
	evt := mustAccept(t, DecideContribute(state, Contribute{CampaignID: state.Campaign.ID, Contributor: who, Amount: amount}, at))
	return Fold(state, evt)
}

func TestDecideCreate(t *testing.T) {
	d := DecideCreate(4, CreateCampaign{Creator: "alice", Title: "T", TargetAmount: 100, DurationDays: 1}, t0)
	evt := mustAccept(t, d)
	if evt.CampaignID != 5 {
		t.Fatalf("campaign id = %d, want 5", evt.CampaignID)
	}
	if evt.Type != EventCampaignCreated || evt.Actor != "alice" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if d.Payout != nil {
		t.Fatal("create must not pay out")
	}

	state := Fold(State{}, evt)
	c := state.Campaign
	if c.RaisedAmount != 0 || c.Funded || c.Completed || c.ContributorsCount != 0 {
		t.Fatalf("unexpected initial accounting %+v", c)
	}
	if !c.Deadline.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("deadline = %v, want %v", c.Deadline, t0.Add(24*time.Hour))
	}
	if c.Version != 1 {
		t.Fatalf("version = %d, want 1", c.Version)
	}
}

func TestDecideCreateRejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  CreateCampaign
		code apperrors.Code
	}{
		{"zero target", CreateCampaign{Creator: "a", TargetAmount: 0, DurationDays: 1}, apperrors.CodeCampaignInvalidTarget},
		{"zero duration", CreateCampaign{Creator: "a", TargetAmount: 1, DurationDays: 0}, apperrors.CodeCampaignInvalidDuration},
		{"duration too long", CreateCampaign{Creator: "a", TargetAmount: 1, DurationDays: MaxDurationDays + 1}, apperrors.CodeCampaignInvalidDuration},
		{"title too long", CreateCampaign{Creator: "a", TargetAmount: 1, DurationDays: 1, Title: strings.Repeat("é", MaxTitleLength+1)}, apperrors.CodeCampaignTitleTooLong},
		{"description too long", CreateCampaign{Creator: "a", TargetAmount: 1, DurationDays: 1, Description: strings.Repeat("x", MaxDescriptionLength+1)}, apperrors.CodeCampaignDescriptionTooLong},
		{"no creator", CreateCampaign{TargetAmount: 1, DurationDays: 1}, apperrors.CodeIdentityMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRejected(t, DecideCreate(0, tt.cmd, t0), tt.code)
		})
	}
}

func TestDecideCreateAcceptsMaximumLengths(t *testing.T) {
	mustAccept(t, DecideCreate(0, CreateCampaign{
		Creator:      "a",
		Title:        strings.Repeat("é", MaxTitleLength),
		TargetAmount: 1,
		DurationDays: MaxDurationDays,
	}, t0))
}

func TestDecideContributeRejectionOrder(t *testing.T) {
	open := created(t, 100, 1)
	afterDeadline := t0.Add(24 * time.Hour)

	completed := contribute(t, open, "bob", 100, t0)
	completed = Fold(completed, mustAccept(t, DecideWithdraw(completed, Withdraw{CampaignID: 1, Caller: "creator"}, t0)))

	tests := []struct {
		name  string
		state State
		cmd   Contribute
		at    time.Time
		code  apperrors.Code
	}{
		{"missing campaign", State{}, Contribute{CampaignID: 9, Contributor: "bob", Amount: 1}, t0, apperrors.CodeCampaignNotFound},
		{"ended beats zero", open, Contribute{CampaignID: 1, Contributor: "bob", Amount: 0}, afterDeadline, apperrors.CodeCampaignEnded},
		{"completed beats zero", completed, Contribute{CampaignID: 1, Contributor: "bob", Amount: 0}, t0, apperrors.CodeCampaignAlreadyCompleted},
		{"zero amount", open, Contribute{CampaignID: 1, Contributor: "bob", Amount: 0}, t0, apperrors.CodeContributionZero},
		{"no identity", open, Contribute{CampaignID: 1, Amount: 1}, t0, apperrors.CodeIdentityMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRejected(t, DecideContribute(tt.state, tt.cmd, tt.at), tt.code)
		})
	}
}

func TestDecideContributeOverflow(t *testing.T) {
	state := created(t, math.MaxUint64, 1)
	state = contribute(t, state, "bob", math.MaxUint64-1, t0)
	assertRejected(t, DecideContribute(state, Contribute{CampaignID: 1, Contributor: "carol", Amount: 2}, t0), apperrors.CodeAmountOverflow)

	state = contribute(t, state, "carol", 1, t0)
	if state.Campaign.RaisedAmount != math.MaxUint64 || !state.Campaign.Funded {
		t.Fatalf("expected raised to reach max and fund, got %+v", state.Campaign)
	}
}

func TestContributionAccounting(t *testing.T) {
	state := created(t, 100, 3)
	pledges := []struct {
		who    string
		amount uint64
	}{
		{"bob", 10}, {"carol", 25}, {"bob", 5}, {"dave", 1}, {"carol", 9},
	}
	var sum uint64
	distinct := map[string]bool{}
	for _, p := range pledges {
		state = contribute(t, state, p.who, p.amount, t0.Add(time.Hour))
		sum += p.amount
		distinct[p.who] = true
		if state.Campaign.RaisedAmount != sum {
			t.Fatalf("raised = %d, want %d", state.Campaign.RaisedAmount, sum)
		}
		if state.Campaign.ContributorsCount != uint64(len(distinct)) {
			t.Fatalf("contributors = %d, want %d", state.Campaign.ContributorsCount, len(distinct))
		}
	}
	if state.ContributionOf("bob") != 15 || state.ContributionOf("carol") != 34 {
		t.Fatalf("unexpected entries %v", state.Contributions)
	}
	if state.Campaign.Funded {
		t.Fatal("campaign below target must not be funded")
	}
}

func TestScenarioAFundedByTwoContributions(t *testing.T) {
	state := created(t, 100, 1)
	state = contribute(t, state, "bob", 60, t0)
	state = contribute(t, state, "bob", 40, t0)
	if !state.Campaign.Funded || state.Campaign.RaisedAmount != 100 || state.Campaign.ContributorsCount != 1 {
		t.Fatalf("same contributor: %+v", state.Campaign)
	}

	state = created(t, 100, 1)
	state = contribute(t, state, "bob", 60, t0)
	state = contribute(t, state, "carol", 40, t0)
	if !state.Campaign.Funded || state.Campaign.ContributorsCount != 2 {
		t.Fatalf("distinct contributors: %+v", state.Campaign)
	}
}

func TestOverfundingAllowedUntilDeadline(t *testing.T) {
	state := created(t, 100, 1)
	state = contribute(t, state, "bob", 100, t0)
	state = contribute(t, state, "carol", 50, t0.Add(23*time.Hour))
	if state.Campaign.RaisedAmount != 150 || !state.Campaign.Funded {
		t.Fatalf("expected over-funding, got %+v", state.Campaign)
	}

	d := DecideWithdraw(state, Withdraw{CampaignID: 1, Caller: "creator"}, t0)
	mustAccept(t, d)
	if d.Payout == nil || d.Payout.Amount != 150 || d.Payout.Recipient != "creator" || d.Payout.Kind != PayoutWithdrawal {
		t.Fatalf("unexpected payout %+v", d.Payout)
	}
}

func TestScenarioBWithdrawBeforeDeadline(t *testing.T) {
	state := created(t, 100, 30)
	state = contribute(t, state, "bob", 100, t0)

	state = Fold(state, mustAccept(t, DecideWithdraw(state, Withdraw{CampaignID: 1, Caller: "creator"}, t0.Add(time.Minute))))
	if !state.Campaign.Completed {
		t.Fatal("expected completed after withdraw")
	}
	assertRejected(t, DecideWithdraw(state, Withdraw{CampaignID: 1, Caller: "creator"}, t0.Add(time.Hour)), apperrors.CodeCampaignAlreadyWithdrawn)
}

func TestScenarioCRefundAfterFailedDeadline(t *testing.T) {
	state := created(t, 100, 1)
	state = contribute(t, state, "bob", 50, t0)
	after := t0.Add(25 * time.Hour)

	d := DecideClaimRefund(state, ClaimRefund{CampaignID: 1, Caller: "bob"}, after)
	state = Fold(state, mustAccept(t, d))
	if d.Payout == nil || d.Payout.Amount != 50 || d.Payout.Recipient != "bob" || d.Payout.Kind != PayoutRefund {
		t.Fatalf("unexpected payout %+v", d.Payout)
	}
	if state.ContributionOf("bob") != 0 {
		t.Fatal("expected entry zeroed")
	}
	if state.Campaign.RaisedAmount != 50 {
		t.Fatalf("raised amount must keep lifetime total, got %d", state.Campaign.RaisedAmount)
	}
	if state.Campaign.ContributorsCount != 1 {
		t.Fatalf("contributors count must not decrement, got %d", state.Campaign.ContributorsCount)
	}
	assertRejected(t, DecideClaimRefund(state, ClaimRefund{CampaignID: 1, Caller: "bob"}, after), apperrors.CodeRefundNoContribution)
}

func TestScenarioDContributeAfterDeadline(t *testing.T) {
	state := created(t, 100, 1)
	state = contribute(t, state, "bob", 100, t0)
	for _, amount := range []uint64{0, 1, 1000} {
		assertRejected(t, DecideContribute(state, Contribute{CampaignID: 1, Contributor: "carol", Amount: amount}, t0.Add(24*time.Hour)), apperrors.CodeCampaignEnded)
	}
}

func TestScenarioENonCreatorWithdraw(t *testing.T) {
	state := created(t, 100, 1)
	state = contribute(t, state, "bob", 100, t0)
	assertRejected(t, DecideWithdraw(state, Withdraw{CampaignID: 1, Caller: "bob"}, t0), apperrors.CodeCampaignNotCreator)
}

func TestDecideWithdrawRejectionOrder(t *testing.T) {
	unfunded := created(t, 100, 1)
	tests := []struct {
		name  string
		state State
		cmd   Withdraw
		at    time.Time
		code  apperrors.Code
	}{
		{"missing", State{}, Withdraw{CampaignID: 3, Caller: "creator"}, t0, apperrors.CodeCampaignNotFound},
		{"not creator beats goal", unfunded, Withdraw{CampaignID: 1, Caller: "bob"}, t0, apperrors.CodeCampaignNotCreator},
		{"goal not reached before deadline", unfunded, Withdraw{CampaignID: 1, Caller: "creator"}, t0, apperrors.CodeCampaignGoalNotReached},
		{"goal not reached after deadline", unfunded, Withdraw{CampaignID: 1, Caller: "creator"}, t0.Add(48 * time.Hour), apperrors.CodeCampaignGoalNotReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRejected(t, DecideWithdraw(tt.state, tt.cmd, tt.at), tt.code)
		})
	}
}

func TestDecideClaimRefundRejectionOrder(t *testing.T) {
	failed := contribute(t, created(t, 100, 1), "bob", 10, t0)
	funded := contribute(t, created(t, 100, 1), "bob", 100, t0)
	after := t0.Add(24 * time.Hour)

	// Completed with the goal unmet is not reachable through deciders; build
	// it directly to pin the check order.
	completedUnmet := failed
	completedUnmet.Campaign.Completed = true

	tests := []struct {
		name  string
		state State
		cmd   ClaimRefund
		at    time.Time
		code  apperrors.Code
	}{
		{"missing", State{}, ClaimRefund{CampaignID: 2, Caller: "bob"}, after, apperrors.CodeCampaignNotFound},
		{"still open", failed, ClaimRefund{CampaignID: 1, Caller: "bob"}, t0, apperrors.CodeCampaignStillOpen},
		{"still open beats successful", funded, ClaimRefund{CampaignID: 1, Caller: "bob"}, t0, apperrors.CodeCampaignStillOpen},
		{"successful", funded, ClaimRefund{CampaignID: 1, Caller: "bob"}, after, apperrors.CodeCampaignWasSuccessful},
		{"completed", completedUnmet, ClaimRefund{CampaignID: 1, Caller: "bob"}, after, apperrors.CodeCampaignAlreadyCompleted},
		{"no contribution", failed, ClaimRefund{CampaignID: 1, Caller: "carol"}, after, apperrors.CodeRefundNoContribution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRejected(t, DecideClaimRefund(tt.state, tt.cmd, tt.at), tt.code)
		})
	}
}

func TestFundedIsSticky(t *testing.T) {
	state := created(t, 50, 1)
	state = contribute(t, state, "bob", 50, t0)
	state = Fold(state, mustAccept(t, DecideWithdraw(state, Withdraw{CampaignID: 1, Caller: "creator"}, t0)))
	if !state.Campaign.Funded {
		t.Fatal("funded must stay true after withdrawal")
	}
	assertRejected(t, DecideClaimRefund(state, ClaimRefund{CampaignID: 1, Caller: "bob"}, t0.Add(48*time.Hour)), apperrors.CodeCampaignWasSuccessful)
}

func TestImmutableFieldsSurviveEveryEvent(t *testing.T) {
	state := created(t, 100, 1)
	orig := state.Campaign
	state = contribute(t, state, "bob", 40, t0)
	state = Fold(state, mustAccept(t, DecideClaimRefund(state, ClaimRefund{CampaignID: 1, Caller: "bob"}, t0.Add(24*time.Hour))))
	c := state.Campaign
	if c.ID != orig.ID || c.Creator != orig.Creator || c.Title != orig.Title || c.TargetAmount != orig.TargetAmount || !c.Deadline.Equal(orig.Deadline) {
		t.Fatalf("immutable fields changed: %+v vs %+v", c, orig)
	}
}

func TestDecisionErrCarriesCampaignID(t *testing.T) {
	d := DecideContribute(created(t, 1, 1), Contribute{CampaignID: 1, Contributor: "bob"}, t0)
	err := d.Err(1)
	var domainErr *apperrors.Error
	if de, ok := err.(*apperrors.Error); ok {
		domainErr = de
	}
	if domainErr == nil || domainErr.Code != apperrors.CodeContributionZero {
		t.Fatalf("unexpected error %v", err)
	}
	if domainErr.Metadata[apperrors.MetadataCampaignID] != "1" {
		t.Fatalf("expected campaign id metadata, got %v", domainErr.Metadata)
	}
	if (Decision{}).Err(1) != nil {
		t.Fatal("accepted decision must have nil error")
	}
}
