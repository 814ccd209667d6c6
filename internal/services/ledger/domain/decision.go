package domain

import apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"

// PayoutKind distinguishes the two outgoing transfer paths.
type PayoutKind string

const (
	PayoutWithdrawal PayoutKind = "withdrawal"
	PayoutRefund     PayoutKind = "refund"
)

// Payout is the value transfer an accepted command requires before its state
// change may be committed.
type Payout struct {
	Kind      PayoutKind
	Recipient string
	Amount    uint64
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code    apperrors.Code
	Message string
}

// Decision represents the pure outcome of handling a command: either one
// event (and at most one payout) or one rejection.
type Decision struct {
	Events    []Event
	Payout    *Payout
	Rejection *Rejection
}

// Accepted reports whether the command produced events.
func (d Decision) Accepted() bool {
	return d.Rejection == nil && len(d.Events) > 0
}

// Err converts a rejection into a domain error scoped to campaignID.
func (d Decision) Err(campaignID uint64) error {
	if d.Rejection == nil {
		return nil
	}
	return apperrors.ForCampaign(d.Rejection.Code, d.Rejection.Message, campaignID)
}

func accept(evt Event, payout *Payout) Decision {
	return Decision{Events: []Event{evt}, Payout: payout}
}

func reject(code apperrors.Code, message string) Decision {
	return Decision{Rejection: &Rejection{Code: code, Message: message}}
}
