package domain

import "time"

const (
	// MaxTitleLength bounds campaign titles in runes.
	MaxTitleLength = 200
	// MaxDescriptionLength bounds campaign descriptions in runes.
	MaxDescriptionLength = 10000
	// MaxDurationDays keeps deadlines representable.
	MaxDurationDays = 36500
)

// Campaign is one funding effort. Creator, title, description, target and
// deadline never change after creation.
type Campaign struct {
	ID                uint64
	Creator           string
	Title             string
	Description       string
	TargetAmount      uint64
	RaisedAmount      uint64
	Deadline          time.Time
	CreatedAt         time.Time
	Completed         bool
	Funded            bool
	ContributorsCount uint64
	// Version counts applied events; storage uses it for conditional writes.
	Version int64
}

// Exists reports whether the campaign was created.
func (c Campaign) Exists() bool {
	return c.ID != 0
}

// GoalReached reports whether raised funds meet the target.
func (c Campaign) GoalReached() bool {
	return c.RaisedAmount >= c.TargetAmount
}

// Ended reports whether the deadline has passed at now.
func (c Campaign) Ended(now time.Time) bool {
	return !now.Before(c.Deadline)
}

// Phase is the campaign lifecycle position derived from stored fields and the
// current time. It is never persisted.
type Phase string

const (
	PhaseOngoing            Phase = "ongoing"
	PhaseSucceededUnclaimed Phase = "succeeded_unclaimed"
	PhasePaidOut            Phase = "paid_out"
	PhaseFailed             Phase = "failed"
)

// PhaseAt derives the campaign phase at now. A funded campaign is reported as
// succeeded even before its deadline because withdrawal is already allowed.
func (c Campaign) PhaseAt(now time.Time) Phase {
	switch {
	case c.Completed:
		return PhasePaidOut
	case c.Funded:
		return PhaseSucceededUnclaimed
	case !c.Ended(now):
		return PhaseOngoing
	default:
		return PhaseFailed
	}
}

// ParsePhase validates a phase label.
func ParsePhase(value string) (Phase, bool) {
	switch Phase(value) {
	case PhaseOngoing, PhaseSucceededUnclaimed, PhasePaidOut, PhaseFailed:
		return Phase(value), true
	default:
		return "", false
	}
}

// State is the slice of ledger state a decider needs: the campaign and the
// contribution entries loaded for the identities the command touches.
type State struct {
	Campaign      Campaign
	Contributions map[string]uint64
}

// ContributionOf returns the recorded contribution for identity.
func (s State) ContributionOf(identity string) uint64 {
	return s.Contributions[identity]
}
