// Package transfer defines the value transfer contract the ledger uses to pay
// out custody.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
)

var (
	// ErrAccountFrozen reports a recipient that cannot receive value.
	ErrAccountFrozen = errors.New("recipient account is frozen")
	// ErrInstructionMismatch reports a reused instruction id whose amount or
	// recipient differs from the recorded transfer.
	ErrInstructionMismatch = errors.New("instruction id reused with different terms")
	// ErrNotFound reports an instruction id with no recorded transfer.
	ErrNotFound = errors.New("transfer not found")
)

// Instruction asks the transferrer to move Amount out of custody to
// Recipient. ID is deterministic per payout so a retried instruction is
// applied at most once.
type Instruction struct {
	ID         string
	Kind       domain.PayoutKind
	CampaignID uint64
	Recipient  string
	Amount     uint64
}

// Receipt confirms a completed transfer.
type Receipt struct {
	ID          string
	Kind        domain.PayoutKind
	CampaignID  uint64
	Recipient   string
	Amount      uint64
	CompletedAt time.Time
}

// Transferrer moves value out of ledger custody and reports what it already
// moved.
type Transferrer interface {
	Transfer(ctx context.Context, instruction Instruction) (Receipt, error)
	// GetTransfer returns the recorded transfer for id or ErrNotFound.
	GetTransfer(ctx context.Context, id string) (Receipt, error)
}

// InstructionFor builds the instruction for a decided payout.
func InstructionFor(campaignID uint64, payout domain.Payout) Instruction {
	return Instruction{
		ID:         InstructionID(payout.Kind, campaignID, payout.Recipient),
		Kind:       payout.Kind,
		CampaignID: campaignID,
		Recipient:  payout.Recipient,
		Amount:     payout.Amount,
	}
}

// InstructionID names a payout. A campaign is withdrawn at most once and each
// contributor is refunded at most once, so these ids are unique per payout.
func InstructionID(kind domain.PayoutKind, campaignID uint64, recipient string) string {
	id := strconv.FormatUint(campaignID, 10)
	if kind == domain.PayoutWithdrawal {
		return string(kind) + ":" + id
	}
	return string(kind) + ":" + id + ":" + recipient
}

// InstallmentID names the n-th transfer settling the payout with base id.
// The first installment uses the base id itself.
func InstallmentID(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "#" + strconv.Itoa(n)
}

// Settle pays out whatever part of ins has not been recorded yet. A payout
// may already be partly settled when an earlier attempt transferred value
// and then failed to persist the ledger state; those installments count
// towards ins.Amount and the remainder moves under the next installment id.
// The returned receipt carries the base id and the total paid.
func Settle(ctx context.Context, t Transferrer, ins Instruction) (Receipt, error) {
	if err := ins.Validate(); err != nil {
		return Receipt{}, err
	}
	settled := Receipt{ID: ins.ID, Kind: ins.Kind, CampaignID: ins.CampaignID, Recipient: ins.Recipient}

	n := 1
	for ; ; n++ {
		prior, err := t.GetTransfer(ctx, InstallmentID(ins.ID, n))
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return Receipt{}, fmt.Errorf("read transfer %s: %w", InstallmentID(ins.ID, n), err)
		}
		if prior.Recipient != ins.Recipient || prior.CampaignID != ins.CampaignID || prior.Kind != ins.Kind {
			return Receipt{}, fmt.Errorf("transfer %s: %w", prior.ID, ErrInstructionMismatch)
		}
		settled.Amount += prior.Amount
		settled.CompletedAt = prior.CompletedAt
	}

	switch {
	case settled.Amount == ins.Amount:
		return settled, nil
	case settled.Amount > ins.Amount:
		return Receipt{}, fmt.Errorf("payout %s already moved %d of %d: %w", ins.ID, settled.Amount, ins.Amount, ErrInstructionMismatch)
	}

	next := ins
	next.ID = InstallmentID(ins.ID, n)
	next.Amount = ins.Amount - settled.Amount
	receipt, err := t.Transfer(ctx, next)
	if err != nil {
		return Receipt{}, err
	}
	settled.Amount += receipt.Amount
	settled.CompletedAt = receipt.CompletedAt
	return settled, nil
}

// Validate checks instruction fields before any value moves.
func (i Instruction) Validate() error {
	switch {
	case strings.TrimSpace(i.ID) == "":
		return errors.New("instruction id is required")
	case i.Kind != domain.PayoutWithdrawal && i.Kind != domain.PayoutRefund:
		return errors.New("instruction kind is invalid")
	case i.CampaignID == 0:
		return errors.New("campaign id is required")
	case strings.TrimSpace(i.Recipient) == "":
		return errors.New("recipient is required")
	case i.Amount == 0:
		return errors.New("amount must be positive")
	}
	return nil
}
