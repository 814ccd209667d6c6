// Package errors provides structured ledger errors with i18n and gRPC mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Create validation
	CodeCampaignInvalidTarget      Code = "CAMPAIGN_INVALID_TARGET"
	CodeCampaignInvalidDuration    Code = "CAMPAIGN_INVALID_DURATION"
	CodeCampaignTitleTooLong       Code = "CAMPAIGN_TITLE_TOO_LONG"
	CodeCampaignDescriptionTooLong Code = "CAMPAIGN_DESCRIPTION_TOO_LONG"

	// Lookup
	CodeCampaignNotFound Code = "CAMPAIGN_NOT_FOUND"

	// Contribution
	CodeCampaignEnded            Code = "CAMPAIGN_ENDED"
	CodeCampaignAlreadyCompleted Code = "CAMPAIGN_ALREADY_COMPLETED"
	CodeContributionZero         Code = "CONTRIBUTION_ZERO"
	CodeAmountOverflow           Code = "AMOUNT_OVERFLOW"

	// Withdrawal
	CodeCampaignNotCreator       Code = "CAMPAIGN_NOT_CREATOR"
	CodeCampaignGoalNotReached   Code = "CAMPAIGN_GOAL_NOT_REACHED"
	CodeCampaignAlreadyWithdrawn Code = "CAMPAIGN_ALREADY_WITHDRAWN"

	// Refund
	CodeCampaignStillOpen     Code = "CAMPAIGN_STILL_OPEN"
	CodeCampaignWasSuccessful Code = "CAMPAIGN_WAS_SUCCESSFUL"
	CodeRefundNoContribution  Code = "REFUND_NO_CONTRIBUTION"

	// Identity
	CodeIdentityMissing Code = "IDENTITY_MISSING"
	CodeIdentityInvalid Code = "IDENTITY_INVALID"

	// Custody
	CodeTransferFailed           Code = "TRANSFER_FAILED"
	CodeCampaignConcurrentUpdate Code = "CAMPAIGN_CONCURRENT_UPDATE"

	// Listing
	CodeFilterInvalid    Code = "FILTER_INVALID"
	CodePageTokenInvalid Code = "PAGE_TOKEN_INVALID"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed input
	case CodeCampaignInvalidTarget,
		CodeCampaignInvalidDuration,
		CodeCampaignTitleTooLong,
		CodeCampaignDescriptionTooLong,
		CodeContributionZero,
		CodeAmountOverflow,
		CodeFilterInvalid,
		CodePageTokenInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - campaign phase disallows the operation
	case CodeCampaignEnded,
		CodeCampaignAlreadyCompleted,
		CodeCampaignGoalNotReached,
		CodeCampaignAlreadyWithdrawn,
		CodeCampaignStillOpen,
		CodeCampaignWasSuccessful,
		CodeRefundNoContribution:
		return codes.FailedPrecondition

	case CodeCampaignNotFound:
		return codes.NotFound

	case CodeCampaignNotCreator:
		return codes.PermissionDenied

	case CodeIdentityMissing,
		CodeIdentityInvalid:
		return codes.Unauthenticated

	case CodeTransferFailed:
		return codes.Unavailable

	case CodeCampaignConcurrentUpdate:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
