package errors

import (
	stderrors "errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
)

// Domain is the error domain reported in gRPC ErrorInfo details.
const Domain = "pledgebank.louisbranch.github.com"

// MetadataCampaignID is the metadata key carrying the rejected campaign id.
const MetadataCampaignID = "CampaignID"

// ResourceCampaign is the ResourceInfo type attached to campaign-scoped errors.
const ResourceCampaign = "campaign"

// Error is a coded ledger error. Message is for logs; Metadata feeds the
// localized template for Code.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New returns an error without metadata.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata returns an error whose metadata fills the message template.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// ForCampaign returns an error about one campaign.
func ForCampaign(code Code, message string, campaignID uint64) *Error {
	return WithMetadata(code, message, map[string]string{
		MetadataCampaignID: strconv.FormatUint(campaignID, 10),
	})
}

// Wrap returns an error that keeps cause in the chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapWithMetadata is Wrap plus template metadata.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// ToGRPCStatus converts e to a status carrying ErrorInfo, the localized user
// message and, for campaign-scoped errors, the campaign as ResourceInfo.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	code := e.Code.GRPCCode()
	details := []protoadapt.MessageV1{
		&errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain, Metadata: e.Metadata},
		&errdetails.LocalizedMessage{Locale: locale, Message: userMessage},
	}
	if id, ok := e.Metadata[MetadataCampaignID]; ok && id != "0" {
		details = append(details, &errdetails.ResourceInfo{
			ResourceType: ResourceCampaign,
			ResourceName: id,
			Description:  e.Message,
		})
	}
	st, err := status.New(code, e.Message).WithDetails(details...)
	if err != nil {
		return status.Error(code, e.Message)
	}
	return st.Err()
}
