package errors

import (
	stderrors "errors"

	"github.com/louisbranch/pledgebank/internal/platform/errors/i18n"
	i18ncatalog "github.com/louisbranch/pledgebank/internal/platform/i18n/catalog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is used when a caller does not request a locale.
const DefaultLocale = i18ncatalog.BaseLocale

// HandleError converts an error to a gRPC status. Domain errors carry their
// code, metadata and a localized message. Existing statuses pass through;
// anything else becomes Internal without leaking its text.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	if locale == "" {
		locale = DefaultLocale
	}

	var appErr *Error
	if stderrors.As(err, &appErr) {
		catalog := i18n.GetCatalog(locale)
		userMsg := catalog.Format(string(appErr.Code), appErr.Metadata)
		return appErr.ToGRPCStatus(catalog.Locale(), userMsg)
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}
