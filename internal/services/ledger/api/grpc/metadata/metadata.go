// Package metadata defines the request headers the ledger reads and writes on
// gRPC calls.
//
// Request ids correlate a call across logs, audit rows and the MCP bridge.
// The locale header selects the language of user-facing error messages.
package metadata

import (
	"context"
	"strings"

	"github.com/louisbranch/pledgebank/internal/platform/i18n/catalog"
	"github.com/louisbranch/pledgebank/internal/platform/id"
	"github.com/louisbranch/pledgebank/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is the gRPC metadata key for request correlation ids.
const RequestIDHeader = "x-pledgebank-request-id"

// LocaleHeader is the gRPC metadata key for the caller's preferred locale.
// It accepts a single tag or an Accept-Language style list.
const LocaleHeader = "x-pledgebank-locale"

// AuthorizationHeader carries the caller's bearer token.
const AuthorizationHeader = "authorization"

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	if len(md) == 0 {
		return ""
	}
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return value
			}
		}
	}
	return ""
}

// IncomingValue returns the first printable value for key in the call's
// incoming metadata.
func IncomingValue(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(FirstMetadataValue(md, key))
}

// UnaryServerInterceptor attaches a request id and resolved locale to every
// unary call. Missing request ids are generated; the id is echoed back in the
// response headers.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		updatedCtx, requestID, err := ensureRequestMetadata(ctx, idGenerator)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "ensure request metadata: %v", err)
		}
		if err := grpc.SetHeader(updatedCtx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(updatedCtx, req)
	}
}

func ensureRequestMetadata(ctx context.Context, idGenerator func() (string, error)) (context.Context, string, error) {
	requestID := IncomingValue(ctx, RequestIDHeader)
	if requestID == "" {
		generated, err := idGenerator()
		if err != nil {
			return nil, "", err
		}
		requestID = generated
	}
	updatedCtx := requestctx.WithRequestID(ctx, requestID)
	updatedCtx = requestctx.WithLocale(updatedCtx, catalog.Default().Match(IncomingValue(ctx, LocaleHeader)))
	return updatedCtx, requestID, nil
}

// OutgoingContext appends the request id and locale to an outgoing call.
// Empty values are skipped.
func OutgoingContext(ctx context.Context, requestID, locale string) context.Context {
	pairs := make([]string, 0, 4)
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		pairs = append(pairs, RequestIDHeader, requestID)
	}
	if locale = strings.TrimSpace(locale); locale != "" {
		pairs = append(pairs, LocaleHeader, locale)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}
