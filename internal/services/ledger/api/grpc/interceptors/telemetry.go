package interceptors

import (
	"context"
	"log"
	"strings"

	"github.com/louisbranch/pledgebank/internal/platform/telemetry"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Audit event names for handled calls.
const (
	EventGRPCRead  = "grpc.read"
	EventGRPCWrite = "grpc.write"
)

// AuditInterceptor emits an audit event for each unary call handled by the
// ledger.
func AuditInterceptor(emitter *telemetry.Emitter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if emitter == nil {
			return resp, err
		}

		methodKind := classifyMethodKind(info.FullMethod)
		eventName := EventGRPCWrite
		if methodKind == "read" {
			eventName = EventGRPCRead
		}
		severity := telemetry.SeverityInfo
		code := codes.OK
		if err != nil {
			code = status.Code(err)
			severity = severityFor(code)
		}

		emitErr := emitter.Emit(ctx, storage.AuditEvent{
			EventName:  eventName,
			Severity:   string(severity),
			CampaignID: campaignIDOf(req),
			Attributes: map[string]any{
				"method":      info.FullMethod,
				"method_kind": methodKind,
				"code":        code.String(),
			},
		})
		if emitErr != nil {
			log.Printf("audit emit %s: %v", info.FullMethod, emitErr)
		}
		return resp, err
	}
}

type campaignIDGetter interface {
	GetCampaignID() uint64
}

func campaignIDOf(req any) uint64 {
	if getter, ok := req.(campaignIDGetter); ok {
		return getter.GetCampaignID()
	}
	return 0
}

// classifyMethodKind treats Get, List and Verify methods as reads.
func classifyMethodKind(fullMethod string) string {
	name := fullMethod
	if idx := strings.LastIndex(fullMethod, "/"); idx >= 0 {
		name = fullMethod[idx+1:]
	}
	for _, prefix := range []string{"Get", "List", "Verify"} {
		if strings.HasPrefix(name, prefix) {
			return "read"
		}
	}
	return "write"
}

// severityFor keeps rejected commands at WARN and reserves ERROR for
// failures the caller could not have avoided.
func severityFor(code codes.Code) telemetry.Severity {
	switch code {
	case codes.Internal, codes.Unavailable, codes.Unknown, codes.DataLoss:
		return telemetry.SeverityError
	default:
		return telemetry.SeverityWarn
	}
}
