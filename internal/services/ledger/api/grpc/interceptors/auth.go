package interceptors

import (
	"context"
	"strings"

	apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"
	"github.com/louisbranch/pledgebank/internal/platform/identity"
	"github.com/louisbranch/pledgebank/internal/platform/requestctx"
	grpcmeta "github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/metadata"
	"google.golang.org/grpc"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier func(token string) (identity.Claims, error)

// NewTokenVerifier binds identity.Verify to a verifier config.
func NewTokenVerifier(cfg identity.VerifierConfig) TokenVerifier {
	return func(token string) (identity.Claims, error) {
		return identity.Verify(token, cfg)
	}
}

// AuthInterceptor resolves the caller identity from the authorization
// header. Calls without a token run anonymously so reads stay public and
// mutations are rejected by the ledger for the missing identity. A present
// but invalid token fails the call.
func AuthInterceptor(verify TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		header := grpcmeta.IncomingValue(ctx, grpcmeta.AuthorizationHeader)
		if header == "" {
			return handler(ctx, req)
		}
		locale := requestctx.LocaleFromContext(ctx)

		token, ok := bearerToken(header)
		if !ok {
			return nil, apperrors.HandleError(apperrors.WithMetadata(
				apperrors.CodeIdentityInvalid,
				"authorization header must use the Bearer scheme",
				map[string]string{"Reason": "scheme"},
			), locale)
		}
		if verify == nil {
			return nil, apperrors.HandleError(apperrors.New(apperrors.CodeIdentityInvalid, "identity verification is not configured"), locale)
		}
		claims, err := verify(token)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeUnknown {
				err = apperrors.Wrap(apperrors.CodeIdentityInvalid, "identity token is invalid", err)
			}
			return nil, apperrors.HandleError(err, locale)
		}
		return handler(requestctx.WithSubject(ctx, claims.Subject), req)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
