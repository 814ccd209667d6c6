// Package identity verifies and mints the EdDSA bearer tokens that carry a
// caller's account to the ledger.
package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"
	"github.com/louisbranch/pledgebank/internal/platform/config"
)

// identityEnv holds raw env values before post-parse validation.
type identityEnv struct {
	Issuer     string `env:"IDENTITY_ISSUER"`
	Audience   string `env:"IDENTITY_AUDIENCE"`
	PublicKey  string `env:"IDENTITY_PUBLIC_KEY"`
	PrivateKey string `env:"IDENTITY_PRIVATE_KEY"`
}

// VerifierConfig defines how bearer tokens are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// SignerConfig defines how bearer tokens are minted.
type SignerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	Now      func() time.Time
}

// Claims captures validated token claims.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JWTID     string
}

// LoadVerifierConfigFromEnv reads token verification configuration.
func LoadVerifierConfigFromEnv(now func() time.Time) (VerifierConfig, error) {
	raw, err := parseEnv()
	if err != nil {
		return VerifierConfig{}, err
	}
	if raw.PublicKey == "" {
		return VerifierConfig{}, fmt.Errorf("%sIDENTITY_PUBLIC_KEY is required", config.Prefix)
	}
	keyBytes, err := DecodeKey(raw.PublicKey)
	if err != nil {
		return VerifierConfig{}, fmt.Errorf("decode identity public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return VerifierConfig{}, fmt.Errorf("identity public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{
		Issuer:   raw.Issuer,
		Audience: raw.Audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// LoadSignerConfigFromEnv reads token minting configuration.
func LoadSignerConfigFromEnv(now func() time.Time) (SignerConfig, error) {
	raw, err := parseEnv()
	if err != nil {
		return SignerConfig{}, err
	}
	if raw.PrivateKey == "" {
		return SignerConfig{}, fmt.Errorf("%sIDENTITY_PRIVATE_KEY is required", config.Prefix)
	}
	keyBytes, err := DecodeKey(raw.PrivateKey)
	if err != nil {
		return SignerConfig{}, fmt.Errorf("decode identity private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return SignerConfig{}, fmt.Errorf("identity private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return SignerConfig{
		Issuer:   raw.Issuer,
		Audience: raw.Audience,
		Key:      ed25519.PrivateKey(keyBytes),
		Now:      now,
	}, nil
}

func parseEnv() (identityEnv, error) {
	var raw identityEnv
	if err := config.ParseEnv(&raw); err != nil {
		return identityEnv{}, fmt.Errorf("parse identity env: %w", err)
	}
	raw.Issuer = strings.TrimSpace(raw.Issuer)
	raw.Audience = strings.TrimSpace(raw.Audience)
	raw.PublicKey = strings.TrimSpace(raw.PublicKey)
	raw.PrivateKey = strings.TrimSpace(raw.PrivateKey)
	if raw.Issuer == "" {
		return identityEnv{}, fmt.Errorf("%sIDENTITY_ISSUER is required", config.Prefix)
	}
	if raw.Audience == "" {
		return identityEnv{}, fmt.Errorf("%sIDENTITY_AUDIENCE is required", config.Prefix)
	}
	return raw, nil
}

// Verify checks a bearer token's signature, issuer, audience and lifetime and
// returns its claims. Failures are IDENTITY_INVALID domain errors.
func Verify(token string, cfg VerifierConfig) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeIdentityMissing, "identity token is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("identity verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeIdentityInvalid, "identity token subject is required",
			map[string]string{"Reason": "subject"})
	}

	claims := Claims{
		Subject:   parsed.Subject,
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
		JWTID:     parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// Mint signs a bearer token for subject valid for ttl.
func Mint(subject string, ttl time.Duration, tokenID string, cfg SignerConfig) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("identity signer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	now := cfg.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        tokenID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	reason := "malformed"
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		reason = "signature"
	case errors.Is(err, jwt.ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		reason = "not_active"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		reason = "issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		reason = "audience"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		reason = "claims"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		reason = "algorithm"
	}
	return apperrors.WrapWithMetadata(apperrors.CodeIdentityInvalid, "identity token is invalid",
		map[string]string{"Reason": reason}, err)
}

// DecodeKey decodes a base64 key, accepting padded or raw encodings.
func DecodeKey(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
