package identitykey

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/identity"
)

func TestRunRequiresOutput(t *testing.T) {
	if err := Run([]string{"keygen"}, nil, Deps{}); err == nil {
		t.Fatal("expected error when output is nil")
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := Run(nil, &bytes.Buffer{}, Deps{}); err == nil {
		t.Fatal("expected usage error for no command")
	}
	err := Run([]string{"rotate"}, &bytes.Buffer{}, Deps{})
	if err == nil || !strings.Contains(err.Error(), "rotate") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestKeygenWritesKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{1}, 64))
	if err := Run([]string{"keygen"}, buf, Deps{Random: reader}); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	private := strings.TrimPrefix(lines[0], "export PLEDGEBANK_IDENTITY_PRIVATE_KEY=")
	public := strings.TrimPrefix(lines[1], "export PLEDGEBANK_IDENTITY_PUBLIC_KEY=")
	if private == lines[0] || public == lines[1] {
		t.Fatalf("unexpected output format: %q", buf.String())
	}

	privateBytes, err := base64.RawStdEncoding.DecodeString(private)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	publicBytes, err := base64.RawStdEncoding.DecodeString(public)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		t.Fatalf("expected private key length %d, got %d", ed25519.PrivateKeySize, len(privateBytes))
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		t.Fatalf("expected public key length %d, got %d", ed25519.PublicKeySize, len(publicBytes))
	}
}

func TestHMACWritesKey(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{0xab}, 4))
	if err := Run([]string{"hmac", "-bytes", "4"}, buf, Deps{Random: reader}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := buf.String(); got != "export PLEDGEBANK_EVENT_HMAC_KEY=abababab\n" {
		t.Fatalf("output = %q", got)
	}

	if err := HMAC(HMACConfig{Bytes: 0}, buf, nil); err == nil {
		t.Fatal("expected error for zero bytes")
	}
}

func TestParseTokenConfig(t *testing.T) {
	cfg, err := ParseTokenConfig(flag.NewFlagSet("token", flag.ContinueOnError), []string{"-sub", "alice", "-ttl", "2h"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Subject != "alice" || cfg.TTL != 2*time.Hour {
		t.Fatalf("config = %+v", cfg)
	}

	if _, err := ParseTokenConfig(flag.NewFlagSet("token", flag.ContinueOnError), nil); err == nil {
		t.Fatal("expected error for missing subject")
	}
}

func TestTokenMintsVerifiableToken(t *testing.T) {
	public, private, err := ed25519.GenerateKey(bytes.NewReader(bytes.Repeat([]byte{7}, 64)))
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	signer := identity.SignerConfig{Issuer: "pledgebank", Audience: "ledger", Key: private, Now: func() time.Time { return now }}

	buf := &bytes.Buffer{}
	deps := Deps{
		LoadSigner: func() (identity.SignerConfig, error) { return signer, nil },
		NewID:      func() (string, error) { return "tok-1", nil },
	}
	if err := Run([]string{"token", "-sub", "bob", "-ttl", "1h"}, buf, deps); err != nil {
		t.Fatalf("run: %v", err)
	}

	claims, err := identity.Verify(strings.TrimSpace(buf.String()), identity.VerifierConfig{
		Issuer:   "pledgebank",
		Audience: "ledger",
		Key:      public,
		Now:      func() time.Time { return now.Add(30 * time.Minute) },
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "bob" || claims.JWTID != "tok-1" {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires at = %v", claims.ExpiresAt)
	}
}

func TestTokenPropagatesSignerError(t *testing.T) {
	deps := Deps{
		LoadSigner: func() (identity.SignerConfig, error) { return identity.SignerConfig{}, errors.New("no key") },
	}
	err := Run([]string{"token", "-sub", "bob"}, &bytes.Buffer{}, deps)
	if err == nil || !strings.Contains(err.Error(), "no key") {
		t.Fatalf("expected signer error, got %v", err)
	}
}
