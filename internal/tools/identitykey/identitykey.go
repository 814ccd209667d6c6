// Package identitykey generates the secrets a ledger deployment needs and
// mints caller tokens for local use.
package identitykey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/config"
	"github.com/louisbranch/pledgebank/internal/platform/id"
	"github.com/louisbranch/pledgebank/internal/platform/identity"
)

const usage = "usage: identity-key <keygen|hmac|token> [flags]"

// Deps holds the injectable collaborators for Run.
type Deps struct {
	Random     io.Reader
	LoadSigner func() (identity.SignerConfig, error)
	NewID      func() (string, error)
}

// Run dispatches a subcommand and writes its output to out.
func Run(args []string, out io.Writer, deps Deps) error {
	if out == nil {
		return errors.New("output is required")
	}
	if len(args) == 0 {
		return errors.New(usage)
	}
	if deps.Random == nil {
		deps.Random = rand.Reader
	}
	if deps.LoadSigner == nil {
		deps.LoadSigner = func() (identity.SignerConfig, error) {
			return identity.LoadSignerConfigFromEnv(nil)
		}
	}
	if deps.NewID == nil {
		deps.NewID = id.NewID
	}

	command, rest := args[0], args[1:]
	switch command {
	case "keygen":
		return Keygen(out, deps.Random)
	case "hmac":
		cfg, err := ParseHMACConfig(flag.NewFlagSet("hmac", flag.ContinueOnError), rest)
		if err != nil {
			return err
		}
		return HMAC(cfg, out, deps.Random)
	case "token":
		cfg, err := ParseTokenConfig(flag.NewFlagSet("token", flag.ContinueOnError), rest)
		if err != nil {
			return err
		}
		signer, err := deps.LoadSigner()
		if err != nil {
			return err
		}
		return Token(cfg, signer, out, deps.NewID)
	default:
		return fmt.Errorf("unknown command %q; %s", command, usage)
	}
}

// Keygen generates an ed25519 identity keypair and writes exports.
func Keygen(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate identity key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export %sIDENTITY_PRIVATE_KEY=%s\n", config.Prefix, base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export %sIDENTITY_PUBLIC_KEY=%s\n", config.Prefix, base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

// HMACConfig holds configuration for journal key generation.
type HMACConfig struct {
	Bytes int
}

// ParseHMACConfig parses flags into an HMACConfig.
func ParseHMACConfig(fs *flag.FlagSet, args []string) (HMACConfig, error) {
	cfg := HMACConfig{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	if err := fs.Parse(args); err != nil {
		return HMACConfig{}, err
	}
	return cfg, nil
}

// HMAC generates a journal signing key and writes its export.
func HMAC(cfg HMACConfig, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "export %sEVENT_HMAC_KEY=%s\n", config.Prefix, hex.EncodeToString(buf))
	return err
}

// TokenConfig holds configuration for minting a caller token.
type TokenConfig struct {
	Subject string
	TTL     time.Duration
}

// ParseTokenConfig parses flags into a TokenConfig.
func ParseTokenConfig(fs *flag.FlagSet, args []string) (TokenConfig, error) {
	cfg := TokenConfig{TTL: 24 * time.Hour}
	fs.StringVar(&cfg.Subject, "sub", "", "identity the token speaks for")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return TokenConfig{}, err
	}
	if cfg.Subject == "" {
		return TokenConfig{}, errors.New("-sub is required")
	}
	return cfg, nil
}

// Token mints a bearer token for cfg.Subject and writes it on one line.
func Token(cfg TokenConfig, signer identity.SignerConfig, out io.Writer, newID func() (string, error)) error {
	if out == nil {
		return errors.New("output is required")
	}
	if newID == nil {
		newID = id.NewID
	}
	tokenID, err := newID()
	if err != nil {
		return fmt.Errorf("generate token id: %w", err)
	}
	token, err := identity.Mint(cfg.Subject, cfg.TTL, tokenID, signer)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
