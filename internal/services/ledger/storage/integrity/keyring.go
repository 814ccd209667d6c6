package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSignatureMismatch reports a journal entry whose signature does not match
// its chain hash.
var ErrSignatureMismatch = errors.New("signature mismatch")

// Keyring stores root HMAC keys and the active key id. Signing keys are
// derived per campaign so one leaked derived key cannot forge entries for
// other campaigns.
type Keyring struct {
	keys        map[string][]byte
	activeKeyID string
}

// NewKeyring constructs a keyring for HMAC signing and verification.
func NewKeyring(keys map[string][]byte, activeKeyID string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hmac keys are required")
	}
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		return nil, fmt.Errorf("active hmac key id is required")
	}
	if _, ok := keys[activeKeyID]; !ok {
		return nil, fmt.Errorf("active hmac key id %q is not configured", activeKeyID)
	}
	cloned := make(map[string][]byte, len(keys))
	for id, key := range keys {
		if len(key) == 0 {
			return nil, fmt.Errorf("hmac key %q is empty", id)
		}
		cloned[id] = append([]byte(nil), key...)
	}
	return &Keyring{keys: cloned, activeKeyID: activeKeyID}, nil
}

// ActiveKeyID returns the configured signing key id.
func (k *Keyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.activeKeyID
}

// Sign signs a chain hash with the active key, returning the signature and
// the key id that produced it.
func (k *Keyring) Sign(campaignID uint64, chainHash string) (string, string, error) {
	if k == nil {
		return "", "", fmt.Errorf("hmac keyring is not configured")
	}
	key, err := k.campaignKey(k.activeKeyID, campaignID)
	if err != nil {
		return "", "", err
	}
	return hmacSHA256Hex(key, chainHash), k.activeKeyID, nil
}

// Verify validates a chain hash signature produced by keyID.
func (k *Keyring) Verify(campaignID uint64, chainHash, signature, keyID string) error {
	if k == nil {
		return fmt.Errorf("hmac keyring is not configured")
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return fmt.Errorf("signature key id is required")
	}
	key, err := k.campaignKey(keyID, campaignID)
	if err != nil {
		return err
	}
	expected := hmacSHA256Hex(key, chainHash)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

func (k *Keyring) campaignKey(keyID string, campaignID uint64) ([]byte, error) {
	rootKey, ok := k.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("hmac key id %q is unknown", keyID)
	}
	if campaignID == 0 {
		return nil, fmt.Errorf("campaign id is required")
	}
	key, err := hkdf.Key(sha256.New, rootKey, nil, "campaign:"+strconv.FormatUint(campaignID, 10), 32)
	if err != nil {
		return nil, fmt.Errorf("derive campaign key: %w", err)
	}
	return key, nil
}

func hmacSHA256Hex(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
