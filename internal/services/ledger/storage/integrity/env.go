package integrity

import (
	"fmt"
	"strings"

	"github.com/louisbranch/pledgebank/internal/platform/config"
)

const defaultKeyID = "v1"

// keyringEnv holds the journal signing configuration.
type keyringEnv struct {
	Keys  map[string]string `env:"EVENT_HMAC_KEYS" envSeparator:"," envKeyValSeparator:"="`
	Key   string            `env:"EVENT_HMAC_KEY"`
	KeyID string            `env:"EVENT_HMAC_KEY_ID" envDefault:"v1"`
}

// KeyringFromEnv loads the HMAC keyring. EVENT_HMAC_KEYS ("v1=secret,v2=next")
// takes precedence over the single EVENT_HMAC_KEY.
func KeyringFromEnv() (*Keyring, error) {
	var raw keyringEnv
	if err := config.ParseEnv(&raw); err != nil {
		return nil, fmt.Errorf("parse keyring env: %w", err)
	}
	keyID := strings.TrimSpace(raw.KeyID)
	if keyID == "" {
		keyID = defaultKeyID
	}

	if len(raw.Keys) == 0 {
		key := strings.TrimSpace(raw.Key)
		if key == "" {
			return nil, fmt.Errorf("%sEVENT_HMAC_KEY is required", config.Prefix)
		}
		return NewKeyring(map[string][]byte{keyID: []byte(key)}, keyID)
	}

	keys := make(map[string][]byte, len(raw.Keys))
	for id, value := range raw.Keys {
		id = strings.TrimSpace(id)
		value = strings.TrimSpace(value)
		if id == "" || value == "" {
			return nil, fmt.Errorf("invalid %sEVENT_HMAC_KEYS entry", config.Prefix)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}
