package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is the journal content covered by the hash chain.
type Entry struct {
	Seq         uint64
	CampaignID  uint64
	Type        string
	Actor       string
	Amount      uint64
	OccurredAt  time.Time
	PayloadJSON []byte
}

// envelope fixes field order for hashing.
type envelope struct {
	Seq        uint64          `json:"seq"`
	CampaignID uint64          `json:"campaign_id"`
	Type       string          `json:"type"`
	Actor      string          `json:"actor"`
	Amount     uint64          `json:"amount"`
	OccurredAt int64           `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// EventHash computes the SHA-256 content hash of one entry.
func EventHash(entry Entry) (string, error) {
	payload := json.RawMessage(entry.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if !json.Valid(payload) {
		return "", fmt.Errorf("event %d payload is not valid json", entry.Seq)
	}
	data, err := json.Marshal(envelope{
		Seq:        entry.Seq,
		CampaignID: entry.CampaignID,
		Type:       entry.Type,
		Actor:      entry.Actor,
		Amount:     entry.Amount,
		OccurredAt: entry.OccurredAt.UTC().UnixMilli(),
		Payload:    payload,
	})
	if err != nil {
		return "", fmt.Errorf("encode event %d: %w", entry.Seq, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ChainHash links an event hash to the previous entry's chain hash.
func ChainHash(eventHash, prevChainHash string) string {
	sum := sha256.Sum256([]byte(prevChainHash + ":" + eventHash))
	return hex.EncodeToString(sum[:])
}
