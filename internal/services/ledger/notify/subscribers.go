package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/timeouts"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
)

// LogSubscriber writes one log line per event.
type LogSubscriber struct {
	Logf func(string, ...any)
}

// Deliver logs evt.
func (s LogSubscriber) Deliver(_ context.Context, evt storage.JournalEvent) error {
	logf := s.Logf
	if logf == nil {
		logf = log.Printf
	}
	logf("ledger event seq=%d type=%s campaign=%d actor=%s amount=%d",
		evt.Seq, evt.Event.Type, evt.Event.CampaignID, evt.Event.Actor, evt.Event.Amount)
	return nil
}

// EventHeader names the event type on webhook requests.
const EventHeader = "X-Pledgebank-Event"

// Envelope is the webhook request body.
type Envelope struct {
	Seq            uint64          `json:"seq"`
	Type           string          `json:"type"`
	CampaignID     uint64          `json:"campaign_id"`
	Actor          string          `json:"actor"`
	Amount         uint64          `json:"amount"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload"`
	ChainHash      string          `json:"chain_hash"`
	Signature      string          `json:"signature"`
	SignatureKeyID string          `json:"signature_key_id"`
}

// NewEnvelope converts a journal entry for external delivery.
func NewEnvelope(evt storage.JournalEvent) Envelope {
	payload := json.RawMessage(evt.Event.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return Envelope{
		Seq:            evt.Seq,
		Type:           string(evt.Event.Type),
		CampaignID:     evt.Event.CampaignID,
		Actor:          evt.Event.Actor,
		Amount:         evt.Event.Amount,
		OccurredAt:     evt.Event.OccurredAt.UTC(),
		Payload:        payload,
		ChainHash:      evt.ChainHash,
		Signature:      evt.Signature,
		SignatureKeyID: evt.SignatureKeyID,
	}
}

// WebhookSubscriber POSTs each event as JSON to URL. Any non-2xx response
// counts as a failed delivery.
type WebhookSubscriber struct {
	url    string
	client *http.Client
}

// NewWebhookSubscriber validates url and builds a subscriber. A nil client
// uses one bounded by timeouts.Webhook.
func NewWebhookSubscriber(url string, client *http.Client) (*WebhookSubscriber, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("webhook url must be http or https: %q", url)
	}
	if client == nil {
		client = &http.Client{Timeout: timeouts.Webhook}
	}
	return &WebhookSubscriber{url: url, client: client}, nil
}

// Deliver posts evt to the webhook.
func (s *WebhookSubscriber) Deliver(ctx context.Context, evt storage.JournalEvent) error {
	body, err := json.Marshal(NewEnvelope(evt))
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Webhook)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(evt.Event.Type))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
