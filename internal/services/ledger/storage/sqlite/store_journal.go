package sqlite

import (
	"context"
	"fmt"

	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage/integrity"
)

const journalColumns = `seq, campaign_id, event_type, actor, amount, occurred_at, payload_json,
	event_hash, prev_hash, chain_hash, signature, signature_key_id`

func scanJournalEvent(row rowScanner) (storage.JournalEvent, error) {
	var (
		seq, campaignID, occurredAt int64
		eventType, actor, amount    string
		payload                     []byte
		out                         storage.JournalEvent
	)
	if err := row.Scan(&seq, &campaignID, &eventType, &actor, &amount, &occurredAt, &payload,
		&out.EventHash, &out.PrevHash, &out.ChainHash, &out.Signature, &out.SignatureKeyID); err != nil {
		return storage.JournalEvent{}, err
	}
	value, err := storage.DecodeAmount(amount)
	if err != nil {
		return storage.JournalEvent{}, fmt.Errorf("event %d amount: %w", seq, err)
	}
	out.Seq = uint64(seq)
	out.Event = domain.Event{
		Type:        domain.EventType(eventType),
		CampaignID:  uint64(campaignID),
		Actor:       actor,
		Amount:      value,
		OccurredAt:  fromMillis(occurredAt),
		PayloadJSON: payload,
	}
	return out, nil
}

// ListEvents returns journal entries after afterSeq in sequence order. A zero
// campaignID lists across all campaigns.
func (s *Store) ListEvents(ctx context.Context, campaignID uint64, afterSeq uint64, limit int) ([]storage.JournalEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	query := `SELECT ` + journalColumns + ` FROM ledger_events WHERE seq > ?`
	params := []any{int64(afterSeq)}
	if campaignID != 0 {
		query += ` AND campaign_id = ?`
		params = append(params, int64(campaignID))
	}
	query += ` ORDER BY seq LIMIT ?`
	params = append(params, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]storage.JournalEvent, 0, limit)
	for rows.Next() {
		evt, err := scanJournalEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// VerifyJournal walks the whole journal, recomputing every hash link and
// checking every signature. The first broken entry is reported by sequence.
func (s *Store) VerifyJournal(ctx context.Context) (storage.JournalReport, error) {
	if err := s.ready(ctx); err != nil {
		return storage.JournalReport{}, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+journalColumns+` FROM ledger_events ORDER BY seq`)
	if err != nil {
		return storage.JournalReport{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var (
		report    storage.JournalReport
		prevChain string
	)
	for rows.Next() {
		evt, err := scanJournalEvent(rows)
		if err != nil {
			return report, fmt.Errorf("scan event: %w", err)
		}
		if evt.Seq != report.LastSeq+1 {
			return report, fmt.Errorf("journal gap: expected seq %d, found %d", report.LastSeq+1, evt.Seq)
		}
		if evt.PrevHash != prevChain {
			return report, fmt.Errorf("event %d: previous hash does not match chain", evt.Seq)
		}
		eventHash, err := integrity.EventHash(integrity.Entry{
			Seq:         evt.Seq,
			CampaignID:  evt.Event.CampaignID,
			Type:        string(evt.Event.Type),
			Actor:       evt.Event.Actor,
			Amount:      evt.Event.Amount,
			OccurredAt:  evt.Event.OccurredAt,
			PayloadJSON: evt.Event.PayloadJSON,
		})
		if err != nil {
			return report, err
		}
		if eventHash != evt.EventHash {
			return report, fmt.Errorf("event %d: content hash mismatch", evt.Seq)
		}
		if chain := integrity.ChainHash(eventHash, prevChain); chain != evt.ChainHash {
			return report, fmt.Errorf("event %d: chain hash mismatch", evt.Seq)
		}
		if err := s.keyring.Verify(evt.Event.CampaignID, evt.ChainHash, evt.Signature, evt.SignatureKeyID); err != nil {
			return report, fmt.Errorf("event %d: %w", evt.Seq, err)
		}
		prevChain = evt.ChainHash
		report.LastSeq = evt.Seq
		report.EventsChecked++
	}
	if err := rows.Err(); err != nil {
		return report, fmt.Errorf("iterate events: %w", err)
	}
	return report, nil
}
