package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage/integrity"
)

const outboxStatusPending = "pending"

// stage is one open write transaction.
type stage struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

// Begin opens a staged write transaction. The transaction is rolled back if
// ctx is canceled before Commit, so callers that must commit after an
// external side effect should pass a context detached from cancellation.
func (s *Store) Begin(ctx context.Context) (storage.Stage, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		if isBusyError(err) {
			return nil, fmt.Errorf("begin ledger transaction: %w", storage.ErrVersionConflict)
		}
		return nil, fmt.Errorf("begin ledger transaction: %w", err)
	}
	return &stage{store: s, tx: tx}, nil
}

func (st *stage) active() error {
	if st == nil || st.tx == nil {
		return fmt.Errorf("stage is not configured")
	}
	if st.done {
		return sql.ErrTxDone
	}
	return nil
}

func (st *stage) InsertCampaign(ctx context.Context, campaign domain.Campaign, priorCount uint64) error {
	if err := st.active(); err != nil {
		return err
	}
	if campaign.ID != priorCount+1 {
		return fmt.Errorf("campaign id %d does not follow count %d", campaign.ID, priorCount)
	}

	res, err := st.tx.ExecContext(ctx,
		`UPDATE ledger_counter SET campaign_count = ? WHERE id = 1 AND campaign_count = ?`,
		int64(campaign.ID), int64(priorCount),
	)
	if err != nil {
		return fmt.Errorf("advance campaign count: %w", err)
	}
	if err := ensureAffected(res); err != nil {
		return err
	}

	now := toMillis(st.store.now())
	_, err = st.tx.ExecContext(ctx, `
INSERT INTO campaigns (
	id, creator, title, description, target_amount, raised_amount,
	deadline, created_at, completed, funded, contributors_count, version, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(campaign.ID),
		campaign.Creator,
		campaign.Title,
		campaign.Description,
		storage.EncodeAmount(campaign.TargetAmount),
		storage.EncodeAmount(campaign.RaisedAmount),
		toMillis(campaign.Deadline),
		toMillis(campaign.CreatedAt),
		boolToInt(campaign.Completed),
		boolToInt(campaign.Funded),
		int64(campaign.ContributorsCount),
		campaign.Version,
		now,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("insert campaign %d: %w", campaign.ID, storage.ErrVersionConflict)
		}
		return fmt.Errorf("insert campaign %d: %w", campaign.ID, err)
	}
	return nil
}

func (st *stage) UpdateCampaign(ctx context.Context, campaign domain.Campaign, priorVersion int64) error {
	if err := st.active(); err != nil {
		return err
	}
	res, err := st.tx.ExecContext(ctx, `
UPDATE campaigns
SET raised_amount = ?, completed = ?, funded = ?, contributors_count = ?, version = ?, updated_at = ?
WHERE id = ? AND version = ?`,
		storage.EncodeAmount(campaign.RaisedAmount),
		boolToInt(campaign.Completed),
		boolToInt(campaign.Funded),
		int64(campaign.ContributorsCount),
		campaign.Version,
		toMillis(st.store.now()),
		int64(campaign.ID),
		priorVersion,
	)
	if err != nil {
		return fmt.Errorf("update campaign %d: %w", campaign.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign %d rows affected: %w", campaign.ID, err)
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = st.tx.QueryRowContext(ctx, `SELECT 1 FROM campaigns WHERE id = ?`, int64(campaign.ID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check campaign %d: %w", campaign.ID, err)
	}
	return storage.ErrVersionConflict
}

func (st *stage) PutContribution(ctx context.Context, campaignID uint64, identity string, amount uint64) error {
	if err := st.active(); err != nil {
		return err
	}
	_, err := st.tx.ExecContext(ctx, `
INSERT INTO contributions (campaign_id, identity, amount, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (campaign_id, identity) DO UPDATE SET
	amount = excluded.amount,
	updated_at = excluded.updated_at`,
		int64(campaignID), identity, storage.EncodeAmount(amount), toMillis(st.store.now()),
	)
	if err != nil {
		return fmt.Errorf("put contribution: %w", err)
	}
	return nil
}

func (st *stage) AppendEvents(ctx context.Context, events ...domain.Event) ([]storage.JournalEvent, error) {
	if err := st.active(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	var (
		lastSeq   int64
		prevChain string
	)
	err := st.tx.QueryRowContext(ctx,
		`SELECT seq, chain_hash FROM ledger_events ORDER BY seq DESC LIMIT 1`,
	).Scan(&lastSeq, &prevChain)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load journal head: %w", err)
	}

	now := toMillis(st.store.now())
	stored := make([]storage.JournalEvent, 0, len(events))
	for _, evt := range events {
		if evt.CampaignID == 0 {
			return nil, fmt.Errorf("event %s has no campaign id", evt.Type)
		}
		seq := uint64(lastSeq) + 1
		occurredAt := evt.OccurredAt.UTC()
		evt.OccurredAt = occurredAt
		if len(evt.PayloadJSON) == 0 {
			evt.PayloadJSON = []byte("{}")
		}

		eventHash, err := integrity.EventHash(integrity.Entry{
			Seq:         seq,
			CampaignID:  evt.CampaignID,
			Type:        string(evt.Type),
			Actor:       evt.Actor,
			Amount:      evt.Amount,
			OccurredAt:  occurredAt,
			PayloadJSON: evt.PayloadJSON,
		})
		if err != nil {
			return nil, err
		}
		chainHash := integrity.ChainHash(eventHash, prevChain)
		signature, keyID, err := st.store.keyring.Sign(evt.CampaignID, chainHash)
		if err != nil {
			return nil, fmt.Errorf("sign event %d: %w", seq, err)
		}

		_, err = st.tx.ExecContext(ctx, `
INSERT INTO ledger_events (
	seq, campaign_id, event_type, actor, amount, occurred_at, payload_json,
	event_hash, prev_hash, chain_hash, signature, signature_key_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(seq),
			int64(evt.CampaignID),
			string(evt.Type),
			evt.Actor,
			storage.EncodeAmount(evt.Amount),
			toMillis(occurredAt),
			evt.PayloadJSON,
			eventHash,
			prevChain,
			chainHash,
			signature,
			keyID,
		)
		if err != nil {
			if isConstraintError(err) {
				return nil, fmt.Errorf("append event %d: %w", seq, storage.ErrVersionConflict)
			}
			return nil, fmt.Errorf("append event %d: %w", seq, err)
		}

		_, err = st.tx.ExecContext(ctx, `
INSERT INTO notification_outbox (seq, event_type, status, attempt_count, next_attempt_at, last_error, updated_at)
VALUES (?, ?, ?, 0, ?, '', ?)`,
			int64(seq), string(evt.Type), outboxStatusPending, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("enqueue notification %d: %w", seq, err)
		}

		stored = append(stored, storage.JournalEvent{
			Seq:            seq,
			Event:          evt,
			EventHash:      eventHash,
			PrevHash:       prevChain,
			ChainHash:      chainHash,
			Signature:      signature,
			SignatureKeyID: keyID,
		})
		lastSeq = int64(seq)
		prevChain = chainHash
	}
	return stored, nil
}

func (st *stage) Commit() error {
	if err := st.active(); err != nil {
		return err
	}
	st.done = true
	if err := st.tx.Commit(); err != nil {
		if isBusyError(err) {
			return fmt.Errorf("commit ledger transaction: %w", storage.ErrVersionConflict)
		}
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

func (st *stage) Rollback() error {
	if st == nil || st.tx == nil || st.done {
		return nil
	}
	st.done = true
	if err := st.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback ledger transaction: %w", err)
	}
	return nil
}

func ensureAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected != 1 {
		return storage.ErrVersionConflict
	}
	return nil
}
