package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
)

const (
	outboxDeadLetterThreshold = 8
	outboxProcessingLease     = 2 * time.Minute
	outboxMaxBackoff          = 5 * time.Minute
)

type outboxRow struct {
	Seq          uint64
	EventType    string
	AttemptCount int
}

// ProcessOutbox claims due notification rows and hands each journaled event to
// deliver. Delivered rows are removed; failures are rescheduled with
// exponential backoff and dead-lettered after repeated attempts.
func (s *Store) ProcessOutbox(
	ctx context.Context,
	now time.Time,
	limit int,
	deliver func(context.Context, storage.JournalEvent) error,
) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if deliver == nil {
		return 0, fmt.Errorf("outbox deliver callback is required")
	}
	if limit <= 0 {
		return 0, nil
	}
	if now.IsZero() {
		now = s.now()
	}

	rows, err := s.claimOutboxDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, row := range rows {
		evt, loadErr := s.getJournalEvent(ctx, row.Seq)
		if loadErr != nil {
			attempt := row.AttemptCount + 1
			if err := s.markOutboxRetry(ctx, row, now, attempt, now.Add(outboxRetryBackoff(attempt)), fmt.Sprintf("load event: %v", loadErr)); err != nil {
				return processed, err
			}
			processed++
			continue
		}

		if deliverErr := deliver(ctx, evt); deliverErr != nil {
			attempt := row.AttemptCount + 1
			if err := s.markOutboxRetry(ctx, row, now, attempt, now.Add(outboxRetryBackoff(attempt)), fmt.Sprintf("deliver: %v", deliverErr)); err != nil {
				return processed, err
			}
			processed++
			continue
		}

		if err := s.completeOutboxRow(ctx, row); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (s *Store) getJournalEvent(ctx context.Context, seq uint64) (storage.JournalEvent, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM ledger_events WHERE seq = ?`, int64(seq))
	evt, err := scanJournalEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.JournalEvent{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.JournalEvent{}, fmt.Errorf("get event %d: %w", seq, err)
	}
	return evt, nil
}

func (s *Store) claimOutboxDue(ctx context.Context, now time.Time, limit int) ([]outboxRow, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin outbox claim tx: %w", err)
	}
	defer tx.Rollback()

	staleBefore := now.Add(-outboxProcessingLease)
	rows, err := tx.QueryContext(
		ctx,
		`SELECT seq, event_type, attempt_count
		 FROM notification_outbox
		 WHERE (
			 status IN ('pending', 'failed') AND next_attempt_at <= ?
		 ) OR (
			 status = 'processing' AND updated_at <= ?
		 )
		 ORDER BY next_attempt_at, seq
		 LIMIT ?`,
		toMillis(now),
		toMillis(staleBefore),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due outbox rows: %w", err)
	}

	candidates := make([]outboxRow, 0, limit)
	for rows.Next() {
		var (
			row outboxRow
			seq int64
		)
		if err := rows.Scan(&seq, &row.EventType, &row.AttemptCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due outbox row: %w", err)
		}
		row.Seq = uint64(seq)
		candidates = append(candidates, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate due outbox rows: %w", err)
	}
	rows.Close()

	claimed := make([]outboxRow, 0, len(candidates))
	for _, candidate := range candidates {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE notification_outbox
			 SET status = 'processing', updated_at = ?
			 WHERE seq = ?
			   AND (
			   	(status IN ('pending', 'failed') AND next_attempt_at <= ?)
			   	OR (status = 'processing' AND updated_at <= ?)
			   )`,
			toMillis(now),
			int64(candidate.Seq),
			toMillis(now),
			toMillis(staleBefore),
		)
		if err != nil {
			return nil, fmt.Errorf("claim outbox row %d: %w", candidate.Seq, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim outbox row rows affected %d: %w", candidate.Seq, err)
		}
		if affected == 1 {
			claimed = append(claimed, candidate)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit outbox claim tx: %w", err)
	}
	return claimed, nil
}

func (s *Store) markOutboxRetry(ctx context.Context, row outboxRow, now time.Time, attempt int, nextAttempt time.Time, lastError string) error {
	status := "failed"
	if attempt >= outboxDeadLetterThreshold {
		status = "dead"
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE notification_outbox
		 SET status = ?,
		     attempt_count = ?,
		     next_attempt_at = ?,
		     last_error = ?,
		     updated_at = ?
		 WHERE seq = ? AND status = 'processing'`,
		status,
		attempt,
		toMillis(nextAttempt),
		lastError,
		toMillis(now),
		int64(row.Seq),
	)
	if err != nil {
		return fmt.Errorf("mark outbox retry for row %d: %w", row.Seq, err)
	}
	return ensureOutboxSingleRow(result, row, "mark outbox retry for row", "updated")
}

func (s *Store) completeOutboxRow(ctx context.Context, row outboxRow) error {
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM notification_outbox WHERE seq = ? AND status = 'processing'`,
		int64(row.Seq),
	)
	if err != nil {
		return fmt.Errorf("complete outbox row %d: %w", row.Seq, err)
	}
	return ensureOutboxSingleRow(result, row, "complete outbox row", "deleted")
}

func ensureOutboxSingleRow(result sql.Result, row outboxRow, operation, verb string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected %d: %w", operation, row.Seq, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s %d: expected 1 row %s, got %d", operation, row.Seq, verb, affected)
	}
	return nil
}

// GetOutboxSummary returns notification queue depth by status.
func (s *Store) GetOutboxSummary(ctx context.Context) (storage.OutboxSummary, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OutboxSummary{}, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT status, COUNT(*) FROM notification_outbox GROUP BY status`)
	if err != nil {
		return storage.OutboxSummary{}, fmt.Errorf("query outbox summary counts: %w", err)
	}
	defer rows.Close()

	summary := storage.OutboxSummary{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return storage.OutboxSummary{}, fmt.Errorf("scan outbox summary count: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(status)) {
		case "pending":
			summary.PendingCount = count
		case "processing":
			summary.ProcessingCount = count
		case "failed":
			summary.FailedCount = count
		case "dead":
			summary.DeadCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return storage.OutboxSummary{}, fmt.Errorf("iterate outbox summary counts: %w", err)
	}
	return summary, nil
}

// RequeueDeadOutbox moves up to limit dead rows back to pending, oldest first.
func (s *Store) RequeueDeadOutbox(ctx context.Context, limit int, now time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, fmt.Errorf("outbox requeue limit must be greater than zero")
	}
	if now.IsZero() {
		now = s.now()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE notification_outbox
		 SET status = 'pending',
		     attempt_count = 0,
		     next_attempt_at = ?,
		     last_error = '',
		     updated_at = ?
		 WHERE status = 'dead'
		   AND seq IN (
			   SELECT seq FROM notification_outbox
			   WHERE status = 'dead'
			   ORDER BY next_attempt_at ASC, seq ASC
			   LIMIT ?
		   )`,
		toMillis(now),
		toMillis(now),
		limit,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox rows: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox rows affected: %w", err)
	}
	return int(affected), nil
}

func outboxRetryBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 9 {
		return outboxMaxBackoff
	}
	backoff := time.Second << (attempt - 1)
	if backoff > outboxMaxBackoff {
		return outboxMaxBackoff
	}
	return backoff
}
