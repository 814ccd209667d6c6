package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
)

// AppendAuditEvent records an operational audit event.
func (s *Store) AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if strings.TrimSpace(evt.Severity) == "" {
		return fmt.Errorf("severity is required")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	var attributes []byte
	if len(evt.Attributes) > 0 {
		payload, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("marshal audit attributes: %w", err)
		}
		attributes = payload
	}

	campaignID := sql.NullInt64{}
	if evt.CampaignID != 0 {
		campaignID = sql.NullInt64{Int64: int64(evt.CampaignID), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_events (
	timestamp, event_name, severity, campaign_id, actor_id, request_id, trace_id, span_id, attributes_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(evt.Timestamp),
		evt.EventName,
		evt.Severity,
		campaignID,
		toNullString(evt.ActorID),
		toNullString(evt.RequestID),
		toNullString(evt.TraceID),
		toNullString(evt.SpanID),
		attributes,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the most recent audit events, newest first. A zero
// campaignID lists across all campaigns.
func (s *Store) ListAuditEvents(ctx context.Context, campaignID uint64, limit int) ([]storage.AuditEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []storage.AuditEvent{}, nil
	}

	query := `SELECT timestamp, event_name, severity, campaign_id, actor_id, request_id, trace_id, span_id, attributes_json
		FROM audit_events`
	params := []any{}
	if campaignID != 0 {
		query += ` WHERE campaign_id = ?`
		params = append(params, int64(campaignID))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	params = append(params, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]storage.AuditEvent, 0, limit)
	for rows.Next() {
		var (
			timestamp                           int64
			evt                                 storage.AuditEvent
			campaign                            sql.NullInt64
			actorID, requestID, traceID, spanID sql.NullString
			attributes                          []byte
		)
		if err := rows.Scan(&timestamp, &evt.EventName, &evt.Severity, &campaign,
			&actorID, &requestID, &traceID, &spanID, &attributes); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.Timestamp = fromMillis(timestamp)
		if campaign.Valid {
			evt.CampaignID = uint64(campaign.Int64)
		}
		evt.ActorID = actorID.String
		evt.RequestID = requestID.String
		evt.TraceID = traceID.String
		evt.SpanID = spanID.String
		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &evt.Attributes); err != nil {
				return nil, fmt.Errorf("decode audit attributes: %w", err)
			}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func toNullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
