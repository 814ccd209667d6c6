package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
)

const campaignColumns = `id, creator, title, description, target_amount, raised_amount,
	deadline, created_at, completed, funded, contributors_count, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (domain.Campaign, error) {
	var (
		id, deadline, createdAt, completed, funded, contributors, version int64
		creator, title, description, target, raised                      string
	)
	if err := row.Scan(&id, &creator, &title, &description, &target, &raised,
		&deadline, &createdAt, &completed, &funded, &contributors, &version); err != nil {
		return domain.Campaign{}, err
	}
	targetAmount, err := storage.DecodeAmount(target)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign %d target: %w", id, err)
	}
	raisedAmount, err := storage.DecodeAmount(raised)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign %d raised: %w", id, err)
	}
	return domain.Campaign{
		ID:                uint64(id),
		Creator:           creator,
		Title:             title,
		Description:       description,
		TargetAmount:      targetAmount,
		RaisedAmount:      raisedAmount,
		Deadline:          fromMillis(deadline),
		CreatedAt:         fromMillis(createdAt),
		Completed:         completed != 0,
		Funded:            funded != 0,
		ContributorsCount: uint64(contributors),
		Version:           version,
	}, nil
}

// GetCampaign returns one campaign or storage.ErrNotFound.
func (s *Store) GetCampaign(ctx context.Context, id uint64) (domain.Campaign, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Campaign{}, err
	}
	if id == 0 {
		return domain.Campaign{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, int64(id))
	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Campaign{}, storage.ErrNotFound
		}
		return domain.Campaign{}, fmt.Errorf("get campaign %d: %w", id, err)
	}
	return campaign, nil
}

// CampaignCount returns the number of campaigns ever created.
func (s *Store) CampaignCount(ctx context.Context) (uint64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT campaign_count FROM ledger_counter WHERE id = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("get campaign count: %w", err)
	}
	return uint64(count), nil
}

// GetContribution returns the identity's outstanding entry, zero when none.
func (s *Store) GetContribution(ctx context.Context, campaignID uint64, identity string) (uint64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var amount string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT amount FROM contributions WHERE campaign_id = ? AND identity = ?`,
		int64(campaignID), identity,
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get contribution: %w", err)
	}
	return storage.DecodeAmount(amount)
}

// ListContributions returns every non-zero entry for one campaign keyed by
// identity. Replay and audit tooling use it to rebuild domain state.
func (s *Store) ListContributions(ctx context.Context, campaignID uint64) (map[string]uint64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT identity, amount FROM contributions WHERE campaign_id = ? AND amount <> ?`,
		int64(campaignID), storage.EncodeAmount(0),
	)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]uint64)
	for rows.Next() {
		var identity, amount string
		if err := rows.Scan(&identity, &amount); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		value, err := storage.DecodeAmount(amount)
		if err != nil {
			return nil, err
		}
		entries[identity] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributions: %w", err)
	}
	return entries, nil
}

// ListCampaigns returns campaigns with id greater than afterID matching cond,
// ordered by id.
func (s *Store) ListCampaigns(ctx context.Context, pageSize int, afterID uint64, cond storage.Condition) (storage.CampaignPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.CampaignPage{}, err
	}
	if pageSize <= 0 {
		return storage.CampaignPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + campaignColumns + ` FROM campaigns WHERE id > ?`)
	params := []any{int64(afterID)}
	if clause := strings.TrimSpace(cond.Clause); clause != "" {
		query.WriteString(" AND (" + clause + ")")
		params = append(params, cond.Params...)
	}
	query.WriteString(` ORDER BY id LIMIT ?`)
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query.String(), params...)
	if err != nil {
		return storage.CampaignPage{}, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	page := storage.CampaignPage{Campaigns: make([]domain.Campaign, 0, pageSize)}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return storage.CampaignPage{}, fmt.Errorf("scan campaign: %w", err)
		}
		page.Campaigns = append(page.Campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return storage.CampaignPage{}, fmt.Errorf("iterate campaigns: %w", err)
	}

	if len(page.Campaigns) > pageSize {
		page.Campaigns = page.Campaigns[:pageSize]
		page.LastID = page.Campaigns[pageSize-1].ID
	}
	return page, nil
}
