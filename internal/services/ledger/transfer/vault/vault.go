// Package vault implements transfer.Transferrer as a SQLite custody vault.
// Each transfer is recorded once by instruction id and credits the
// recipient's balance in the same transaction.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/bits"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"github.com/louisbranch/pledgebank/internal/services/ledger/transfer"
	"github.com/louisbranch/pledgebank/internal/services/ledger/transfer/vault/migrations"
	_ "modernc.org/sqlite"
)

var _ transfer.Transferrer = (*Vault)(nil)

// ErrTransferNotFound reports an unknown instruction id.
var ErrTransferNotFound = transfer.ErrNotFound

// Vault is a SQLite-backed custody account book.
type Vault struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Option configures vault behavior.
type Option func(*Vault)

// WithClock overrides the clock used to stamp transfers.
func WithClock(clock func() time.Time) Option {
	return func(v *Vault) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// Open opens the vault database at path and applies embedded migrations.
func Open(path string, opts ...Option) (*Vault, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vault db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping vault db: %w", err)
	}

	v := &Vault{sqlDB: sqlDB, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.VaultFS, "vault"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run vault migrations: %w", err)
	}
	return v, nil
}

// Close closes the vault database. It is nil-safe.
func (v *Vault) Close() error {
	if v == nil || v.sqlDB == nil {
		return nil
	}
	return v.sqlDB.Close()
}

func (v *Vault) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v == nil || v.sqlDB == nil {
		return fmt.Errorf("vault is not configured")
	}
	return nil
}

// Transfer credits the instruction's recipient. Replaying an instruction id
// that already completed returns the original receipt without moving value
// again.
func (v *Vault) Transfer(ctx context.Context, ins transfer.Instruction) (transfer.Receipt, error) {
	if err := v.ready(ctx); err != nil {
		return transfer.Receipt{}, err
	}
	if err := ins.Validate(); err != nil {
		return transfer.Receipt{}, err
	}

	tx, err := v.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return transfer.Receipt{}, fmt.Errorf("begin transfer tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := getTransfer(ctx, tx, ins.ID)
	switch {
	case err == nil:
		if existing.Recipient != ins.Recipient || existing.Amount != ins.Amount || existing.CampaignID != ins.CampaignID {
			return transfer.Receipt{}, fmt.Errorf("transfer %s: %w", ins.ID, transfer.ErrInstructionMismatch)
		}
		return existing, nil
	case !errors.Is(err, ErrTransferNotFound):
		return transfer.Receipt{}, err
	}

	var frozen int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM frozen_accounts WHERE account = ?`, ins.Recipient).Scan(&frozen)
	if err == nil {
		return transfer.Receipt{}, fmt.Errorf("transfer %s to %s: %w", ins.ID, ins.Recipient, transfer.ErrAccountFrozen)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return transfer.Receipt{}, fmt.Errorf("check frozen account: %w", err)
	}

	balance, err := balanceOf(ctx, tx, ins.Recipient)
	if err != nil {
		return transfer.Receipt{}, err
	}
	credited, carry := bits.Add64(balance, ins.Amount, 0)
	if carry != 0 {
		return transfer.Receipt{}, fmt.Errorf("transfer %s: recipient balance overflow", ins.ID)
	}

	now := v.clock().UTC().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO balances (account, amount, updated_at) VALUES (?, ?, ?)
ON CONFLICT (account) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		ins.Recipient, storage.EncodeAmount(credited), now.UnixMilli(),
	); err != nil {
		return transfer.Receipt{}, fmt.Errorf("credit %s: %w", ins.Recipient, err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO transfers (id, kind, campaign_id, recipient, amount, completed_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		ins.ID, string(ins.Kind), int64(ins.CampaignID), ins.Recipient, storage.EncodeAmount(ins.Amount), now.UnixMilli(),
	); err != nil {
		return transfer.Receipt{}, fmt.Errorf("record transfer %s: %w", ins.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return transfer.Receipt{}, fmt.Errorf("commit transfer tx: %w", err)
	}

	return transfer.Receipt{
		ID:          ins.ID,
		Kind:        ins.Kind,
		CampaignID:  ins.CampaignID,
		Recipient:   ins.Recipient,
		Amount:      ins.Amount,
		CompletedAt: now,
	}, nil
}

// GetTransfer returns a recorded transfer by instruction id.
func (v *Vault) GetTransfer(ctx context.Context, id string) (transfer.Receipt, error) {
	if err := v.ready(ctx); err != nil {
		return transfer.Receipt{}, err
	}
	return getTransfer(ctx, v.sqlDB, id)
}

// Balance returns the total value paid out to account.
func (v *Vault) Balance(ctx context.Context, account string) (uint64, error) {
	if err := v.ready(ctx); err != nil {
		return 0, err
	}
	return balanceOf(ctx, v.sqlDB, account)
}

// FreezeAccount blocks future transfers to account.
func (v *Vault) FreezeAccount(ctx context.Context, account, reason string) error {
	if err := v.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(account) == "" {
		return fmt.Errorf("account is required")
	}
	_, err := v.sqlDB.ExecContext(ctx, `
INSERT INTO frozen_accounts (account, reason, frozen_at) VALUES (?, ?, ?)
ON CONFLICT (account) DO UPDATE SET reason = excluded.reason`,
		account, reason, v.clock().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("freeze account %s: %w", account, err)
	}
	return nil
}

// UnfreezeAccount lifts a freeze. Unfreezing an account that is not frozen
// is a no-op.
func (v *Vault) UnfreezeAccount(ctx context.Context, account string) error {
	if err := v.ready(ctx); err != nil {
		return err
	}
	if _, err := v.sqlDB.ExecContext(ctx, `DELETE FROM frozen_accounts WHERE account = ?`, account); err != nil {
		return fmt.Errorf("unfreeze account %s: %w", account, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTransfer(ctx context.Context, q queryer, id string) (transfer.Receipt, error) {
	var (
		receipt     transfer.Receipt
		kind        string
		campaignID  int64
		amount      string
		completedAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, kind, campaign_id, recipient, amount, completed_at FROM transfers WHERE id = ?`, id,
	).Scan(&receipt.ID, &kind, &campaignID, &receipt.Recipient, &amount, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return transfer.Receipt{}, ErrTransferNotFound
	}
	if err != nil {
		return transfer.Receipt{}, fmt.Errorf("get transfer %s: %w", id, err)
	}
	value, err := storage.DecodeAmount(amount)
	if err != nil {
		return transfer.Receipt{}, err
	}
	receipt.Kind = domain.PayoutKind(kind)
	receipt.CampaignID = uint64(campaignID)
	receipt.Amount = value
	receipt.CompletedAt = time.UnixMilli(completedAt).UTC()
	return receipt, nil
}

func balanceOf(ctx context.Context, q queryer, account string) (uint64, error) {
	var amount string
	err := q.QueryRowContext(ctx, `SELECT amount FROM balances WHERE account = ?`, account).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", account, err)
	}
	return storage.DecodeAmount(amount)
}
