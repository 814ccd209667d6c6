// Package ledger parses ledger command flags and starts the ledger runtime.
package ledger

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/pledgebank/internal/platform/cmd"
	"github.com/louisbranch/pledgebank/internal/platform/identity"
	"github.com/louisbranch/pledgebank/internal/services/ledger/server"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage/integrity"
)

// Config holds ledger command configuration.
type Config struct {
	Port           int           `env:"LEDGER_PORT"               envDefault:"8090"`
	Addr           string        `env:"LEDGER_ADDR"`
	DBPath         string        `env:"LEDGER_DB_PATH"            envDefault:"data/ledger.db"`
	VaultDBPath    string        `env:"LEDGER_VAULT_DB_PATH"      envDefault:"data/vault.db"`
	NotifyEnabled  bool          `env:"LEDGER_NOTIFY_ENABLED"     envDefault:"true"`
	NotifyInterval time.Duration `env:"LEDGER_NOTIFY_INTERVAL"    envDefault:"2s"`
	WebhookURL     string        `env:"LEDGER_NOTIFY_WEBHOOK_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The ledger server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The ledger server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the ledger SQLite database")
	fs.StringVar(&cfg.VaultDBPath, "vault-db", cfg.VaultDBPath, "Path to the custody vault SQLite database")
	fs.BoolVar(&cfg.NotifyEnabled, "notify", cfg.NotifyEnabled, "Deliver lifecycle notifications")
	fs.DurationVar(&cfg.NotifyInterval, "notify-interval", cfg.NotifyInterval, "Notification outbox poll interval")
	fs.StringVar(&cfg.WebhookURL, "webhook", cfg.WebhookURL, "Optional URL that receives notifications as JSON")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// serverConfig loads the secrets the ledger needs from the environment.
func serverConfig(cfg Config) (server.Config, error) {
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return server.Config{}, err
	}
	verifier, err := identity.LoadVerifierConfigFromEnv(nil)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:           cfg.Addr,
		Port:           cfg.Port,
		DBPath:         cfg.DBPath,
		VaultDBPath:    cfg.VaultDBPath,
		NotifyEnabled:  cfg.NotifyEnabled,
		NotifyInterval: cfg.NotifyInterval,
		WebhookURL:     cfg.WebhookURL,
		Verifier:       verifier,
		Keyring:        keyring,
	}, nil
}

// Run starts the ledger API service.
func Run(ctx context.Context, cfg Config) error {
	serverCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(ctx context.Context) error {
		return server.Run(ctx, serverCfg)
	})
}
