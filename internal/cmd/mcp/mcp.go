// Package mcp parses MCP command flags and starts the stdio bridge.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/pledgebank/internal/platform/cmd"
	mcpservice "github.com/louisbranch/pledgebank/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	LedgerAddr string `env:"MCP_LEDGER_ADDR"     envDefault:"localhost:8090"`
	Token      string `env:"MCP_IDENTITY_TOKEN"`
	Locale     string `env:"MCP_LOCALE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.LedgerAddr, "addr", cfg.LedgerAddr, "ledger server address")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "bearer token the bridge acts with")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for ledger error messages")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			LedgerAddr: cfg.LedgerAddr,
			Token:      cfg.Token,
			Locale:     cfg.Locale,
		})
	})
}
