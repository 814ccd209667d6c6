// Package migrations contains embedded SQL migrations for the custody vault.
package migrations

import "embed"

// VaultFS holds the vault schema history.
//
//go:embed vault/*.sql
var VaultFS embed.FS
