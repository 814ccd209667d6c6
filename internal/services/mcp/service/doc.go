// Package service hosts the MCP server that bridges assistants to the
// campaign ledger.
//
// The server dials the ledger once, registers the campaign tools and the
// campaigns://count resource, and serves over stdio until its context ends.
package service
