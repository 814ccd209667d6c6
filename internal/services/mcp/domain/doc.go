// Package domain defines MCP tool and resource handlers for the campaign
// ledger.
//
// Each handler calls the ledger over gRPC with a bounded timeout and a fresh
// invocation id, then maps the response into flat JSON results. Identifiers
// and amounts are decimal strings so assistants never lose 64-bit precision.
package domain
