// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single call from the MCP bridge to
// the ledger.
const GRPCRequest = 5 * time.Second

// Transfer caps a single custody transfer.
const Transfer = 3 * time.Second

// Webhook caps one notification delivery attempt.
const Webhook = 5 * time.Second

// Shutdown limits how long a server waits for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second
