// Package interceptors holds the ledger's unary gRPC interceptors for caller
// identity and audit telemetry.
package interceptors
