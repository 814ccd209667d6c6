// Package integrity signs and chains ledger journal entries so tampering with
// stored notifications is detectable.
package integrity
