// Package telemetry records operational audit events.
//
// Audit events are distinct from the ledger journal: the journal is the
// signed record of accepted state changes, while telemetry captures
// rejections, transfer failures and delivery problems for operators.
package telemetry
