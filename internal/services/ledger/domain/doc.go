// Package domain is the campaign custody state machine.
//
// Deciders are pure: they take the loaded campaign state, a command and the
// current time, and return either the single event the command produces (plus
// the payout it requires) or a rejection. Fold applies an accepted event to
// state. The app layer is responsible for serialization, persistence and the
// payout transfer; nothing here performs I/O.
package domain
