// Package sentinel provides an immutable error type for sentinel error declarations.
//
// Sentinel errors declared with errors.New are mutable variables that consumers
// can reassign. Error is a string-based type that can be declared as a const,
// so the descriptor table's error vocabulary (bad descriptor, too many open
// files, and so on) cannot be reassigned by importers while still matching
// through wrapped chains with errors.Is.
//
// With attaches call-site detail such as the offending descriptor number
// without losing the sentinel identity.
package sentinel
