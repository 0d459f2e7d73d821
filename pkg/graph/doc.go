// Package graph defines the memory data model shared by both backend
// transports.
//
// Invariants:
// - A Fact with a non-nil InvalidAt is superseded and never currently true.
// - MemoryResult similarity, when present, is in [0,1].
// - Episodes are immutable once created.
package graph
