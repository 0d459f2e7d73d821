// Package memory is the facade the agent integration calls. It resolves
// logical scopes to backend group ids, drives the selected transport
// client, normalizes both transports' result shapes into one memory
// model, applies temporal validity, and assembles the prompt-context
// block.
//
// Invariants:
// - Exactly one transport client is active for the Service lifetime.
// - Facts with a non-nil InvalidAt never surface as currently true.
// - Group-id resolution is pure; same inputs always give the same id.
//
// Usage:
//
//	svc, _ := memory.NewService(memory.Config{Client: client, UserTag: "alice", ProjectTag: "fp42"})
//	results, _ := svc.Search(ctx, "deploy steps", "", 10, "")
//	block, _ := svc.Context(ctx, "deploy steps")
//	_, _ = results, block
package memory
