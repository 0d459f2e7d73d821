// Package transport provides the two interchangeable clients that talk
// to the remote temporal knowledge-graph service: a stateful
// JSON-RPC-over-HTTP client with a negotiated session and streamed
// responses, and a stateless REST client.
//
// Invariants:
// - Every operation returns an error instead of panicking; backend
//   unavailability is ordinary data for callers.
// - A call never exceeds the configured ceiling; exceeding it yields
//   ErrTimeout, distinct from HTTP-level failures.
// - The stateful client retries a session-expired call at most once.
package transport
