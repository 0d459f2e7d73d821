// Package scope resolves logical memory scopes to backend group
// identifiers. Resolution is pure string composition: the same inputs
// always yield the same group id, across calls and process restarts.
package scope

import (
	"fmt"
	"strings"

	"github.com/harun/recall/pkg/graph"
)

// DefaultPrefix is used when no group-id prefix is configured.
const DefaultPrefix = "recall"

// Resolve maps a (prefix, scope, tag) triple to a backend group id of
// the form {prefix}-{scope}-{tag}. The tag is typically a stable user
// identifier or a project directory fingerprint.
func Resolve(prefix string, s graph.Scope, tag string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s-%s", sanitize(prefix), s, sanitize(tag))
}

// Parse interprets a scope name supplied by a caller. An empty name
// means "both scopes" and is reported via ok=false.
func Parse(name string) (graph.Scope, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "user":
		return graph.ScopeUser, true
	case "project":
		return graph.ScopeProject, true
	default:
		return "", false
	}
}

// sanitize lowercases and replaces characters the backend rejects in
// group ids. Deterministic so resolution stays stable.
func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
