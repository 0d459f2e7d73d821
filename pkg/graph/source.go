package graph

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Source is the kind of content an episode was ingested from.
type Source string

const (
	SourceText    Source = "text"
	SourceJSON    Source = "json"
	SourceMessage Source = "message"
)

// rolePattern matches conversational transcripts such as
// "user: hello" or "Assistant: sure thing".
var rolePattern = regexp.MustCompile(`(?im)^\s*(user|assistant|system|human|ai)\s*:`)

// DetectSource infers an episode's source kind from its content. Trimmed
// content that parses as a JSON object or array is json, content shaped
// like a conversational transcript is message, everything else is text.
func DetectSource(content string) Source {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return SourceText
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v interface{}
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return SourceJSON
		}
	}

	if rolePattern.MatchString(trimmed) {
		return SourceMessage
	}

	return SourceText
}

// ParseSource validates an explicitly supplied source kind. Unknown
// values fall back to content detection so callers can pass user input
// straight through.
func ParseSource(explicit, content string) Source {
	switch Source(strings.ToLower(strings.TrimSpace(explicit))) {
	case SourceText:
		return SourceText
	case SourceJSON:
		return SourceJSON
	case SourceMessage:
		return SourceMessage
	default:
		return DetectSource(content)
	}
}
