package hooks

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// requestSchema validates hook requests before dispatch. Unknown extra
// fields are tolerated: agent hook payloads carry host metadata
// (session id, working directory) this handler does not consume.
const requestSchema = `{
	"type": "object",
	"properties": {
		"op": {
			"type": "string",
			"enum": ["add", "search", "context", "profile", "list", "graph", "forget", "clear", "status", "help"]
		},
		"content":     {"type": "string"},
		"scope":       {"type": "string", "enum": ["", "user", "project"]},
		"source":      {"type": "string", "enum": ["", "text", "json", "message"]},
		"query":       {"type": "string"},
		"limit":       {"type": "integer", "minimum": 0},
		"id":          {"type": "string"},
		"center_node": {"type": "string"}
	},
	"required": ["op"]
}`

func compileRequestSchema() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling request schema: %w", err)
	}
	return schema, nil
}

// validateRequest checks one raw request body against the schema and
// flattens the validation errors into one message.
func validateRequest(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("malformed request: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
