package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"
)

// rpcRequest is the JSON-RPC 2.0 envelope every stateful-transport
// operation is wrapped in.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// isResponse reports whether the frame is an actual JSON-RPC response
// rather than a notification or keepalive.
func (r *rpcResponse) isResponse() bool {
	return r.JSONRPC == "2.0" && (r.Result != nil || r.Error != nil)
}

// contentBlock is one entry of a wrapped tool result.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolResult is the optional wrapping the server applies to tool call
// results: a list of typed content blocks plus an error flag.
type toolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// decodeRPCBody extracts the first JSON-RPC response frame from a
// response body. The server answers either with a single JSON document
// or with a server-sent-event stream; contentType decides which.
func decodeRPCBody(contentType string, body io.Reader) (*rpcResponse, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "text/event-stream":
		return decodeEventStream(body)
	default:
		var resp rpcResponse
		if err := json.NewDecoder(body).Decode(&resp); err != nil {
			return nil, &ProtocolError{Message: fmt.Sprintf("malformed response body: %v", err)}
		}
		return &resp, nil
	}
}

// decodeEventStream scans SSE lines for the first parseable JSON-RPC
// response frame.
func decodeEventStream(body io.Reader) (*rpcResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			continue
		}
		if resp.isResponse() {
			return &resp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("reading event stream: %v", err)}
	}
	return nil, &ProtocolError{Message: "event stream contained no response frame"}
}

// unwrapResult peels the optional content-block wrapping off a
// successful result. When the result is a block list, the first text
// block is taken and JSON-parsed; text that is not JSON comes back as a
// JSON string so callers can decode uniformly.
func unwrapResult(result json.RawMessage) (json.RawMessage, error) {
	var wrapped toolResult
	if err := json.Unmarshal(result, &wrapped); err != nil || len(wrapped.Content) == 0 {
		// Direct result, no wrapping.
		return result, nil
	}

	var text string
	for _, block := range wrapped.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if wrapped.IsError {
		return nil, &ProtocolError{Message: text}
	}
	if text == "" {
		return nil, &ProtocolError{Message: "tool result contained no text block"}
	}

	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	quoted, err := json.Marshal(text)
	if err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("encoding text result: %v", err)}
	}
	return quoted, nil
}
