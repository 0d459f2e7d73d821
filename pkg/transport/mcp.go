package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/pkg/graph"
)

const (
	sessionHeader   = "Mcp-Session-Id"
	protocolVersion = "2025-03-26"
	clientName      = "recall"
	clientVersion   = "0.1.0"
)

// MCPConfig configures the stateful JSON-RPC client.
type MCPConfig struct {
	BaseURL     string
	Logger      zerolog.Logger
	HTTPClient  *http.Client  // optional, defaults to http.DefaultClient
	CallTimeout time.Duration // optional, defaults to DefaultCallTimeout
}

// MCPClient speaks the stateful JSON-RPC-over-HTTP protocol. It holds
// the session token and the monotonic request-id counter; both are
// guarded for concurrent callers.
type MCPClient struct {
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger
	timeout time.Duration

	reqID atomic.Int64

	mu        sync.Mutex
	sessionID string
	inflight  *handshake
}

// handshake is one in-flight session initialization. Concurrent callers
// before the first session await the same attempt rather than issuing
// duplicate handshakes.
type handshake struct {
	done      chan struct{}
	sessionID string
	err       error
}

// NewMCPClient creates a stateful client. An empty base URL is allowed;
// every call then fails with ErrNotConfigured.
func NewMCPClient(cfg MCPConfig) *MCPClient {
	observability.EnsureRegistered()

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &MCPClient{
		baseURL: cfg.BaseURL,
		httpc:   httpc,
		logger:  cfg.Logger.With().Str("component", "transport.mcp").Logger(),
		timeout: timeout,
	}
}

// Name implements Client.
func (c *MCPClient) Name() string { return "mcp" }

// SupportsNodeSearch implements Client.
func (c *MCPClient) SupportsNodeSearch() bool { return true }

// AddMemory implements Client.
func (c *MCPClient) AddMemory(ctx context.Context, ep graph.EpisodeInput) error {
	source := ep.Source
	if source == "" {
		source = graph.DetectSource(ep.Content)
	}
	return c.callTool(ctx, "add_memory", map[string]interface{}{
		"name":         ep.Name,
		"episode_body": ep.Content,
		"source":       string(source),
		"group_id":     ep.GroupID,
	}, nil)
}

// SearchNodes implements Client.
func (c *MCPClient) SearchNodes(ctx context.Context, q SearchQuery) ([]graph.Node, error) {
	args := map[string]interface{}{
		"query":     q.Query,
		"group_ids": q.GroupIDs,
		"max_nodes": q.MaxResults,
	}
	if len(q.EntityTypes) > 0 {
		args["entity_types"] = q.EntityTypes
	}
	if q.CenterNodeUUID != "" {
		args["center_node_uuid"] = q.CenterNodeUUID
	}

	var out struct {
		Nodes []graph.Node `json:"nodes"`
	}
	if err := c.callTool(ctx, "search_memory_nodes", args, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

// SearchFacts implements Client.
func (c *MCPClient) SearchFacts(ctx context.Context, q SearchQuery) ([]graph.Fact, error) {
	args := map[string]interface{}{
		"query":     q.Query,
		"group_ids": q.GroupIDs,
		"max_facts": q.MaxResults,
	}
	if q.CenterNodeUUID != "" {
		args["center_node_uuid"] = q.CenterNodeUUID
	}

	var out struct {
		Facts []graph.Fact `json:"facts"`
	}
	if err := c.callTool(ctx, "search_memory_facts", args, &out); err != nil {
		return nil, err
	}
	return out.Facts, nil
}

// GetEpisodes implements Client.
func (c *MCPClient) GetEpisodes(ctx context.Context, groupID string, lastN int) ([]graph.Episode, error) {
	var raw json.RawMessage
	err := c.callTool(ctx, "get_episodes", map[string]interface{}{
		"group_id": groupID,
		"last_n":   lastN,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeEpisodes(raw)
}

// DeleteEpisode implements Client.
func (c *MCPClient) DeleteEpisode(ctx context.Context, uuid string) error {
	return c.callTool(ctx, "delete_episode", map[string]interface{}{"uuid": uuid}, nil)
}

// GetEntityEdge implements Client.
func (c *MCPClient) GetEntityEdge(ctx context.Context, uuid string) (*graph.Fact, error) {
	var fact graph.Fact
	if err := c.callTool(ctx, "get_entity_edge", map[string]interface{}{"uuid": uuid}, &fact); err != nil {
		return nil, err
	}
	return &fact, nil
}

// DeleteEntityEdge implements Client.
func (c *MCPClient) DeleteEntityEdge(ctx context.Context, uuid string) error {
	return c.callTool(ctx, "delete_entity_edge", map[string]interface{}{"uuid": uuid}, nil)
}

// ClearGroup implements Client.
func (c *MCPClient) ClearGroup(ctx context.Context, groupID string) error {
	return c.callTool(ctx, "clear_graph", map[string]interface{}{"group_id": groupID}, nil)
}

// Status implements Client.
func (c *MCPClient) Status(ctx context.Context) (*graph.Status, error) {
	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.callTool(ctx, "get_status", map[string]interface{}{}, &out); err != nil {
		return nil, err
	}
	return &graph.Status{
		OK:        out.Status == "ok",
		Transport: c.Name(),
		Message:   out.Message,
	}, nil
}

// callTool wraps one operation in a tools/call envelope and executes it,
// retrying exactly once after a session-expired error. The retry is a
// bounded loop, never recursion.
func (c *MCPClient) callTool(ctx context.Context, tool string, args map[string]interface{}, out interface{}) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	started := time.Now()
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sessionID, err := c.ensureSession(ctx)
		if err != nil {
			return err
		}

		result, err := c.roundTrip(ctx, sessionID, rpcRequest{
			JSONRPC: "2.0",
			ID:      c.reqID.Add(1),
			Method:  "tools/call",
			Params: map[string]interface{}{
				"name":      tool,
				"arguments": args,
			},
		})
		if err == nil {
			observability.RecordBackendCall(c.Name(), tool, time.Since(started), true)
			return decodeResult(result, out)
		}

		if !isSessionExpired(err) {
			observability.RecordBackendCall(c.Name(), tool, time.Since(started), false)
			return err
		}

		c.logger.Warn().Str("tool", tool).Msg("Session expired, re-establishing")
		c.invalidateSession(sessionID)
		observability.RecordSessionRetry()
		lastErr = err
	}

	observability.RecordBackendCall(c.Name(), tool, time.Since(started), false)
	return lastErr
}

// ensureSession returns the current session token, establishing one if
// needed. At most one handshake is in flight at a time.
func (c *MCPClient) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.sessionID != "" {
		id := c.sessionID
		c.mu.Unlock()
		return id, nil
	}
	if c.inflight != nil {
		h := c.inflight
		c.mu.Unlock()
		select {
		case <-h.done:
			return h.sessionID, h.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	h := &handshake{done: make(chan struct{})}
	c.inflight = h
	c.mu.Unlock()

	id, err := c.initialize(ctx)
	h.sessionID, h.err = id, err
	close(h.done)

	c.mu.Lock()
	c.inflight = nil
	if err == nil {
		c.sessionID = id
	}
	c.mu.Unlock()

	observability.RecordHandshake(err == nil)
	return id, err
}

// invalidateSession discards the session token, but only if it is still
// the one that failed. Concurrent callers racing during invalidation may
// each re-handshake once; that is self-healing, not a retry storm.
func (c *MCPClient) invalidateSession(failed string) {
	c.mu.Lock()
	if c.sessionID == failed {
		c.sessionID = ""
	}
	c.mu.Unlock()
}

// initialize performs the protocol handshake and returns the session
// token from the response header.
func (c *MCPClient) initialize(ctx context.Context) (string, error) {
	callCtx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{},
			"clientInfo": map[string]interface{}{
				"name":    clientName,
				"version": clientVersion,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding handshake: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building handshake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", mapCallErr(err, c.timeout.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	rpcResp, err := decodeRPCBody(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return "", err
	}
	if rpcResp.Error != nil {
		return "", &ProtocolError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}

	sessionID := resp.Header.Get(sessionHeader)
	if sessionID == "" {
		return "", &ProtocolError{Message: "handshake response carried no session token"}
	}

	if err := c.notifyInitialized(ctx, sessionID); err != nil {
		return "", err
	}

	c.logger.Debug().Msg("Session established")
	return sessionID, nil
}

// notifyInitialized completes the handshake with the initialized
// notification.
func (c *MCPClient) notifyInitialized(ctx context.Context, sessionID string) error {
	callCtx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set(sessionHeader, sessionID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return mapCallErr(err, c.timeout.String())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: "initialized notification rejected"}
	}
	return nil
}

// roundTrip executes one JSON-RPC call against the negotiated session.
func (c *MCPClient) roundTrip(ctx context.Context, sessionID string, rpcReq rpcRequest) (json.RawMessage, error) {
	callCtx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set(sessionHeader, sessionID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, mapCallErr(err, c.timeout.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	rpcResp, err := decodeRPCBody(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, &ProtocolError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}

	result, err := unwrapResult(rpcResp.Result)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Dur("duration", time.Since(started)).
		Msg("Call completed")

	return result, nil
}

// decodeResult unmarshals an unwrapped result into out. A nil out
// discards the payload.
func decodeResult(result json.RawMessage, out interface{}) error {
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &ProtocolError{Message: fmt.Sprintf("decoding result: %v", err)}
	}
	return nil
}

// decodeEpisodes accepts both a bare episode array and the wrapped
// {episodes: [...]} form.
func decodeEpisodes(raw json.RawMessage) ([]graph.Episode, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var bare []graph.Episode
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Episodes []graph.Episode `json:"episodes"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decoding episodes: %v", err)}
	}
	return wrapped.Episodes, nil
}
