package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/pkg/graph"
)

// RESTConfig configures the stateless client.
type RESTConfig struct {
	BaseURL     string
	Logger      zerolog.Logger
	HTTPClient  *http.Client
	CallTimeout time.Duration
}

// RESTClient speaks the stateless per-call protocol. No session, plain
// request/response. The backend has no node-search endpoint, so
// SearchNodes returns a successful empty result; SupportsNodeSearch
// reports the gap so callers can pick a different profile strategy.
type RESTClient struct {
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger
	timeout time.Duration
}

// NewRESTClient creates a stateless client. An empty base URL is
// allowed; every call then fails with ErrNotConfigured.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	observability.EnsureRegistered()

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &RESTClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   httpc,
		logger:  cfg.Logger.With().Str("component", "transport.rest").Logger(),
		timeout: timeout,
	}
}

// Name implements Client.
func (c *RESTClient) Name() string { return "rest" }

// SupportsNodeSearch implements Client.
func (c *RESTClient) SupportsNodeSearch() bool { return false }

// AddMemory implements Client.
func (c *RESTClient) AddMemory(ctx context.Context, ep graph.EpisodeInput) error {
	source := ep.Source
	if source == "" {
		source = graph.DetectSource(ep.Content)
	}
	body := map[string]interface{}{
		"group_id": ep.GroupID,
		"messages": []map[string]interface{}{
			{
				"name":    ep.Name,
				"content": ep.Content,
				"source":  string(source),
			},
		},
	}
	return c.do(ctx, http.MethodPost, "/messages", body, nil)
}

// SearchNodes implements Client. The backend exposes no node search;
// a successful empty result keeps the contract uniform for callers.
func (c *RESTClient) SearchNodes(ctx context.Context, q SearchQuery) ([]graph.Node, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	return []graph.Node{}, nil
}

// SearchFacts implements Client.
func (c *RESTClient) SearchFacts(ctx context.Context, q SearchQuery) ([]graph.Fact, error) {
	body := map[string]interface{}{
		"query":     q.Query,
		"group_ids": q.GroupIDs,
		"max_facts": q.MaxResults,
	}
	if q.CenterNodeUUID != "" {
		body["center_node_uuid"] = q.CenterNodeUUID
	}

	var out struct {
		Facts []graph.Fact `json:"facts"`
	}
	if err := c.do(ctx, http.MethodPost, "/search", body, &out); err != nil {
		return nil, err
	}
	return out.Facts, nil
}

// GetEpisodes implements Client. The backend only supports a single
// group id per call.
func (c *RESTClient) GetEpisodes(ctx context.Context, groupID string, lastN int) ([]graph.Episode, error) {
	path := "/episodes/" + url.PathEscape(groupID)
	if lastN > 0 {
		path += "?last_n=" + strconv.Itoa(lastN)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return decodeEpisodes(raw)
}

// DeleteEpisode implements Client.
func (c *RESTClient) DeleteEpisode(ctx context.Context, uuid string) error {
	return c.do(ctx, http.MethodDelete, "/episode/"+url.PathEscape(uuid), nil, nil)
}

// GetEntityEdge implements Client.
func (c *RESTClient) GetEntityEdge(ctx context.Context, uuid string) (*graph.Fact, error) {
	var fact graph.Fact
	if err := c.do(ctx, http.MethodGet, "/entity-edge/"+url.PathEscape(uuid), nil, &fact); err != nil {
		return nil, err
	}
	return &fact, nil
}

// DeleteEntityEdge implements Client.
func (c *RESTClient) DeleteEntityEdge(ctx context.Context, uuid string) error {
	return c.do(ctx, http.MethodDelete, "/entity-edge/"+url.PathEscape(uuid), nil, nil)
}

// ClearGroup implements Client.
func (c *RESTClient) ClearGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, "/group/"+url.PathEscape(groupID), nil, nil)
}

// Status implements Client.
func (c *RESTClient) Status(ctx context.Context) (*graph.Status, error) {
	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthcheck", nil, &out); err != nil {
		return nil, err
	}
	ok := out.Status == "" || strings.EqualFold(out.Status, "ok") || strings.EqualFold(out.Status, "healthy")
	return &graph.Status{
		OK:        ok,
		Transport: c.Name(),
		Message:   out.Message,
	}, nil
}

// do executes one request/response exchange.
func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	callCtx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	operation := method + " " + strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		observability.RecordBackendCall(c.Name(), operation, time.Since(started), false)
		return mapCallErr(err, c.timeout.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		observability.RecordBackendCall(c.Name(), operation, time.Since(started), false)
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	observability.RecordBackendCall(c.Name(), operation, time.Since(started), true)

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapCallErr(err, c.timeout.String())
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ProtocolError{Message: fmt.Sprintf("decoding response: %v", err)}
	}

	c.logger.Debug().
		Str("operation", operation).
		Dur("duration", time.Since(started)).
		Msg("Call completed")

	return nil
}
