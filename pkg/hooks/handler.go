// Package hooks implements the agent lifecycle hook handler. The agent
// invokes the binary with a JSON request on stdin; the handler runs one
// memory operation and writes a single JSON response envelope to
// stdout. Stderr carries logs only.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/recall/internal/tracing"
	"github.com/harun/recall/pkg/graph"
	"github.com/harun/recall/pkg/memory"
)

// maxRequestBytes bounds the stdin read; hook payloads are small.
const maxRequestBytes = 1 << 20

// MemoryService is the slice of the memory facade the handler drives.
type MemoryService interface {
	Add(ctx context.Context, content, scopeName, explicitSource string) (*memory.AddReceipt, error)
	Search(ctx context.Context, query, scopeName string, limit int, centerNode string) ([]graph.MemoryResult, error)
	Context(ctx context.Context, query string) (string, error)
	Profile(ctx context.Context, query string) (*graph.Profile, error)
	List(ctx context.Context, scopeName string, limit int) ([]graph.ListItem, error)
	Graph(ctx context.Context, centerNodeUUID string, limit int) (*memory.GraphView, error)
	Forget(ctx context.Context, id string) error
	Clear(ctx context.Context, scopeName string) error
	Status(ctx context.Context) (*graph.Status, error)
}

// Request is one hook invocation payload.
type Request struct {
	Op         string `json:"op"`
	Content    string `json:"content,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Source     string `json:"source,omitempty"`
	Query      string `json:"query,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	ID         string `json:"id,omitempty"`
	CenterNode string `json:"center_node,omitempty"`
}

// Response is the envelope every invocation answers with. Operation
// failures are reported inside the envelope with exit code zero; the
// agent must never abort a session over a memory error.
type Response struct {
	Success   bool        `json:"success"`
	RequestID string      `json:"request_id"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Handler reads hook requests and dispatches them to the memory facade.
type Handler struct {
	service MemoryService
	schema  *gojsonschema.Schema
	logger  zerolog.Logger
	in      io.Reader
	out     io.Writer
	timeout time.Duration
}

// Config configures a Handler.
type Config struct {
	Service MemoryService
	Logger  zerolog.Logger
	In      io.Reader
	Out     io.Writer

	// Timeout bounds the whole invocation. Zero disables the bound.
	Timeout time.Duration
}

// NewHandler creates a hook handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("memory service is required")
	}
	schema, err := compileRequestSchema()
	if err != nil {
		return nil, err
	}

	return &Handler{
		service: cfg.Service,
		schema:  schema,
		logger:  cfg.Logger.With().Str("component", "hooks").Logger(),
		in:      cfg.In,
		out:     cfg.Out,
		timeout: cfg.Timeout,
	}, nil
}

// Run handles one invocation end to end. The returned error covers I/O
// failures only; operation failures are encoded in the response.
func (h *Handler) Run(ctx context.Context) error {
	requestID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generating request id: %w", err)
	}
	ctx = tracing.WithRequestID(ctx, requestID)

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp := h.handle(ctx, requestID)
	return h.write(resp)
}

func (h *Handler) handle(ctx context.Context, requestID string) Response {
	raw, err := io.ReadAll(io.LimitReader(h.in, maxRequestBytes))
	if err != nil {
		return h.fail(requestID, "", fmt.Errorf("reading request: %w", err))
	}

	if err := validateRequest(h.schema, raw); err != nil {
		return h.fail(requestID, "", err)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return h.fail(requestID, "", fmt.Errorf("decoding request: %w", err))
	}

	started := time.Now()
	data, err := h.dispatch(ctx, req)
	if err != nil {
		return h.fail(requestID, req.Op, err)
	}

	h.logger.Debug().
		Str("request_id", requestID).
		Str("op", req.Op).
		Dur("duration", time.Since(started)).
		Msg("Hook handled")

	return Response{Success: true, RequestID: requestID, Data: data}
}

func (h *Handler) dispatch(ctx context.Context, req Request) (interface{}, error) {
	switch req.Op {
	case "add":
		return h.service.Add(ctx, req.Content, req.Scope, req.Source)

	case "search":
		results, err := h.service.Search(ctx, req.Query, req.Scope, req.Limit, req.CenterNode)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"results": results, "count": len(results)}, nil

	case "context":
		block, err := h.service.Context(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"context": block, "injected": block != ""}, nil

	case "profile":
		return h.service.Profile(ctx, req.Query)

	case "list":
		items, err := h.service.List(ctx, req.Scope, req.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"items": items, "count": len(items)}, nil

	case "graph":
		return h.service.Graph(ctx, req.CenterNode, req.Limit)

	case "forget":
		if err := h.service.Forget(ctx, req.ID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"forgotten": req.ID}, nil

	case "clear":
		if err := h.service.Clear(ctx, req.Scope); err != nil {
			return nil, err
		}
		return map[string]interface{}{"cleared": req.Scope}, nil

	case "status":
		return h.service.Status(ctx)

	case "help":
		return opHelp, nil

	default:
		// Unreachable once schema validation passed; kept for safety.
		return nil, fmt.Errorf("unknown op %q", req.Op)
	}
}

func (h *Handler) fail(requestID, op string, err error) Response {
	h.logger.Warn().
		Str("request_id", requestID).
		Str("op", op).
		Err(err).
		Msg("Hook failed")
	return Response{Success: false, RequestID: requestID, Error: err.Error()}
}

func (h *Handler) write(resp Response) error {
	enc := json.NewEncoder(h.out)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// opHelp documents the hook operations for interactive discovery.
var opHelp = map[string]string{
	"add":     "store a memory: content, optional scope (user|project) and source (text|json|message)",
	"search":  "search memories: query, optional scope, limit, center_node",
	"context": "compose the session-start context block: optional query",
	"profile": "derive the user preference profile: optional query",
	"list":    "list recent memories: optional scope and limit",
	"graph":   "explore facts around a node: center_node, optional limit",
	"forget":  "delete one memory by id",
	"clear":   "delete everything in one scope: scope (user|project)",
	"status":  "probe backend liveness",
	"help":    "this message",
}
