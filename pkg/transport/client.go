package transport

import (
	"context"
	"time"

	"github.com/harun/recall/pkg/graph"
)

// DefaultCallTimeout is the fixed ceiling every backend call races
// against.
const DefaultCallTimeout = 30 * time.Second

// SearchQuery carries the parameters shared by node and fact searches.
type SearchQuery struct {
	Query          string
	GroupIDs       []string
	MaxResults     int
	EntityTypes    []string // node search only
	CenterNodeUUID string   // optional graph-traversal center
}

// Client is the capability surface both transports expose. The REST
// variant cannot search nodes and reports that through
// SupportsNodeSearch; its SearchNodes still succeeds with an empty
// result to keep the contract uniform for callers.
type Client interface {
	// Name identifies the transport ("mcp" or "rest").
	Name() string

	// SupportsNodeSearch reports whether SearchNodes reaches the backend.
	SupportsNodeSearch() bool

	AddMemory(ctx context.Context, ep graph.EpisodeInput) error
	SearchNodes(ctx context.Context, q SearchQuery) ([]graph.Node, error)
	SearchFacts(ctx context.Context, q SearchQuery) ([]graph.Fact, error)

	// GetEpisodes returns the most recent lastN episodes for one group.
	GetEpisodes(ctx context.Context, groupID string, lastN int) ([]graph.Episode, error)
	DeleteEpisode(ctx context.Context, uuid string) error

	GetEntityEdge(ctx context.Context, uuid string) (*graph.Fact, error)
	DeleteEntityEdge(ctx context.Context, uuid string) error

	// ClearGroup removes all data for one group id.
	ClearGroup(ctx context.Context, groupID string) error

	Status(ctx context.Context) (*graph.Status, error)
}

// callContext bounds a backend call with the per-call ceiling.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
