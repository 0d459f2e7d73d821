package graph

import "time"

// Kind identifies which backend shape a MemoryResult was derived from.
type Kind string

const (
	KindNode    Kind = "node"
	KindFact    Kind = "fact"
	KindEpisode Kind = "episode"
)

// Scope is a logical memory partition.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
)

// Node is an entity extracted by the knowledge-graph service.
type Node struct {
	UUID       string                 `json:"uuid"`
	Name       string                 `json:"name"`
	Summary    string                 `json:"summary,omitempty"`
	Labels     []string               `json:"labels,omitempty"`
	GroupID    string                 `json:"group_id"`
	CreatedAt  time.Time              `json:"created_at"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// HasLabel reports whether the node carries the given entity-type label.
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Fact is a relationship between two entities, or a freestanding
// assertion, with a temporal validity window. A fact whose InvalidAt is
// set has been superseded and must never be surfaced as currently true.
type Fact struct {
	UUID       string     `json:"uuid"`
	Fact       string     `json:"fact"`
	Name       string     `json:"name,omitempty"`
	SourceUUID string     `json:"source_node_uuid,omitempty"`
	TargetUUID string     `json:"target_node_uuid,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ValidAt    *time.Time `json:"valid_at,omitempty"`
	InvalidAt  *time.Time `json:"invalid_at,omitempty"`
}

// Valid reports whether the fact is still currently true.
func (f Fact) Valid() bool {
	return f.InvalidAt == nil
}

// Episode is one raw ingested memory record, the unit of "add".
// Episodes are immutable once created; deletion removes them entirely.
type Episode struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Source    Source    `json:"source"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EpisodeInput describes a memory to ingest.
type EpisodeInput struct {
	Name    string `json:"name"`
	Content string `json:"episode_body"`
	Source  Source `json:"source"`
	GroupID string `json:"group_id"`
}

// MemoryResult is the unified, display-ready memory item both transports
// normalize into.
type MemoryResult struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Similarity *float64   `json:"similarity,omitempty"` // in [0,1] when present
	Kind       Kind       `json:"kind"`
	Labels     []string   `json:"labels,omitempty"`
	Scope      Scope      `json:"scope,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ValidAt    *time.Time `json:"valid_at,omitempty"`
}

// Profile is the aggregated view of a user's preferences. It is derived
// on every call and never persisted by this client.
type Profile struct {
	Static  []string `json:"static"`  // durable traits
	Dynamic []string `json:"dynamic"` // situational facts
}

// Empty reports whether the profile carries no facts at all.
func (p Profile) Empty() bool {
	return len(p.Static) == 0 && len(p.Dynamic) == 0
}

// ListItem is a thin projection of an episode for list views.
type ListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Status is the backend liveness report.
type Status struct {
	OK        bool   `json:"ok"`
	Transport string `json:"transport"`
	Message   string `json:"message,omitempty"`
}
