package memory

import (
	"context"

	"github.com/harun/recall/pkg/graph"
	"github.com/harun/recall/pkg/transport"
)

// preferenceLabel marks a node as a durable trait.
const preferenceLabel = "Preference"

// profileStrategy derives a user profile from the backend. The two
// transports support different search primitives, so each gets its own
// strategy; they are NOT semantically equivalent and are deliberately
// kept apart instead of being reconciled.
type profileStrategy interface {
	name() string
	profile(ctx context.Context, client transport.Client, q transport.SearchQuery) (*graph.Profile, error)
}

// nodeProfileStrategy uses node search filtered to the configured
// entity types. A node is static iff its labels include Preference.
type nodeProfileStrategy struct {
	entityTypes []string
}

func (s *nodeProfileStrategy) name() string { return "nodes" }

func (s *nodeProfileStrategy) profile(ctx context.Context, client transport.Client, q transport.SearchQuery) (*graph.Profile, error) {
	q.EntityTypes = s.entityTypes
	nodes, err := client.SearchNodes(ctx, q)
	if err != nil {
		return nil, err
	}

	p := &graph.Profile{Static: []string{}, Dynamic: []string{}}
	for _, n := range nodes {
		content := n.Summary
		if content == "" {
			content = n.Name
		}
		if n.HasLabel(preferenceLabel) {
			p.Static = append(p.Static, content)
		} else {
			p.Dynamic = append(p.Dynamic, content)
		}
	}
	return p, nil
}

// factProfileStrategy approximates a profile via fact search for the
// transport that cannot search nodes. A fact is static iff it has not
// been temporally invalidated, a weaker heuristic that conflates
// recency with durability. Known approximation, kept explicit.
type factProfileStrategy struct{}

func (s *factProfileStrategy) name() string { return "facts" }

func (s *factProfileStrategy) profile(ctx context.Context, client transport.Client, q transport.SearchQuery) (*graph.Profile, error) {
	facts, err := client.SearchFacts(ctx, q)
	if err != nil {
		return nil, err
	}

	p := &graph.Profile{Static: []string{}, Dynamic: []string{}}
	for _, f := range facts {
		if f.Valid() {
			p.Static = append(p.Static, f.Fact)
		} else {
			p.Dynamic = append(p.Dynamic, f.Fact)
		}
	}
	return p, nil
}

// strategyFor picks the profile strategy a client's capabilities allow.
func strategyFor(client transport.Client, entityTypes []string) profileStrategy {
	if client.SupportsNodeSearch() {
		return &nodeProfileStrategy{entityTypes: entityTypes}
	}
	return &factProfileStrategy{}
}
