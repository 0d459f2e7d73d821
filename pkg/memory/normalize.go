package memory

import (
	"sort"

	"github.com/harun/recall/pkg/graph"
)

// Synthetic display similarities: the backend does not return true
// scores on these paths, so nodes and facts get fixed values that keep
// nodes slightly ahead of facts in merged views.
const (
	nodeSimilarity = 0.90
	factSimilarity = 0.85
)

// normalizeNodes converts graph nodes into unified memory results.
func normalizeNodes(nodes []graph.Node) []graph.MemoryResult {
	results := make([]graph.MemoryResult, 0, len(nodes))
	for _, n := range nodes {
		content := n.Summary
		if content == "" {
			content = n.Name
		}

		sim := nodeSimilarity
		created := n.CreatedAt
		results = append(results, graph.MemoryResult{
			ID:         n.UUID,
			Content:    content,
			Similarity: &sim,
			Kind:       graph.KindNode,
			Labels:     n.Labels,
			CreatedAt:  &created,
		})
	}
	return results
}

// normalizeFacts converts graph facts into unified memory results,
// dropping superseded facts first. This is the single temporal-validity
// gate in the system; it applies identically regardless of transport.
func normalizeFacts(facts []graph.Fact) []graph.MemoryResult {
	results := make([]graph.MemoryResult, 0, len(facts))
	for _, f := range facts {
		if !f.Valid() {
			continue
		}

		sim := factSimilarity
		created := f.CreatedAt
		results = append(results, graph.MemoryResult{
			ID:         f.UUID,
			Content:    f.Fact,
			Similarity: &sim,
			Kind:       graph.KindFact,
			CreatedAt:  &created,
			ValidAt:    f.ValidAt,
		})
	}
	return results
}

// sortBySimilarity orders results by similarity descending. Results
// without a similarity sort last. The sort is stable so same-scored
// results keep their fan-out order.
func sortBySimilarity(results []graph.MemoryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return similarityOf(results[i]) > similarityOf(results[j])
	})
}

func similarityOf(m graph.MemoryResult) float64 {
	if m.Similarity == nil {
		return -1
	}
	return *m.Similarity
}
