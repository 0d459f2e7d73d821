package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/recall/pkg/graph"
	"github.com/harun/recall/pkg/transport"
)

// fakeClient is a scriptable transport.Client. Unset behaviors succeed
// with empty results.
type fakeClient struct {
	mu sync.Mutex

	clientName string
	nodeSearch bool

	addFn        func(ctx context.Context, ep graph.EpisodeInput) error
	nodesFn      func(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error)
	factsFn      func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error)
	episodesFn   func(ctx context.Context, groupID string, lastN int) ([]graph.Episode, error)
	deleteEpFn   func(ctx context.Context, uuid string) error
	deleteEdgeFn func(ctx context.Context, uuid string) error
	clearFn      func(ctx context.Context, groupID string) error

	added        []graph.EpisodeInput
	clearedGroup string
}

func (f *fakeClient) Name() string {
	if f.clientName == "" {
		return "mcp"
	}
	return f.clientName
}

func (f *fakeClient) SupportsNodeSearch() bool { return f.nodeSearch }

func (f *fakeClient) AddMemory(ctx context.Context, ep graph.EpisodeInput) error {
	f.mu.Lock()
	f.added = append(f.added, ep)
	f.mu.Unlock()
	if f.addFn != nil {
		return f.addFn(ctx, ep)
	}
	return nil
}

func (f *fakeClient) SearchNodes(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error) {
	if f.nodesFn != nil {
		return f.nodesFn(ctx, q)
	}
	return []graph.Node{}, nil
}

func (f *fakeClient) SearchFacts(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
	if f.factsFn != nil {
		return f.factsFn(ctx, q)
	}
	return []graph.Fact{}, nil
}

func (f *fakeClient) GetEpisodes(ctx context.Context, groupID string, lastN int) ([]graph.Episode, error) {
	if f.episodesFn != nil {
		return f.episodesFn(ctx, groupID, lastN)
	}
	return []graph.Episode{}, nil
}

func (f *fakeClient) DeleteEpisode(ctx context.Context, uuid string) error {
	if f.deleteEpFn != nil {
		return f.deleteEpFn(ctx, uuid)
	}
	return nil
}

func (f *fakeClient) GetEntityEdge(ctx context.Context, uuid string) (*graph.Fact, error) {
	return &graph.Fact{UUID: uuid}, nil
}

func (f *fakeClient) DeleteEntityEdge(ctx context.Context, uuid string) error {
	if f.deleteEdgeFn != nil {
		return f.deleteEdgeFn(ctx, uuid)
	}
	return nil
}

func (f *fakeClient) ClearGroup(ctx context.Context, groupID string) error {
	f.mu.Lock()
	f.clearedGroup = groupID
	f.mu.Unlock()
	if f.clearFn != nil {
		return f.clearFn(ctx, groupID)
	}
	return nil
}

func (f *fakeClient) Status(ctx context.Context) (*graph.Status, error) {
	return &graph.Status{OK: true, Transport: f.Name()}, nil
}

func newTestService(t *testing.T, client transport.Client) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Client:     client,
		Logger:     zerolog.Nop(),
		UserTag:    "alice",
		ProjectTag: "acme-api",
	})
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing client", cfg: Config{UserTag: "u", ProjectTag: "p"}},
		{name: "missing user tag", cfg: Config{Client: &fakeClient{}, ProjectTag: "p"}},
		{name: "missing project tag", cfg: Config{Client: &fakeClient{}, UserTag: "u"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestService_GroupID(t *testing.T) {
	svc := newTestService(t, &fakeClient{})

	assert.Equal(t, "recall-user-alice", svc.GroupID(graph.ScopeUser))
	assert.Equal(t, "recall-project-acme-api", svc.GroupID(graph.ScopeProject))
}

func TestService_Add(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(t, client)

	receipt, err := svc.Add(context.Background(), `{"key": "value"}`, "", "")
	require.NoError(t, err)

	assert.Equal(t, graph.ScopeProject, receipt.Scope)
	assert.Equal(t, graph.SourceJSON, receipt.Source)
	assert.Equal(t, "recall-project-acme-api", receipt.GroupID)
	assert.True(t, strings.HasPrefix(receipt.Name, "recall-"))

	require.Len(t, client.added, 1)
	assert.Equal(t, graph.SourceJSON, client.added[0].Source)
	assert.Equal(t, "recall-project-acme-api", client.added[0].GroupID)
}

func TestService_Add_UserScope(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(t, client)

	receipt, err := svc.Add(context.Background(), "prefers tabs over spaces", "user", "")
	require.NoError(t, err)

	assert.Equal(t, graph.ScopeUser, receipt.Scope)
	assert.Equal(t, graph.SourceText, receipt.Source)
	assert.Equal(t, "recall-user-alice", receipt.GroupID)
}

func TestService_Add_EmptyContent(t *testing.T) {
	svc := newTestService(t, &fakeClient{})

	_, err := svc.Add(context.Background(), "   ", "", "")
	assert.Error(t, err)
}

func TestService_SearchMemories_FiltersSupersededFacts(t *testing.T) {
	invalidated := time.Now()
	client := &fakeClient{
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			return []graph.Fact{
				{UUID: "f1", Fact: "current fact"},
				{UUID: "f2", Fact: "superseded fact", InvalidAt: &invalidated},
			}, nil
		},
	}
	svc := newTestService(t, client)

	results, err := svc.SearchMemories(context.Background(), "anything", "recall-user-alice", 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "f1", results[0].ID)
	assert.Equal(t, graph.KindFact, results[0].Kind)
}

func TestService_SearchMemories_SyntheticSimilarities(t *testing.T) {
	client := &fakeClient{
		nodesFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error) {
			return []graph.Node{{UUID: "n1", Name: "Alice", Summary: "likes Go"}}, nil
		},
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			return []graph.Fact{{UUID: "f1", Fact: "uses testify"}}, nil
		},
	}
	svc := newTestService(t, client)

	results, err := svc.SearchMemories(context.Background(), "go", "recall-user-alice", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]graph.MemoryResult{}
	for _, r := range results {
		byID[r.ID] = r
	}
	require.NotNil(t, byID["n1"].Similarity)
	require.NotNil(t, byID["f1"].Similarity)
	assert.Equal(t, 0.90, *byID["n1"].Similarity)
	assert.Equal(t, 0.85, *byID["f1"].Similarity)
	assert.Equal(t, "likes Go", byID["n1"].Content)
}

func TestService_SearchMemories_JoinsBranchErrors(t *testing.T) {
	nodeErr := errors.New("node search down")
	factErr := errors.New("fact search down")
	client := &fakeClient{
		nodesFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error) {
			return nil, nodeErr
		},
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			return nil, factErr
		},
	}
	svc := newTestService(t, client)

	_, err := svc.SearchMemories(context.Background(), "q", "g", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, nodeErr)
	assert.ErrorIs(t, err, factErr)
}

func TestService_Search_SingleScopeTagsResults(t *testing.T) {
	client := &fakeClient{
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			require.Equal(t, []string{"recall-project-acme-api"}, q.GroupIDs)
			return []graph.Fact{{UUID: "f1", Fact: "uses chi router"}}, nil
		},
	}
	svc := newTestService(t, client)

	results, err := svc.Search(context.Background(), "router", "project", 10, "")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, graph.ScopeProject, results[0].Scope)
}

func TestService_Search_CombinedMergesSortsAndTruncates(t *testing.T) {
	client := &fakeClient{
		nodesFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error) {
			// One node per scope; nodes outrank facts in the merge.
			return []graph.Node{{UUID: "n-" + q.GroupIDs[0], Name: "node"}}, nil
		},
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			return []graph.Fact{{UUID: "f-" + q.GroupIDs[0], Fact: "fact"}}, nil
		},
	}
	svc := newTestService(t, client)

	results, err := svc.Search(context.Background(), "q", "", 3, "")
	require.NoError(t, err)

	require.Len(t, results, 3, "four candidates truncated to the limit")
	assert.Equal(t, 0.90, *results[0].Similarity)
	assert.Equal(t, 0.90, *results[1].Similarity)
	assert.Equal(t, 0.85, *results[2].Similarity)

	// Every merged result keeps its originating scope.
	for _, r := range results {
		assert.Contains(t, []graph.Scope{graph.ScopeUser, graph.ScopeProject}, r.Scope)
	}
}

func TestService_Search_CombinedFailsWhenEitherScopeFails(t *testing.T) {
	boom := errors.New("backend unavailable")
	client := &fakeClient{
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			if q.GroupIDs[0] == "recall-user-alice" {
				return nil, boom
			}
			return []graph.Fact{{UUID: "f1", Fact: "fine"}}, nil
		},
	}
	svc := newTestService(t, client)

	_, err := svc.Search(context.Background(), "q", "", 10, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestService_Search_CenterNodeUsesFactTraversal(t *testing.T) {
	client := &fakeClient{
		nodesFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error) {
			t.Error("node search must not run for center-node traversal")
			return nil, nil
		},
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			assert.Equal(t, "center-uuid", q.CenterNodeUUID)
			return []graph.Fact{{UUID: "f1", Fact: "related"}}, nil
		},
	}
	svc := newTestService(t, client)

	results, err := svc.Search(context.Background(), "q", "project", 10, "center-uuid")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestService_Profile_NodeStrategy(t *testing.T) {
	client := &fakeClient{
		nodeSearch: true,
		nodesFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error) {
			assert.Equal(t, DefaultEntityTypes, q.EntityTypes)
			assert.Equal(t, []string{"recall-user-alice"}, q.GroupIDs)
			return []graph.Node{
				{UUID: "n1", Summary: "prefers tabs", Labels: []string{"Entity", "Preference"}},
				{UUID: "n2", Summary: "working on auth refactor", Labels: []string{"Entity"}},
			}, nil
		},
	}
	svc := newTestService(t, client)

	p, err := svc.Profile(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"prefers tabs"}, p.Static)
	assert.Equal(t, []string{"working on auth refactor"}, p.Dynamic)
}

func TestService_Profile_FactStrategy(t *testing.T) {
	invalidated := time.Now()
	client := &fakeClient{
		clientName: "rest",
		nodeSearch: false,
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			return []graph.Fact{
				{UUID: "f1", Fact: "prefers dark mode"},
				{UUID: "f2", Fact: "used light mode", InvalidAt: &invalidated},
			}, nil
		},
	}
	svc := newTestService(t, client)

	p, err := svc.Profile(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"prefers dark mode"}, p.Static)
	assert.Equal(t, []string{"used light mode"}, p.Dynamic)
}

func TestService_List_ProjectsEpisodes(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("x", 300)
	client := &fakeClient{
		episodesFn: func(ctx context.Context, groupID string, lastN int) ([]graph.Episode, error) {
			assert.Equal(t, "recall-project-acme-api", groupID)
			return []graph.Episode{
				{UUID: "e1", Name: "recall-abc123", Content: "short note", Source: "text", CreatedAt: created},
				{UUID: "e2", Name: "recall-def456", Content: long, Source: "json", CreatedAt: created},
			}, nil
		},
	}
	svc := newTestService(t, client)

	items, err := svc.List(context.Background(), "project", 20)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "e1", items[0].ID)
	assert.Equal(t, "short note", items[0].Summary)
	assert.Equal(t, created, items[0].CreatedAt)
	assert.True(t, strings.HasSuffix(items[1].Summary, "…"), "long content is truncated")
	assert.Less(t, len(items[1].Summary), len(long))
}

func TestService_List_TruncatesOnRuneBoundary(t *testing.T) {
	// 2-byte runes offset by one byte so the byte cap falls mid-rune.
	long := "a" + strings.Repeat("é", 150)
	client := &fakeClient{
		episodesFn: func(ctx context.Context, groupID string, lastN int) ([]graph.Episode, error) {
			return []graph.Episode{{UUID: "e1", Name: "n", Content: long}}, nil
		},
	}
	svc := newTestService(t, client)

	items, err := svc.List(context.Background(), "project", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.True(t, utf8.ValidString(items[0].Summary), "truncation must not split a rune")
	assert.True(t, strings.HasSuffix(items[0].Summary, "…"))
	assert.Less(t, len(items[0].Summary), len(long))
}

func TestService_Graph_PartitionsByValidity(t *testing.T) {
	invalidated := time.Now()
	client := &fakeClient{
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			assert.Equal(t, "center-uuid", q.CenterNodeUUID)
			return []graph.Fact{
				{UUID: "f1", Fact: "still true"},
				{UUID: "f2", Fact: "no longer true", InvalidAt: &invalidated},
			}, nil
		},
	}
	svc := newTestService(t, client)

	view, err := svc.Graph(context.Background(), "center-uuid", 10)
	require.NoError(t, err)

	require.Len(t, view.Valid, 1)
	require.Len(t, view.Superseded, 1)
	assert.Equal(t, "f1", view.Valid[0].UUID)
	assert.Equal(t, "f2", view.Superseded[0].UUID)
}

func TestService_Graph_RequiresCenter(t *testing.T) {
	svc := newTestService(t, &fakeClient{})

	_, err := svc.Graph(context.Background(), "", 10)
	assert.Error(t, err)
}

func TestService_Forget_FallsBackToEdgeDeletion(t *testing.T) {
	var edgeDeleted string
	client := &fakeClient{
		deleteEpFn: func(ctx context.Context, uuid string) error {
			return errors.New("not an episode")
		},
		deleteEdgeFn: func(ctx context.Context, uuid string) error {
			edgeDeleted = uuid
			return nil
		},
	}
	svc := newTestService(t, client)

	err := svc.Forget(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", edgeDeleted)
}

func TestService_Forget_JoinsBothFailures(t *testing.T) {
	epErr := errors.New("episode gone")
	edgeErr := errors.New("edge gone")
	client := &fakeClient{
		deleteEpFn:   func(ctx context.Context, uuid string) error { return epErr },
		deleteEdgeFn: func(ctx context.Context, uuid string) error { return edgeErr },
	}
	svc := newTestService(t, client)

	err := svc.Forget(context.Background(), "abc-123")
	require.Error(t, err)
	assert.ErrorIs(t, err, epErr)
	assert.ErrorIs(t, err, edgeErr)
}

func TestService_Clear(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(t, client)

	require.NoError(t, svc.Clear(context.Background(), "user"))
	assert.Equal(t, "recall-user-alice", client.clearedGroup)

	assert.Error(t, svc.Clear(context.Background(), ""), "clear must name a scope")
	assert.Error(t, svc.Clear(context.Background(), "everything"))
}

func TestService_Context_ComposesBlock(t *testing.T) {
	client := &fakeClient{
		nodeSearch: true,
		nodesFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Node, error) {
			if len(q.EntityTypes) > 0 {
				return []graph.Node{{UUID: "n1", Summary: "prefers tabs", Labels: []string{"Preference"}}}, nil
			}
			return []graph.Node{}, nil
		},
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			if q.GroupIDs[0] == "recall-project-acme-api" {
				return []graph.Fact{{UUID: "f1", Fact: "uses chi router"}}, nil
			}
			return []graph.Fact{}, nil
		},
	}
	svc := newTestService(t, client)

	block, err := svc.Context(context.Background(), "session start")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(block, "# Memory recalled from previous sessions"))
	assert.Contains(t, block, "prefers tabs")
	assert.Contains(t, block, "uses chi router")
}

func TestService_Context_EmptyWhenNothingStored(t *testing.T) {
	svc := newTestService(t, &fakeClient{nodeSearch: true})

	block, err := svc.Context(context.Background(), "session start")
	require.NoError(t, err)
	assert.Empty(t, block)
}

func TestService_Context_FailsWhenAnyBranchFails(t *testing.T) {
	boom := errors.New("graph service down")
	client := &fakeClient{
		nodeSearch: true,
		factsFn: func(ctx context.Context, q transport.SearchQuery) ([]graph.Fact, error) {
			return nil, boom
		},
	}
	svc := newTestService(t, client)

	_, err := svc.Context(context.Background(), "session start")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
