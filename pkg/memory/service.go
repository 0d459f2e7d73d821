package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/internal/tracing"
	"github.com/harun/recall/pkg/composer"
	"github.com/harun/recall/pkg/graph"
	"github.com/harun/recall/pkg/scope"
	"github.com/harun/recall/pkg/transport"
)

const (
	defaultSearchLimit  = 10
	defaultProfileLimit = 5
	listSummaryMax      = 200
)

// DefaultEntityTypes are the node labels the profile query filters to.
var DefaultEntityTypes = []string{"Preference", "Requirement"}

// Config holds Service configuration. Client selection happens before
// construction; the Service keeps that one client for its lifetime.
type Config struct {
	Client transport.Client
	Logger zerolog.Logger

	GroupPrefix string
	UserTag     string // stable user identifier
	ProjectTag  string // project directory fingerprint

	SearchLimit  int
	ProfileLimit int
	EntityTypes  []string

	Composer *composer.Composer // optional, built from defaults when nil
}

// Service is the single entry point the agent integration calls.
type Service struct {
	client   transport.Client
	logger   zerolog.Logger
	composer *composer.Composer
	strategy profileStrategy

	groupPrefix  string
	userTag      string
	projectTag   string
	searchLimit  int
	profileLimit int
}

// NewService creates the facade around one selected transport client.
func NewService(cfg Config) (*Service, error) {
	observability.EnsureRegistered()

	if cfg.Client == nil {
		return nil, errors.New("transport client is required")
	}
	if cfg.UserTag == "" {
		return nil, errors.New("user tag is required")
	}
	if cfg.ProjectTag == "" {
		return nil, errors.New("project tag is required")
	}

	searchLimit := cfg.SearchLimit
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	profileLimit := cfg.ProfileLimit
	if profileLimit <= 0 {
		profileLimit = defaultProfileLimit
	}
	entityTypes := cfg.EntityTypes
	if len(entityTypes) == 0 {
		entityTypes = DefaultEntityTypes
	}
	comp := cfg.Composer
	if comp == nil {
		comp = composer.New(composer.Config{
			MaxProfileItems:       profileLimit,
			InjectProfile:         true,
			InjectProjectMemories: true,
			InjectUserMemories:    true,
		})
	}

	s := &Service{
		client:       cfg.Client,
		logger:       cfg.Logger.With().Str("component", "memory").Str("transport", cfg.Client.Name()).Logger(),
		composer:     comp,
		strategy:     strategyFor(cfg.Client, entityTypes),
		groupPrefix:  cfg.GroupPrefix,
		userTag:      cfg.UserTag,
		projectTag:   cfg.ProjectTag,
		searchLimit:  searchLimit,
		profileLimit: profileLimit,
	}

	s.logger.Info().Str("profile_strategy", s.strategy.name()).Msg("Memory service initialized")
	return s, nil
}

// GroupID resolves a logical scope to its backend group id.
func (s *Service) GroupID(sc graph.Scope) string {
	tag := s.userTag
	if sc == graph.ScopeProject {
		tag = s.projectTag
	}
	return scope.Resolve(s.groupPrefix, sc, tag)
}

// Transport names the active transport client.
func (s *Service) Transport() string { return s.client.Name() }

// AddReceipt reports where and how a memory was stored.
type AddReceipt struct {
	Name    string       `json:"name"`
	GroupID string       `json:"group_id"`
	Scope   graph.Scope  `json:"scope"`
	Source  graph.Source `json:"source"`
}

// Add stores one memory. An empty scopeName defaults to project scope;
// explicitSource may be empty, in which case the kind is inferred from
// content.
func (s *Service) Add(ctx context.Context, content, scopeName, explicitSource string) (*AddReceipt, error) {
	ctx, span := tracing.StartSpan(ctx, "recall.memory", "memory.add")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return nil, errors.New("memory content is empty")
	}

	sc, ok := scope.Parse(scopeName)
	if !ok {
		sc = graph.ScopeProject
	}
	source := graph.ParseSource(explicitSource, content)
	groupID := s.GroupID(sc)
	name := "recall-" + uuid.New().String()[:8]

	err := s.client.AddMemory(ctx, graph.EpisodeInput{
		Name:    name,
		Content: content,
		Source:  source,
		GroupID: groupID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding memory: %w", err)
	}

	lg := tracing.LoggerFromContext(ctx, s.logger)
	lg.Debug().
		Str("group_id", groupID).
		Str("source", string(source)).
		Msg("Memory stored")

	return &AddReceipt{Name: name, GroupID: groupID, Scope: sc, Source: source}, nil
}

// SearchMemories issues node search and fact search concurrently against
// one group id and concatenates the normalized results. Superseded facts
// are filtered before normalization.
func (s *Service) SearchMemories(ctx context.Context, query, groupID string, limit int) ([]graph.MemoryResult, error) {
	if limit <= 0 {
		limit = s.searchLimit
	}
	q := transport.SearchQuery{
		Query:      query,
		GroupIDs:   []string{groupID},
		MaxResults: limit,
	}

	var (
		nodes            []graph.Node
		facts            []graph.Fact
		nodeErr, factErr error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		nodes, nodeErr = s.client.SearchNodes(ctx, q)
	}()
	go func() {
		defer wg.Done()
		facts, factErr = s.client.SearchFacts(ctx, q)
	}()
	wg.Wait()

	if nodeErr != nil || factErr != nil {
		return nil, fmt.Errorf("searching group %s: %w", groupID, errors.Join(nodeErr, factErr))
	}

	results := append(normalizeNodes(nodes), normalizeFacts(facts)...)
	return results, nil
}

// Search runs a scoped or dual-scope memory search. With an empty
// scopeName it fans out to both scopes in parallel, tags each result
// with its originating scope, sorts the merge by similarity descending
// and truncates to the limit.
func (s *Service) Search(ctx context.Context, query, scopeName string, limit int, centerNode string) ([]graph.MemoryResult, error) {
	ctx, span := tracing.StartSpan(ctx, "recall.memory", "memory.search",
		attribute.String("scope", scopeName),
	)
	defer span.End()

	if limit <= 0 {
		limit = s.searchLimit
	}
	started := time.Now()

	if sc, ok := scope.Parse(scopeName); ok {
		results, err := s.searchScope(ctx, query, sc, limit, centerNode)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		observability.RecordSearchResults(string(sc), len(results))
		s.logSearch(ctx, query, scopeName, len(results), started)
		return results, nil
	}

	// Scope-less search fans out to both partitions.
	var (
		user, project       []graph.MemoryResult
		userErr, projectErr error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		user, userErr = s.searchScope(ctx, query, graph.ScopeUser, limit, centerNode)
	}()
	go func() {
		defer wg.Done()
		project, projectErr = s.searchScope(ctx, query, graph.ScopeProject, limit, centerNode)
	}()
	wg.Wait()

	// A failed branch fails the whole search; partial results would be
	// misleading.
	if userErr != nil || projectErr != nil {
		err := fmt.Errorf("combined search: %w", errors.Join(userErr, projectErr))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	merged := append(user, project...)
	sortBySimilarity(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	observability.RecordSearchResults("combined", len(merged))
	s.logSearch(ctx, query, "combined", len(merged), started)
	return merged, nil
}

// searchScope searches a single scope and tags results with it.
func (s *Service) searchScope(ctx context.Context, query string, sc graph.Scope, limit int, centerNode string) ([]graph.MemoryResult, error) {
	groupID := s.GroupID(sc)

	var results []graph.MemoryResult
	var err error
	if centerNode != "" {
		results, err = s.searchAround(ctx, query, groupID, limit, centerNode)
	} else {
		results, err = s.SearchMemories(ctx, query, groupID, limit)
	}
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Scope = sc
	}
	return results, nil
}

// searchAround is the graph-traversal variant of SearchMemories.
func (s *Service) searchAround(ctx context.Context, query, groupID string, limit int, centerNode string) ([]graph.MemoryResult, error) {
	facts, err := s.client.SearchFacts(ctx, transport.SearchQuery{
		Query:          query,
		GroupIDs:       []string{groupID},
		MaxResults:     limit,
		CenterNodeUUID: centerNode,
	})
	if err != nil {
		return nil, fmt.Errorf("searching around %s: %w", centerNode, err)
	}
	return normalizeFacts(facts), nil
}

// Profile derives the user's preference profile from the user scope.
func (s *Service) Profile(ctx context.Context, query string) (*graph.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "recall.memory", "memory.profile")
	defer span.End()

	if query == "" {
		query = "preferences and requirements"
	}

	p, err := s.strategy.profile(ctx, s.client, transport.SearchQuery{
		Query:      query,
		GroupIDs:   []string{s.GroupID(graph.ScopeUser)},
		MaxResults: s.profileLimit * 2,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("deriving profile: %w", err)
	}
	return p, nil
}

// List projects recent episodes into display items. The backend API has
// no real pagination; everything arrives on a single page.
func (s *Service) List(ctx context.Context, scopeName string, limit int) ([]graph.ListItem, error) {
	ctx, span := tracing.StartSpan(ctx, "recall.memory", "memory.list")
	defer span.End()

	sc, ok := scope.Parse(scopeName)
	if !ok {
		sc = graph.ScopeProject
	}
	if limit <= 0 {
		limit = s.searchLimit
	}

	episodes, err := s.client.GetEpisodes(ctx, s.GroupID(sc), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing episodes: %w", err)
	}

	items := make([]graph.ListItem, 0, len(episodes))
	for _, ep := range episodes {
		summary := truncateSummary(ep.Content, listSummaryMax)
		items = append(items, graph.ListItem{
			ID:        ep.UUID,
			Title:     ep.Name,
			Summary:   summary,
			Source:    ep.Source,
			CreatedAt: ep.CreatedAt,
		})
	}
	return items, nil
}

// truncateSummary caps a summary at max bytes without splitting a
// multi-byte rune, appending an ellipsis when it cuts.
func truncateSummary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// GraphView partitions the facts around a center node by temporal
// validity.
type GraphView struct {
	Center     string       `json:"center"`
	Valid      []graph.Fact `json:"valid"`
	Superseded []graph.Fact `json:"superseded"`
}

// Graph explores fact relationships around a center node id.
func (s *Service) Graph(ctx context.Context, centerNodeUUID string, limit int) (*GraphView, error) {
	ctx, span := tracing.StartSpan(ctx, "recall.memory", "memory.graph")
	defer span.End()

	if centerNodeUUID == "" {
		return nil, errors.New("center node id is required")
	}
	if limit <= 0 {
		limit = s.searchLimit
	}

	facts, err := s.client.SearchFacts(ctx, transport.SearchQuery{
		GroupIDs:       []string{s.GroupID(graph.ScopeUser), s.GroupID(graph.ScopeProject)},
		MaxResults:     limit,
		CenterNodeUUID: centerNodeUUID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("exploring graph: %w", err)
	}

	view := &GraphView{Center: centerNodeUUID, Valid: []graph.Fact{}, Superseded: []graph.Fact{}}
	for _, f := range facts {
		if f.Valid() {
			view.Valid = append(view.Valid, f)
		} else {
			view.Superseded = append(view.Superseded, f)
		}
	}
	return view, nil
}

// Forget deletes one memory by id. Episode deletion is tried first,
// falling back to edge deletion so both memory kinds share one verb.
func (s *Service) Forget(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "recall.memory", "memory.forget")
	defer span.End()

	if id == "" {
		return errors.New("memory id is required")
	}

	epErr := s.client.DeleteEpisode(ctx, id)
	if epErr == nil {
		return nil
	}
	edgeErr := s.client.DeleteEntityEdge(ctx, id)
	if edgeErr == nil {
		return nil
	}

	err := fmt.Errorf("forgetting %s: %w", id, errors.Join(epErr, edgeErr))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Clear removes everything stored under one scope.
func (s *Service) Clear(ctx context.Context, scopeName string) error {
	sc, ok := scope.Parse(scopeName)
	if !ok {
		return fmt.Errorf("clear requires an explicit scope, got %q", scopeName)
	}
	if err := s.client.ClearGroup(ctx, s.GroupID(sc)); err != nil {
		return fmt.Errorf("clearing %s scope: %w", sc, err)
	}
	return nil
}

// Status probes backend liveness.
func (s *Service) Status(ctx context.Context) (*graph.Status, error) {
	st, err := s.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend status: %w", err)
	}
	return st, nil
}

// Context assembles the bounded prompt block for a new session: profile
// plus project- and user-scope memories, composed into printable text.
// An empty string means there is nothing worth injecting.
func (s *Service) Context(ctx context.Context, query string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "recall.memory", "memory.context")
	defer span.End()

	var (
		profile                   *graph.Profile
		project, user             []graph.MemoryResult
		profErr, projErr, userErr error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		profile, profErr = s.Profile(ctx, "")
	}()
	go func() {
		defer wg.Done()
		project, projErr = s.searchScope(ctx, query, graph.ScopeProject, s.searchLimit, "")
	}()
	go func() {
		defer wg.Done()
		user, userErr = s.searchScope(ctx, query, graph.ScopeUser, s.searchLimit, "")
	}()
	wg.Wait()

	if profErr != nil || projErr != nil || userErr != nil {
		err := fmt.Errorf("assembling context: %w", errors.Join(profErr, projErr, userErr))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	block := s.composer.Compose(profile, project, user)
	observability.RecordContextComposed(len(block))
	return block, nil
}

func (s *Service) logSearch(ctx context.Context, query, scopeName string, count int, started time.Time) {
	lg := tracing.LoggerFromContext(ctx, s.logger)
	lg.Debug().
		Str("query", query).
		Str("scope", scopeName).
		Int("results", count).
		Dur("duration", time.Since(started)).
		Msg("Search completed")
}
