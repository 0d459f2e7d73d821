package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/recall/pkg/graph"
)

func newTestRESTClient(t *testing.T, url string) *RESTClient {
	t.Helper()
	return NewRESTClient(RESTConfig{
		BaseURL:     url,
		Logger:      zerolog.New(os.Stdout).Level(zerolog.Disabled),
		CallTimeout: 5 * time.Second,
	})
}

func TestRESTClient_NotConfigured(t *testing.T) {
	c := newTestRESTClient(t, "")

	_, err := c.SearchFacts(context.Background(), SearchQuery{Query: "q"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.SearchNodes(context.Background(), SearchQuery{Query: "q"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRESTClient_SearchNodesIsEmptySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("node search must not reach the backend, got %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	c := newTestRESTClient(t, srv.URL)
	nodes, err := c.SearchNodes(context.Background(), SearchQuery{Query: "anything"})
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
	assert.False(t, c.SupportsNodeSearch())
}

func TestRESTClient_AddMemory(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestRESTClient(t, srv.URL)
	err := c.AddMemory(context.Background(), graph.EpisodeInput{
		Name:    "session summary",
		Content: `{"decisions":["use chi"]}`,
		GroupID: "recall-project-x",
	})
	require.NoError(t, err)

	assert.Equal(t, "recall-project-x", got["group_id"])
	messages := got["messages"].([]interface{})
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]interface{})
	assert.Equal(t, "json", msg["source"], "source inferred from content")
}

func TestRESTClient_SearchFacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "build flags", body["query"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"facts": []map[string]interface{}{{"uuid": "f1", "fact": "builds with -trimpath"}},
		})
	}))
	defer srv.Close()

	c := newTestRESTClient(t, srv.URL)
	facts, err := c.SearchFacts(context.Background(), SearchQuery{
		Query:      "build flags",
		GroupIDs:   []string{"recall-project-x"},
		MaxResults: 10,
	})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "f1", facts[0].UUID)
}

func TestRESTClient_EpisodePaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.RequestURI())
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"uuid": "ep1", "name": "n", "content": "c", "source": "text"},
			})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := newTestRESTClient(t, srv.URL)

	eps, err := c.GetEpisodes(context.Background(), "recall-user-a", 25)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "ep1", eps[0].UUID)

	require.NoError(t, c.DeleteEpisode(context.Background(), "ep1"))
	require.NoError(t, c.DeleteEntityEdge(context.Background(), "edge1"))
	require.NoError(t, c.ClearGroup(context.Background(), "recall-user-a"))

	assert.Equal(t, []string{
		"GET /episodes/recall-user-a?last_n=25",
		"DELETE /episode/ep1",
		"DELETE /entity-edge/edge1",
		"DELETE /group/recall-user-a",
	}, paths)
}

func TestRESTClient_GetEntityEdge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/entity-edge/edge-7", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"uuid": "edge-7", "fact": "prefers zerolog"})
	}))
	defer srv.Close()

	c := newTestRESTClient(t, srv.URL)
	fact, err := c.GetEntityEdge(context.Background(), "edge-7")
	require.NoError(t, err)
	assert.Equal(t, "prefers zerolog", fact.Fact)
}

func TestRESTClient_HTTPErrorPreservesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "group quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestRESTClient(t, srv.URL)
	err := c.AddMemory(context.Background(), episodeInput("x"))

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusTooManyRequests, he.StatusCode)
	assert.Contains(t, he.Body, "group quota exceeded")
}

func TestRESTClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewRESTClient(RESTConfig{
		BaseURL:     srv.URL,
		Logger:      zerolog.New(os.Stdout).Level(zerolog.Disabled),
		CallTimeout: 50 * time.Millisecond,
	})

	_, err := c.Status(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRESTClient_Healthcheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthcheck", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "healthy"})
	}))
	defer srv.Close()

	c := newTestRESTClient(t, srv.URL)
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.OK)
	assert.Equal(t, "rest", st.Transport)
}
