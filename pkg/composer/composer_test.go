package composer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/recall/pkg/graph"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestComposer(cfg Config) *Composer {
	return New(cfg).WithClock(func() time.Time { return testNow })
}

func allOn() Config {
	return Config{
		MaxProfileItems:       5,
		InjectProfile:         true,
		InjectProjectMemories: true,
		InjectUserMemories:    true,
	}
}

func ptr[T any](v T) *T { return &v }

func TestCompose_EmptyInputsYieldEmptyString(t *testing.T) {
	c := newTestComposer(allOn())

	out := c.Compose(&graph.Profile{Static: []string{}, Dynamic: []string{}}, nil, nil)
	assert.Equal(t, "", out, "never a header-only block")

	out = c.Compose(nil, []graph.MemoryResult{}, []graph.MemoryResult{})
	assert.Equal(t, "", out)
}

func TestCompose_LineTagOrder(t *testing.T) {
	c := newTestComposer(allOn())
	validAt := testNow.Add(-48 * time.Hour)

	out := c.Compose(nil, nil, []graph.MemoryResult{{
		ID:         "f1",
		Content:    "prefers table-driven tests",
		Kind:       graph.KindFact,
		Labels:     []string{"Preference"},
		ValidAt:    &validAt,
		Similarity: ptr(0.87),
	}})

	require.NotEmpty(t, out)
	line := findLine(t, out, "prefers table-driven tests")
	assert.Equal(t, "- [fact] [Preference] [this week] [87%] prefers table-driven tests", line)
}

func TestCompose_RecencyBuckets(t *testing.T) {
	c := newTestComposer(allOn())

	tests := []struct {
		name string
		age  time.Duration
		want string
	}{
		{name: "hours old", age: 3 * time.Hour, want: "[recent]"},
		{name: "exactly one day", age: 24 * time.Hour, want: "[recent]"},
		{name: "five days", age: 5 * 24 * time.Hour, want: "[this week]"},
		{name: "exactly seven days", age: 7 * 24 * time.Hour, want: "[this week]"},
		{name: "seven and a half days", age: 7*24*time.Hour + 12*time.Hour, want: "[this month]"},
		{name: "three weeks", age: 21 * 24 * time.Hour, want: "[this month]"},
		{name: "exactly thirty days", age: 30 * 24 * time.Hour, want: "[this month]"},
		{name: "thirty and a half days", age: 30*24*time.Hour + 12*time.Hour, want: "[30d ago]"},
		{name: "two months", age: 60 * 24 * time.Hour, want: "[60d ago]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validAt := testNow.Add(-tt.age)
			out := c.Compose(nil, nil, []graph.MemoryResult{{
				ID: "m", Content: "memo", Kind: graph.KindFact, ValidAt: &validAt,
			}})
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestCompose_NoTemporalTagWithoutValidAt(t *testing.T) {
	c := newTestComposer(allOn())

	out := c.Compose(nil, nil, []graph.MemoryResult{{
		ID: "m1", Content: "plain memory", Kind: graph.KindNode, Similarity: ptr(0.9),
	}})

	line := findLine(t, out, "plain memory")
	assert.Equal(t, "- [node] [90%] plain memory", line)
}

func TestCompose_ProfileSectionsAndCaps(t *testing.T) {
	c := newTestComposer(Config{
		MaxProfileItems: 2,
		InjectProfile:   true,
	})

	out := c.Compose(&graph.Profile{
		Static:  []string{"s1", "s2", "s3"},
		Dynamic: []string{"d1", "d2", "d3"},
	}, nil, nil)

	assert.Contains(t, out, "## Stable preferences")
	assert.Contains(t, out, "## Recent context")
	assert.Contains(t, out, "- s1")
	assert.Contains(t, out, "- s2")
	assert.NotContains(t, out, "- s3", "static items capped")
	assert.NotContains(t, out, "- d3", "dynamic items capped")
}

func TestCompose_SectionToggles(t *testing.T) {
	memories := []graph.MemoryResult{{ID: "m", Content: "something", Kind: graph.KindFact}}
	profile := &graph.Profile{Static: []string{"s"}}

	c := newTestComposer(Config{InjectUserMemories: true, MaxProfileItems: 5})
	out := c.Compose(profile, memories, memories)
	assert.NotContains(t, out, "Stable preferences")
	assert.NotContains(t, out, "Project knowledge")
	assert.Contains(t, out, "Relevant memories")

	c = newTestComposer(Config{InjectProjectMemories: true, MaxProfileItems: 5})
	out = c.Compose(profile, memories, memories)
	assert.Contains(t, out, "Project knowledge")
	assert.NotContains(t, out, "Relevant memories")
}

func TestCompose_StartsWithHeaderWhenNonEmpty(t *testing.T) {
	c := newTestComposer(allOn())
	out := c.Compose(&graph.Profile{Static: []string{"likes Go"}}, nil, nil)
	assert.True(t, strings.HasPrefix(out, "# Memory recalled from previous sessions\n"))
}

func TestCompose_IsDeterministic(t *testing.T) {
	c := newTestComposer(allOn())
	validAt := testNow.Add(-2 * time.Hour)
	in := []graph.MemoryResult{
		{ID: "a", Content: "first", Kind: graph.KindNode, Similarity: ptr(0.9)},
		{ID: "b", Content: "second", Kind: graph.KindFact, ValidAt: &validAt},
	}

	assert.Equal(t, c.Compose(nil, in, nil), c.Compose(nil, in, nil))
}

func findLine(t *testing.T, block, substr string) string {
	t.Helper()
	for _, line := range strings.Split(block, "\n") {
		if strings.Contains(line, substr) {
			return line
		}
	}
	t.Fatalf("no line containing %q in:\n%s", substr, block)
	return ""
}
