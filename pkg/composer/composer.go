// Package composer assembles the bounded prompt-context block injected
// into a conversation. Compose is pure and deterministic given its
// inputs; it does no I/O, which keeps it unit-testable without a live
// backend.
package composer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harun/recall/pkg/graph"
)

const header = "# Memory recalled from previous sessions"

// Config controls which sections are emitted and how many profile items
// each profile section may carry.
type Config struct {
	MaxProfileItems       int
	InjectProfile         bool
	InjectProjectMemories bool
	InjectUserMemories    bool
}

// Composer builds context blocks. The clock is injectable so temporal
// tags are testable.
type Composer struct {
	cfg Config
	now func() time.Time
}

// New creates a composer with sane caps.
func New(cfg Config) *Composer {
	if cfg.MaxProfileItems <= 0 {
		cfg.MaxProfileItems = 5
	}
	return &Composer{cfg: cfg, now: time.Now}
}

// WithClock overrides the clock. Test hook.
func (c *Composer) WithClock(now func() time.Time) *Composer {
	c.now = now
	return c
}

// Compose builds one printable block from a profile and the two memory
// result sets. It returns the empty string, never a bare header, when
// there is nothing to inject.
func (c *Composer) Compose(profile *graph.Profile, project, user []graph.MemoryResult) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	emitted := false

	if c.cfg.InjectProfile && profile != nil && !profile.Empty() {
		if len(profile.Static) > 0 {
			b.WriteString("\n## Stable preferences\n")
			for _, fact := range capItems(profile.Static, c.cfg.MaxProfileItems) {
				fmt.Fprintf(&b, "- %s\n", fact)
			}
			emitted = true
		}
		if len(profile.Dynamic) > 0 {
			b.WriteString("\n## Recent context\n")
			for _, fact := range capItems(profile.Dynamic, c.cfg.MaxProfileItems) {
				fmt.Fprintf(&b, "- %s\n", fact)
			}
			emitted = true
		}
	}

	if c.cfg.InjectProjectMemories && len(project) > 0 {
		b.WriteString("\n## Project knowledge\n")
		for _, m := range project {
			fmt.Fprintf(&b, "- %s\n", c.formatLine(m))
		}
		emitted = true
	}

	if c.cfg.InjectUserMemories && len(user) > 0 {
		b.WriteString("\n## Relevant memories\n")
		for _, m := range user {
			fmt.Fprintf(&b, "- %s\n", c.formatLine(m))
		}
		emitted = true
	}

	if !emitted {
		return ""
	}
	return b.String()
}

// formatLine renders one memory as, in fixed order: kind tag, label
// tag, temporal-recency tag, similarity tag, then the content text.
func (c *Composer) formatLine(m graph.MemoryResult) string {
	var parts []string

	if m.Kind != "" {
		parts = append(parts, fmt.Sprintf("[%s]", m.Kind))
	}
	if len(m.Labels) > 0 {
		parts = append(parts, fmt.Sprintf("[%s]", strings.Join(m.Labels, ",")))
	}
	if tag := c.recencyTag(m.ValidAt); tag != "" {
		parts = append(parts, fmt.Sprintf("[%s]", tag))
	}
	if m.Similarity != nil {
		parts = append(parts, fmt.Sprintf("[%d%%]", int(math.Round(*m.Similarity*100))))
	}

	parts = append(parts, m.Content)
	return strings.Join(parts, " ")
}

// recencyTag buckets now − validAt. An absent validAt yields no tag.
func (c *Composer) recencyTag(validAt *time.Time) string {
	if validAt == nil {
		return ""
	}
	age := c.now().Sub(*validAt)
	switch {
	case age <= 24*time.Hour:
		return "recent"
	case age <= 7*24*time.Hour:
		return "this week"
	case age <= 30*24*time.Hour:
		return "this month"
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

func capItems(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
