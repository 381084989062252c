// Package memory adapts the four-layer hierarchical memory stack to the
// narrow cognitive.MemoryManager surface the Consciousness Stack consumes,
// while also exposing the full stack for components (the task manager,
// Mission Control) that need session-aware recall and dream-cycle control.
package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aegis-run/aegis/internal/cognitive"
	hierarchical "github.com/aegis-run/aegis/internal/memory"
)

// Adapter wraps the hierarchical memory stack so it satisfies
// cognitive.MemoryManager for engines that only need flat fact recall.
type Adapter struct {
	Stack *hierarchical.Manager
}

func NewAdapter(stack *hierarchical.Manager) *Adapter {
	return &Adapter{Stack: stack}
}

// Ensure Adapter implements cognitive.MemoryManager
var _ cognitive.MemoryManager = (*Adapter)(nil)

func (a *Adapter) Retrieve(ctx context.Context, query string) ([]string, error) {
	full := a.Stack.GetFullContext(ctx, "", query)

	var facts []string
	for _, ep := range full.Episodic {
		facts = append(facts, ep.Intent+" -> "+ep.Outcome)
	}
	for _, l := range full.SemanticLessons {
		facts = append(facts, l.Text)
	}
	if full.IdentityPrompt != "" {
		facts = append(facts, full.IdentityPrompt)
	}

	slog.Debug("memory adapter: retrieved", "query", query, "count", len(facts))
	return facts, nil
}

func (a *Adapter) Remember(ctx context.Context, fact string) error {
	a.Stack.Semantic.SaveLesson(strings.TrimSpace(fact), "cognitive engine")
	return nil
}
