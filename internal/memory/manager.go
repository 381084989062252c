// Package memory implements the four-layer hierarchical memory stack:
// Working (short-term scratchpad), Episodic (narrative recall), Semantic
// (abstracted lessons and consolidated wisdom), and Identity (decay-resistant
// self-model).
package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aegis-run/aegis/internal/model/contract"
)

// Router is the narrow model-routing surface the dream cycle needs to
// summarize episodic logs into semantic wisdom.
type Router interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
}

// FullContext is everything the Deliberation layer needs pulled from memory
// ahead of a turn.
type FullContext struct {
	Working         []Turn
	Episodic        []RecalledEpisode
	SemanticLessons []Lesson
	NarrativeWisdom string
	IdentityPrompt  string
}

// Manager orchestrates the four memory layers and the dream-cycle
// consolidation that moves raw experience into lasting wisdom.
type Manager struct {
	Working  *Working
	Episodic *Episodic
	Semantic *Semantic
	Identity *Identity

	mu                 sync.Mutex
	episodesSinceDream int
	dreamEveryN        int
	reasoningModel     string
	maxInsights        int
}

// NewManager wires the four layers together. dreamEveryN is the episode
// count that triggers an automatic consolidation pass (0 disables the
// automatic trigger; Mission Control can still call Dream directly).
func NewManager(working *Working, episodic *Episodic, semantic *Semantic, identity *Identity, dreamEveryN int, reasoningModel string, maxInsights int) *Manager {
	if maxInsights <= 0 {
		maxInsights = 3
	}
	return &Manager{
		Working: working, Episodic: episodic, Semantic: semantic, Identity: identity,
		dreamEveryN: dreamEveryN, reasoningModel: reasoningModel, maxInsights: maxInsights,
	}
}

// GetFullContext synthesizes context across all four layers for the
// Deliberation layer.
func (m *Manager) GetFullContext(ctx context.Context, sessionID, currentInput string) FullContext {
	insights := m.Semantic.TopInsights(m.maxInsights)
	var wisdom strings.Builder
	for i, w := range insights {
		if i > 0 {
			wisdom.WriteString("\n")
		}
		wisdom.WriteString("- [" + strings.ToUpper(w.Category) + "]: " + w.Text)
	}

	return FullContext{
		Working:         m.Working.Trace(sessionID),
		Episodic:        m.Episodic.RetrieveContext(ctx, currentInput, 0),
		SemanticLessons: m.Semantic.RelevantLessons(currentInput, 5),
		NarrativeWisdom: wisdom.String(),
		IdentityPrompt:  m.Identity.IdentityPrompt(),
	}
}

// RecordInteraction disperses a completed cognitive cycle to episodic and
// (for high-confidence outcomes) semantic memory, and checks whether enough
// episodes have accumulated to trigger a dream cycle.
func (m *Manager) RecordInteraction(ctx context.Context, router Router, intent, action, outcome string, confidence float64) {
	m.Episodic.AddEpisode(ctx, "interaction", intent, action, outcome, confidence)

	if confidence > 0.8 {
		m.Semantic.SaveLesson(
			"On '"+intent+"', successfully used '"+action+"' to achieve '"+truncate(outcome, 50)+"'.",
			"empirical learning",
		)
	}

	if m.dreamEveryN <= 0 {
		return
	}
	m.mu.Lock()
	m.episodesSinceDream++
	due := m.episodesSinceDream >= m.dreamEveryN
	if due {
		m.episodesSinceDream = 0
	}
	m.mu.Unlock()

	if due && router != nil {
		m.Dream(ctx, router)
	}
}

// Dream runs the consolidation cycle: it summarizes recent reinforced
// episodes into at most maxInsights categorized, deduplicated pieces of
// semantic wisdom.
func (m *Manager) Dream(ctx context.Context, router Router) {
	episodes := m.Episodic.RecentForConsolidation(20)
	if len(episodes) == 0 {
		return
	}
	slog.Info("memory: initiating dream cycle consolidation", "episodes", len(episodes))

	var logs strings.Builder
	for _, ep := range episodes {
		logs.WriteString("- " + ep.Intent + " -> Result: " + truncate(ep.Outcome, 100) + "\n")
	}

	system := "You extract long-term semantic knowledge from recent episodic logs.\n" +
		"Constraints:\n" +
		"- Extract 1-3 highly specific insights (e.g. 'prefers Python over JS for data tasks').\n" +
		"- Categorize each as: coding, ethics, workflow, or user_pref.\n" +
		"- Format each line as 'category: insight'."

	resp, err := router.Route(ctx, m.reasoningModel, contract.CompletionRequest{
		Model: m.reasoningModel,
		Messages: []contract.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "RECENT LOGS:\n" + logs.String()},
		},
	})
	if err != nil {
		slog.Error("memory: dream cycle failed", "error", err)
		return
	}

	count := 0
	for _, line := range strings.Split(resp.Content, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		category := strings.ToLower(strings.TrimSpace(line[:idx]))
		insight := strings.TrimSpace(line[idx+1:])
		if insight == "" {
			continue
		}
		m.Semantic.UpsertInsight(category, insight)
		count++
		if count >= m.maxInsights {
			break
		}
	}
	slog.Info("memory: dream cycle complete", "insights_extracted", count)
}

// Flush forces any debounced persistence to disk, for graceful shutdown.
func (m *Manager) Flush() {
	m.Episodic.Flush()
}
