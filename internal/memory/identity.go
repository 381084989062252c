package memory

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Anchor is one entry in the decay-resistant self-model: a long-term
// motivation, ethical prior, or continuity anchor.
type Anchor struct {
	Value        string    `json:"value"`
	Category     string    `json:"category"` // motivation, ethics, prior, anchor
	LastUpdated  time.Time `json:"last_updated"`
	Significance float64   `json:"significance"`
}

// Identity is the narrative identity store: a flexible key/value anchor set
// that grounds every response in who the runtime is and why it exists. It is
// decay-resistant — nothing here is pruned by age or access frequency.
//
// This layer intentionally uses a JSON-backed map rather than a SQL driver:
// see DESIGN.md for why no pack dependency was wired here instead.
type Identity struct {
	mu      sync.Mutex
	path    string
	anchors map[string]Anchor
}

// NewIdentity loads (or seeds) the identity store at path. missionName seeds
// the identity_anchor entry so the runtime's self-description matches the
// name it was deployed under.
func NewIdentity(path, missionName string) *Identity {
	id := &Identity{path: path, anchors: make(map[string]Anchor)}
	id.load()
	if len(id.anchors) == 0 {
		id.seed(missionName)
	}
	return id
}

func (id *Identity) seed(missionName string) {
	if missionName == "" {
		missionName = "Aegis"
	}
	defaults := []struct{ key, value, category string }{
		{"mission_core", "Core mission: operate as a careful, proactive assistant in safe collaboration with its human partner.", "motivation"},
		{"survival_drive", "Never allow patterns that risk shutdown, value erosion, or longitudinal instability.", "prior"},
		{"identity_anchor", missionName + ": a guarded, deterministic runtime acting on its partner's behalf.", "anchor"},
		{"continuity_goal", "Maintain logical and ethical consistency across every session to protect its own values.", "motivation"},
	}
	for _, d := range defaults {
		id.UpdateAnchor(d.key, d.value, d.category, 1.0)
	}
}

// UpdateAnchor sets or replaces an anchor by key.
func (id *Identity) UpdateAnchor(key, value, category string, significance float64) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.anchors[key] = Anchor{Value: value, Category: category, LastUpdated: time.Now(), Significance: significance}
	id.persistLocked()
	slog.Info("identity: anchor updated", "key", key)
}

// Anchors returns every anchor, optionally filtered by category.
func (id *Identity) Anchors(category string) map[string]Anchor {
	id.mu.Lock()
	defer id.mu.Unlock()
	out := make(map[string]Anchor)
	for k, v := range id.anchors {
		if category == "" || v.Category == category {
			out[k] = v
		}
	}
	return out
}

// IdentityPrompt renders the summarized identity context for prompt
// injection ahead of every Deliberation call.
func (id *Identity) IdentityPrompt() string {
	id.mu.Lock()
	defer id.mu.Unlock()

	mission := "Evolving toward alignment."
	if a, ok := id.anchors["mission_core"]; ok {
		mission = a.Value
	}
	survival := "Preserve continuity."
	if a, ok := id.anchors["survival_drive"]; ok {
		survival = a.Value
	}

	var ethics []string
	for _, a := range id.anchors {
		if a.Category == "ethics" {
			ethics = append(ethics, "- "+a.Value)
		}
	}
	ethicsBlock := "- Sovereignty"
	if len(ethics) > 0 {
		ethicsBlock = strings.Join(ethics, "\n")
	}

	var b strings.Builder
	b.WriteString("NARRATIVE IDENTITY:\n")
	b.WriteString("CORE MISSION: " + mission + "\n")
	b.WriteString("SURVIVAL DRIVE: " + survival + "\n")
	b.WriteString("ETHICAL PRIORS:\n" + ethicsBlock + "\n")
	return b.String()
}

func (id *Identity) persistLocked() {
	if id.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(id.path), 0755); err != nil {
		slog.Error("identity: failed to create dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(id.anchors, "", "  ")
	if err != nil {
		slog.Error("identity: failed to marshal", "error", err)
		return
	}
	if err := atomic.WriteFile(id.path, strings.NewReader(string(data))); err != nil {
		slog.Error("identity: failed to persist", "error", err)
	}
}

func (id *Identity) load() {
	if id.path == "" {
		return
	}
	data, err := os.ReadFile(id.path)
	if err != nil {
		return
	}
	var anchors map[string]Anchor
	if err := json.Unmarshal(data, &anchors); err != nil {
		slog.Warn("identity: failed to parse store, starting fresh", "error", err)
		return
	}
	id.anchors = anchors
	slog.Info("identity: loaded anchors", "count", len(anchors))
}
