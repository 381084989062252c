package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/debounce"
	"github.com/aegis-run/aegis/internal/store"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
)

const episodicCollection = "episodes"

// Embedder is the narrow model-routing surface the episodic layer needs to
// turn an episode's story into a vector.
type Embedder interface {
	RouteEmbedding(ctx context.Context, model, text string) ([]float32, error)
}

// VectorStore is the subset of store.Worker's API the episodic layer drives.
type VectorStore interface {
	UpsertVector(collection, id string, vector []float32, metadata map[string]string, content string) error
	SearchVectors(collection string, vector []float32, limit int) ([]store.VectorResult, error)
}

// Episode is one complete cognitive cycle: what triggered it, what was
// decided, and what happened.
type Episode struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Context      string    `json:"context"`
	Intent       string    `json:"intent"`
	Action       string    `json:"action"`
	Outcome      string    `json:"outcome"`
	Confidence   float64   `json:"confidence"`
	AccessCount  int       `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// RecalledEpisode is an episode surfaced by retrieval, with its relevance
// score when recalled semantically.
type RecalledEpisode struct {
	Episode
	Relevance float64
}

// Episodic is the narrative memory subsystem: embeds and stores episodes in
// a vector collection for semantic recall, with a recency-ordered fallback
// and access-count reinforcement, and tracks consolidated semantic wisdom.
type Episodic struct {
	mu           sync.Mutex
	vectors      VectorStore
	embedder     Embedder
	embedModel   string
	topK         int
	minScore     float64
	journalPath  string
	episodes     []Episode // recency index, newest last
	debouncer    *debounce.Debouncer
}

// NewEpisodic builds the episodic layer. journalPath, if non-empty, persists
// the recency index (access counts, timestamps) across restarts.
func NewEpisodic(vectors VectorStore, embedder Embedder, embedModel string, topK int, minScore float64, journalPath string) *Episodic {
	if topK <= 0 {
		topK = 3
	}
	e := &Episodic{
		vectors:     vectors,
		embedder:    embedder,
		embedModel:  embedModel,
		topK:        topK,
		minScore:    minScore,
		journalPath: journalPath,
	}
	e.debouncer = debounce.New(2*time.Second, e.persist)
	e.loadJournal()
	return e
}

// AddEpisode records a complete cognitive cycle as a narrative episode.
func (e *Episodic) AddEpisode(ctx context.Context, triggerContext, intent, action, outcome string, confidence float64) {
	id := ulid.Make().String()
	now := time.Now()
	ep := Episode{
		ID: id, Timestamp: now, Context: triggerContext, Intent: intent,
		Action: action, Outcome: outcome, Confidence: confidence,
		AccessCount: 1, LastAccessed: now,
	}

	story := "Context: " + triggerContext + " | Intent: " + intent + " | Action: " + action + " | Outcome: " + outcome
	if e.embedder != nil {
		if vec, err := e.embedder.RouteEmbedding(ctx, e.embedModel, story); err == nil {
			meta := map[string]string{
				"intent": intent, "action": action, "outcome": outcome,
				"confidence": strconv.FormatFloat(confidence, 'f', -1, 64),
			}
			if err := e.vectors.UpsertVector(episodicCollection, id, vec, meta, story); err != nil {
				slog.Error("episodic: failed to upsert episode vector", "error", err)
			}
		} else {
			slog.Warn("episodic: embedding failed, episode stored in recency index only", "error", err)
		}
	}

	e.mu.Lock()
	e.episodes = append(e.episodes, ep)
	e.mu.Unlock()
	e.debouncer.MarkDirty()

	slog.Info("episodic: recorded narrative episode", "intent", intent, "outcome", truncate(outcome, 50))
}

// RetrieveContext performs the "omniscience-like recall": it finds
// semantically relevant past episodes, reinforcing each one's access count,
// falling back to recency order when no embedder is configured or the
// vector search comes up empty.
func (e *Episodic) RetrieveContext(ctx context.Context, currentIntent string, limit int) []RecalledEpisode {
	if limit <= 0 {
		limit = e.topK
	}

	if e.embedder != nil {
		if vec, err := e.embedder.RouteEmbedding(ctx, e.embedModel, currentIntent); err == nil {
			results, err := e.vectors.SearchVectors(episodicCollection, vec, limit)
			if err == nil && len(results) > 0 {
				out := make([]RecalledEpisode, 0, len(results))
				for _, r := range results {
					if float64(r.Score) < e.minScore {
						continue
					}
					e.touch(r.ID)
					out = append(out, RecalledEpisode{
						Episode: Episode{
							ID: r.ID, Intent: r.Metadata["intent"], Action: r.Metadata["action"],
							Outcome: r.Metadata["outcome"],
						},
						Relevance: float64(r.Score),
					})
				}
				if len(out) > 0 {
					return out
				}
			} else if err != nil {
				slog.Warn("episodic: semantic retrieval failed, falling back to recency", "error", err)
			}
		}
	}

	return e.recentEpisodes(limit)
}

func (e *Episodic) recentEpisodes(limit int) []RecalledEpisode {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.episodes)
	if n == 0 {
		return nil
	}
	start := n - limit
	if start < 0 {
		start = 0
	}
	recent := e.episodes[start:]
	out := make([]RecalledEpisode, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		out = append(out, RecalledEpisode{Episode: recent[i]})
	}
	return out
}

func (e *Episodic) touch(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.episodes {
		if e.episodes[i].ID == id {
			e.episodes[i].AccessCount++
			e.episodes[i].LastAccessed = time.Now()
			break
		}
	}
	e.debouncer.MarkDirty()
}

// DecayMemories drops episodes that have neither been reinforced nor
// recalled within retentionDays and whose access count stayed low.
func (e *Episodic) DecayMemories(retentionDays int) int {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.episodes[:0]
	pruned := 0
	for _, ep := range e.episodes {
		if ep.LastAccessed.Before(cutoff) && ep.AccessCount < 3 {
			pruned++
			continue
		}
		kept = append(kept, ep)
	}
	e.episodes = kept
	if pruned > 0 {
		e.debouncer.MarkDirty()
	}
	return pruned
}

// RecentForConsolidation returns the most recently recorded, reinforced
// episodes as raw logs for the dream-cycle summarizer.
func (e *Episodic) RecentForConsolidation(limit int) []Episode {
	e.mu.Lock()
	defer e.mu.Unlock()
	var eligible []Episode
	for _, ep := range e.episodes {
		if ep.AccessCount > 0 {
			eligible = append(eligible, ep)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Timestamp.After(eligible[j].Timestamp) })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible
}

func (e *Episodic) persist() {
	if e.journalPath == "" {
		return
	}
	e.mu.Lock()
	snapshot := make([]Episode, len(e.episodes))
	copy(snapshot, e.episodes)
	e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.journalPath), 0755); err != nil {
		slog.Error("episodic: failed to create journal dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		slog.Error("episodic: failed to marshal journal", "error", err)
		return
	}
	if err := atomic.WriteFile(e.journalPath, strings.NewReader(string(data))); err != nil {
		slog.Error("episodic: failed to persist journal", "error", err)
	}
}

// Flush forces an immediate journal write, for use during graceful shutdown.
func (e *Episodic) Flush() {
	e.debouncer.Flush()
}

func (e *Episodic) loadJournal() {
	if e.journalPath == "" {
		return
	}
	data, err := os.ReadFile(e.journalPath)
	if err != nil {
		return
	}
	var episodes []Episode
	if err := json.Unmarshal(data, &episodes); err != nil {
		slog.Warn("episodic: failed to parse journal, starting fresh", "error", err)
		return
	}
	e.episodes = episodes
	slog.Info("episodic: loaded recency index", "count", len(episodes))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
