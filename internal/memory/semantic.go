package memory

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Lesson is a concrete, empirically-learned rule of thumb abstracted from a
// high-confidence interaction.
type Lesson struct {
	Text       string    `json:"text"`
	SourceTask string    `json:"source_task"`
	CreatedAt  time.Time `json:"created_at"`
}

// Insight is a consolidated piece of wisdom produced by a dream cycle,
// deduplicated by the hash of its text and reinforced on repeat discovery.
type Insight struct {
	Category        string    `json:"category"` // coding, ethics, workflow, user_pref
	Text            string    `json:"insight"`
	SourceCount     int       `json:"source_count"`
	LastReinforced  time.Time `json:"last_reinforced"`
}

type semanticDoc struct {
	Lessons  []Lesson           `json:"lessons"`
	Insights map[string]Insight `json:"insights"` // keyed by md5(text)[:8]
}

// Semantic is the abstracted-knowledge layer: empirical lessons plus the
// consolidated wisdom the dream cycle distills from episodic memory.
type Semantic struct {
	mu   sync.Mutex
	path string
	doc  semanticDoc
}

func NewSemantic(path string) *Semantic {
	s := &Semantic{path: path, doc: semanticDoc{Insights: make(map[string]Insight)}}
	s.load()
	return s
}

// SaveLesson records a new empirically-learned rule, skipping exact-text
// duplicates.
func (s *Semantic) SaveLesson(text, sourceTask string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.doc.Lessons {
		if l.Text == text {
			return
		}
	}
	s.doc.Lessons = append(s.doc.Lessons, Lesson{Text: text, SourceTask: sourceTask, CreatedAt: time.Now()})
	s.persistLocked()
}

// RelevantLessons returns lessons whose text shares a keyword with the
// query, most recent first, capped at limit.
func (s *Semantic) RelevantLessons(query string, limit int) []Lesson {
	s.mu.Lock()
	defer s.mu.Unlock()
	queryWords := strings.Fields(strings.ToLower(query))
	var matched []Lesson
	for i := len(s.doc.Lessons) - 1; i >= 0; i-- {
		l := s.doc.Lessons[i]
		lower := strings.ToLower(l.Text)
		for _, w := range queryWords {
			if len(w) > 3 && strings.Contains(lower, w) {
				matched = append(matched, l)
				break
			}
		}
		if len(matched) >= limit {
			break
		}
	}
	return matched
}

// UpsertInsight records or reinforces a consolidated insight produced by the
// dream cycle, deduplicating by the insight's own text.
func (s *Semantic) UpsertInsight(category, text string) {
	key := insightKey(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.doc.Insights[key]
	if ok {
		existing.SourceCount++
		existing.LastReinforced = time.Now()
		s.doc.Insights[key] = existing
	} else {
		s.doc.Insights[key] = Insight{Category: category, Text: text, SourceCount: 1, LastReinforced: time.Now()}
	}
	s.persistLocked()
}

// TopInsights returns the most recently reinforced insights, for injection
// into the Deliberation layer's prompt as "narrative wisdom".
func (s *Semantic) TopInsights(limit int) []Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	insights := make([]Insight, 0, len(s.doc.Insights))
	for _, ins := range s.doc.Insights {
		insights = append(insights, ins)
	}
	sortInsightsByRecency(insights)
	if len(insights) > limit {
		insights = insights[:limit]
	}
	return insights
}

func sortInsightsByRecency(insights []Insight) {
	for i := 1; i < len(insights); i++ {
		for j := i; j > 0 && insights[j].LastReinforced.After(insights[j-1].LastReinforced); j-- {
			insights[j], insights[j-1] = insights[j-1], insights[j]
		}
	}
}

func insightKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:8]
}

func (s *Semantic) persistLocked() {
	if s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		slog.Error("semantic: failed to create dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		slog.Error("semantic: failed to marshal", "error", err)
		return
	}
	if err := atomic.WriteFile(s.path, strings.NewReader(string(data))); err != nil {
		slog.Error("semantic: failed to persist", "error", err)
	}
}

func (s *Semantic) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var doc semanticDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("semantic: failed to parse store, starting fresh", "error", err)
		return
	}
	if doc.Insights == nil {
		doc.Insights = make(map[string]Insight)
	}
	s.doc = doc
	slog.Info("semantic: loaded store", "lessons", len(doc.Lessons), "insights", len(doc.Insights))
}
