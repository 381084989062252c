// Package reflex implements the fast-path intent layer that bypasses the
// Consciousness Stack for high-frequency, low-latency commands.
package reflex

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/model/contract"

	"github.com/natefinch/atomic"
)

// LearnedPattern is a previously-taught skill invocation, keyed by its
// whitespace-normalized trigger phrase.
type LearnedPattern struct {
	Skill     string            `json:"skill"`
	Params    map[string]string `json:"params"`
	LearnedAt int64             `json:"learned_at"`
}

type staticPattern struct {
	re       *regexp.Regexp
	skill    string
	template map[string]string
}

// Engine is the reflex brain: exact cache, then learned patterns, then a
// static regex table, then fallthrough to the Consciousness Stack.
type Engine struct {
	mu             sync.Mutex
	exactCache     map[string]string
	exactCacheCap  int
	exactOrder     []string
	learned        map[string]LearnedPattern
	learnedPath    string
	staticPatterns []staticPattern
}

// New builds a reflex engine. learnedPath, when non-empty, is used to persist
// and reload taught patterns across restarts; exactCacheCap bounds the FIFO
// cache of cached verbatim responses.
func New(learnedPath string, exactCacheCap int) *Engine {
	if exactCacheCap <= 0 {
		exactCacheCap = 100
	}
	e := &Engine{
		exactCache:     make(map[string]string),
		exactCacheCap:  exactCacheCap,
		learned:        make(map[string]LearnedPattern),
		learnedPath:    learnedPath,
		staticPatterns: defaultPatterns(),
	}
	e.loadLearned()
	return e
}

func defaultPatterns() []staticPattern {
	return []staticPattern{
		{regexp.MustCompile(`^open\s+(?P<name>[\w\s]+)$`), "system_control", map[string]string{"action": "open_app", "name": "{name}"}},
		{regexp.MustCompile(`^launch\s+(?P<name>[\w\s]+)$`), "system_control", map[string]string{"action": "open_app", "name": "{name}"}},
		{regexp.MustCompile(`^type\s+(?P<text>.+)$`), "system_control", map[string]string{"action": "type", "text": "{text}"}},
		{regexp.MustCompile(`^click\s+(?P<x>\d+)\s+(?P<y>\d+)$`), "system_control", map[string]string{"action": "click", "x": "{x}", "y": "{y}"}},
		{regexp.MustCompile(`^scroll\s+(?P<amount>-?\d+)$`), "system_control", map[string]string{"action": "scroll", "amount": "{amount}"}},
		{regexp.MustCompile(`^press\s+(?P<key>\w+)$`), "system_control", map[string]string{"action": "press", "key": "{key}"}},
		{regexp.MustCompile(`^search\s+(?P<query>.+)$`), "browser", map[string]string{"action": "search", "query": "{query}"}},
		{regexp.MustCompile(`^google\s+(?P<query>.+)$`), "browser", map[string]string{"action": "search", "query": "{query}"}},
		{regexp.MustCompile(`^pause.*$`), "media_control", map[string]string{"action": "play_pause"}},
		{regexp.MustCompile(`^play.*$`), "media_control", map[string]string{"action": "play_pause"}},
		{regexp.MustCompile(`^resume.*$`), "media_control", map[string]string{"action": "play_pause"}},
		{regexp.MustCompile(`^stop\s+music.*$`), "media_control", map[string]string{"action": "stop"}},
		{regexp.MustCompile(`^next\s+(track|song).*$`), "media_control", map[string]string{"action": "next_track"}},
		{regexp.MustCompile(`^skip.*$`), "media_control", map[string]string{"action": "next_track"}},
		{regexp.MustCompile(`^prev(ious)?\s+(track|song).*$`), "media_control", map[string]string{"action": "prev_track"}},
		{regexp.MustCompile(`^mute.*$`), "media_control", map[string]string{"action": "mute"}},
		{regexp.MustCompile(`^unmute.*$`), "media_control", map[string]string{"action": "mute"}},
		{regexp.MustCompile(`^volume\s+up.*$`), "media_control", map[string]string{"action": "volume_up"}},
		{regexp.MustCompile(`^volume\s+down.*$`), "media_control", map[string]string{"action": "volume_down"}},
	}
}

// Think attempts to resolve user input without the LLM. It returns either a
// cached verbatim response, a resolved tool call, or (nil, nil, false) to
// signal the caller must fall through to the Consciousness Stack.
func (e *Engine) Think(userInput string) (response string, call *contract.ToolCall, handled bool) {
	clean := strings.ToLower(strings.TrimSpace(userInput))

	e.mu.Lock()
	if cached, ok := e.exactCache[clean]; ok {
		e.mu.Unlock()
		return cached, nil, true
	}

	normalized := strings.Join(strings.Fields(clean), " ")
	if pattern, ok := e.learned[normalized]; ok {
		e.mu.Unlock()
		slog.Info("reflex: learned pattern match", "input", normalized, "skill", pattern.Skill)
		return "", toolCallFromParams(pattern.Skill, pattern.Params), true
	}
	e.mu.Unlock()

	for _, p := range e.staticPatterns {
		match := p.re.FindStringSubmatch(clean)
		if match == nil {
			continue
		}
		groups := make(map[string]string)
		for i, name := range p.re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			groups[name] = match[i]
		}
		params := make(map[string]string, len(p.template))
		ok := true
		for k, tmpl := range p.template {
			v, err := fillTemplate(tmpl, groups)
			if err != nil {
				ok = false
				break
			}
			params[k] = v
		}
		if !ok {
			continue
		}
		return "", toolCallFromParams(p.skill, params), true
	}

	return "", nil, false
}

func fillTemplate(tmpl string, groups map[string]string) (string, error) {
	out := tmpl
	for k, v := range groups {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	if strings.Contains(out, "{") {
		return "", fmt.Errorf("unresolved template placeholder in %q", tmpl)
	}
	return out, nil
}

func toolCallFromParams(skill string, params map[string]string) *contract.ToolCall {
	args := make(map[string]interface{}, len(params))
	for k, v := range params {
		if n, err := strconv.Atoi(v); err == nil {
			args[k] = n
			continue
		}
		args[k] = v
	}
	raw, _ := json.Marshal(args)
	return &contract.ToolCall{Name: skill, Input: string(raw)}
}

// CacheIntent remembers a verbatim LLM response keyed by the input that
// produced it, with FIFO eviction once the cache fills.
func (e *Engine) CacheIntent(userInput, response string) {
	key := strings.ToLower(strings.TrimSpace(userInput))
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.exactCache[key]; !exists {
		if len(e.exactOrder) >= e.exactCacheCap {
			oldest := e.exactOrder[0]
			e.exactOrder = e.exactOrder[1:]
			delete(e.exactCache, oldest)
		}
		e.exactOrder = append(e.exactOrder, key)
	}
	e.exactCache[key] = response
}

// LearnPattern teaches a new fast-path mapping, typically promoted by
// MetaCognition after repeated identical LLM resolutions. Persists to disk
// when a learnedPath was configured.
func (e *Engine) LearnPattern(userInput, skill string, params map[string]string) {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(userInput))), " ")
	e.mu.Lock()
	e.learned[normalized] = LearnedPattern{Skill: skill, Params: params, LearnedAt: time.Now().Unix()}
	snapshot := make(map[string]LearnedPattern, len(e.learned))
	for k, v := range e.learned {
		snapshot[k] = v
	}
	e.mu.Unlock()

	slog.Info("reflex: learned new pattern", "input", normalized, "skill", skill)
	if err := e.saveLearned(snapshot); err != nil {
		slog.Warn("reflex: failed to persist learned patterns", "error", err)
	}
}

// LearnedCount reports how many patterns have been taught.
func (e *Engine) LearnedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.learned)
}

func (e *Engine) saveLearned(patterns map[string]LearnedPattern) error {
	if e.learnedPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.learnedPath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(e.learnedPath, strings.NewReader(string(data)))
}

func (e *Engine) loadLearned() {
	if e.learnedPath == "" {
		return
	}
	data, err := os.ReadFile(e.learnedPath)
	if err != nil {
		return
	}
	var patterns map[string]LearnedPattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		slog.Warn("reflex: failed to parse learned patterns, starting fresh", "error", err)
		return
	}
	e.learned = patterns
	slog.Info("reflex: loaded learned patterns", "count", len(patterns))
}
