// Package mission implements Mission Control: autonomous goal governance
// over long-running, optionally recurring objectives that get stepped by
// self-prompting the Controller whenever they come due.
package mission

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/debounce"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
	cron "github.com/robfig/cron/v3"
)

type Type string

const (
	TypeResearch    Type = "research"
	TypeMaintenance Type = "maintenance"
	TypeMonitoring  Type = "monitoring"
	TypeCreative    Type = "creative"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Mission is a long-running proactive goal. A CronSchedule, when set, takes
// precedence over RepeatInterval for deciding when the mission next comes
// due; RepeatInterval covers the common "every N seconds" case without
// requiring a cron expression.
type Mission struct {
	ID             string        `json:"id"`
	Description    string        `json:"description"`
	Priority       int           `json:"priority"` // higher runs first
	Type           Type          `json:"type"`
	Status         Status        `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	LastCheck      time.Time     `json:"last_check"`
	RepeatInterval time.Duration `json:"repeat_interval"` // 0 = one-off
	CronSchedule   string        `json:"cron_schedule,omitempty"`
	Progress       float64       `json:"progress"`

	index int // heap bookkeeping
}

const completionToken = "MISSION COMPLETE"

// Executor re-enters the Controller to step a mission as a self-prompted
// system request.
type Executor interface {
	ProcessRequest(ctx context.Context, prompt string) (string, error)
}

type missionHeap []*Mission

func (h missionHeap) Len() int { return len(h) }
func (h missionHeap) Less(i, j int) bool {
	return h[i].Priority > h[j].Priority // max-heap: highest priority first
}
func (h missionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *missionHeap) Push(x interface{}) {
	m := x.(*Mission)
	m.index = len(*h)
	*h = append(*h, m)
}
func (h *missionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	m.index = -1
	*h = old[:n-1]
	return m
}

// Control is Mission Control: the priority queue of active missions and the
// tick loop that steps the highest-priority mission whenever it is due. Only
// the top of the heap is checked on each tick.
type Control struct {
	mu       sync.Mutex
	queue    missionHeap
	byID     map[string]*Mission
	path     string
	maxActive int

	cronParser cron.Parser
	debouncer  *debounce.Debouncer

	ticker *time.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

func New(path string, maxActive int) *Control {
	if maxActive <= 0 {
		maxActive = 50
	}
	c := &Control{
		byID: make(map[string]*Mission), path: path, maxActive: maxActive,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
	c.debouncer = debounce.New(1*time.Second, c.persist)
	heap.Init(&c.queue)
	c.load()
	if len(c.byID) == 0 {
		c.hydrateDefaults()
	}
	return c
}

func (c *Control) hydrateDefaults() {
	c.AddMission("weekly security audit", 20, TypeMaintenance, 7*24*time.Hour, "")
	c.AddMission("daily knowledge synthesis", 40, TypeResearch, 24*time.Hour, "")
}

// AddMission queues a new directive, persisting the updated schedule.
func (c *Control) AddMission(description string, priority int, mType Type, repeatInterval time.Duration, cronSchedule string) string {
	m := &Mission{
		ID: strings.ToLower(ulid.Make().String()[:8]), Description: description, Priority: priority, Type: mType,
		Status: StatusPending, CreatedAt: time.Now(), RepeatInterval: repeatInterval, CronSchedule: cronSchedule,
	}
	c.mu.Lock()
	if len(c.byID) >= c.maxActive {
		c.mu.Unlock()
		slog.Warn("mission: max active missions reached, directive dropped", "description", description)
		return ""
	}
	heap.Push(&c.queue, m)
	c.byID[m.ID] = m
	c.mu.Unlock()
	c.debouncer.MarkDirty()
	slog.Info("mission control: new directive queued", "description", description)
	return m.ID
}

// Start launches the background autonomy loop: every tickInterval it checks
// the highest-priority mission and, if it is due, steps it via executor.
func (c *Control) Start(ctx context.Context, executor Executor, tickInterval time.Duration) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.ticker = time.NewTicker(tickInterval)
	c.done = make(chan struct{})

	slog.Info("mission control: autonomy engine engaged")
	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.ticker.C:
				c.tick(runCtx, executor)
			case <-runCtx.Done():
				slog.Info("mission control: autonomy loop stopped")
				return
			}
		}
	}()
}

// Stop halts the autonomy loop and waits for it to exit.
func (c *Control) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
	c.debouncer.Flush()
}

func (c *Control) tick(ctx context.Context, executor Executor) {
	c.mu.Lock()
	if c.queue.Len() == 0 {
		c.mu.Unlock()
		return
	}
	top := c.queue[0]
	due := c.isDue(top)
	c.mu.Unlock()

	if !due {
		return
	}
	c.stepMission(ctx, executor, top)
}

func (c *Control) isDue(m *Mission) bool {
	if m.CronSchedule != "" {
		sched, err := c.cronParser.Parse(m.CronSchedule)
		if err != nil {
			slog.Warn("mission: invalid cron schedule, falling back to hourly", "mission", m.ID, "error", err)
			return time.Since(m.LastCheck) >= time.Hour
		}
		if m.LastCheck.IsZero() {
			return true
		}
		return !sched.Next(m.LastCheck).After(time.Now())
	}
	interval := m.RepeatInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return time.Since(m.LastCheck) >= interval
}

func (c *Control) stepMission(ctx context.Context, executor Executor, m *Mission) {
	slog.Info("mission control: stepping mission", "description", m.Description)
	c.mu.Lock()
	m.Status = StatusActive
	m.LastCheck = time.Now()
	c.mu.Unlock()

	prompt := fmt.Sprintf(
		"MISSION: %s\nSTATUS: %.1f%% complete\nGOAL: execute the next logical step for this mission. If complete, say so. If blocked, report it.",
		m.Description, m.Progress,
	)

	response, err := executor.ProcessRequest(ctx, prompt)
	if err != nil {
		slog.Error("mission control: step failed", "mission", m.ID, "error", err)
		c.debouncer.MarkDirty()
		return
	}

	slog.Info("mission control: step result", "mission", m.ID, "result", truncate(response, 100))

	if strings.Contains(strings.ToUpper(response), completionToken) {
		c.mu.Lock()
		if m.RepeatInterval > 0 || m.CronSchedule != "" {
			m.Status = StatusPending
			slog.Info("mission control: recurring mission cycle complete", "description", m.Description)
		} else {
			m.Status = StatusComplete
			delete(c.byID, m.ID)
			c.removeFromQueue(m)
			slog.Info("mission control: mission completed", "description", m.Description)
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	heap.Fix(&c.queue, m.index)
	c.mu.Unlock()
	c.debouncer.MarkDirty()
}

func (c *Control) removeFromQueue(m *Mission) {
	if m.index < 0 || m.index >= c.queue.Len() {
		return
	}
	heap.Remove(&c.queue, m.index)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Active returns a snapshot of every mission still tracked, regardless of
// queue position.
func (c *Control) Active() []Mission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Mission, 0, len(c.byID))
	for _, m := range c.byID {
		out = append(out, *m)
	}
	return out
}

func (c *Control) persist() {
	c.mu.Lock()
	snapshot := make([]Mission, 0, len(c.byID))
	for _, m := range c.byID {
		snapshot = append(snapshot, *m)
	}
	c.mu.Unlock()

	if c.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		slog.Error("mission: failed to create persist dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		slog.Error("mission: failed to marshal missions", "error", err)
		return
	}
	if err := atomic.WriteFile(c.path, strings.NewReader(string(data))); err != nil {
		slog.Error("mission: failed to persist missions", "error", err)
	}
}

func (c *Control) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var missions []Mission
	if err := json.Unmarshal(data, &missions); err != nil {
		slog.Warn("mission: failed to parse persisted missions, starting fresh", "error", err)
		return
	}
	for i := range missions {
		m := missions[i]
		if m.Status == StatusComplete {
			continue
		}
		heap.Push(&c.queue, &m)
		c.byID[m.ID] = &m
	}
	slog.Info("mission control: restored missions", "count", len(c.byID))
}
