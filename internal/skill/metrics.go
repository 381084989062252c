package skill

import (
	"sync"
	"time"
)

// SkillMetric tracks a single skill's execution reliability so the
// Consciousness Stack can prefer skills with a track record over ones that
// habitually fail.
type SkillMetric struct {
	Name          string
	Invocations   int
	Successes     int
	Failures      int
	LastInvokedAt time.Time
	LastError     string
	AvgDurationMs float64
}

// SuccessRate returns the fraction of invocations that succeeded, or 1.0 for
// a skill with no recorded invocations (optimistic default).
func (m SkillMetric) SuccessRate() float64 {
	if m.Invocations == 0 {
		return 1.0
	}
	return float64(m.Successes) / float64(m.Invocations)
}

// MetricTracker accumulates SkillMetric entries keyed by skill name.
type MetricTracker struct {
	mu      sync.RWMutex
	metrics map[string]*SkillMetric
}

func NewMetricTracker() *MetricTracker {
	return &MetricTracker{metrics: make(map[string]*SkillMetric)}
}

// RecordExecution updates the named skill's reliability metric after a run.
func (t *MetricTracker) RecordExecution(name string, success bool, duration time.Duration, execErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.metrics[name]
	if !ok {
		m = &SkillMetric{Name: name}
		t.metrics[name] = m
	}

	m.Invocations++
	if success {
		m.Successes++
	} else {
		m.Failures++
		if execErr != nil {
			m.LastError = execErr.Error()
		}
	}
	m.LastInvokedAt = time.Now()

	durMs := float64(duration.Milliseconds())
	if m.Invocations == 1 {
		m.AvgDurationMs = durMs
	} else {
		m.AvgDurationMs += (durMs - m.AvgDurationMs) / float64(m.Invocations)
	}
}

// Get returns the tracked metric for name, or a zero-value metric if the
// skill has never been recorded.
func (t *MetricTracker) Get(name string) SkillMetric {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if m, ok := t.metrics[name]; ok {
		return *m
	}
	return SkillMetric{Name: name}
}

// All returns every tracked metric, most-invoked first.
func (t *MetricTracker) All() []SkillMetric {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]SkillMetric, 0, len(t.metrics))
	for _, m := range t.metrics {
		out = append(out, *m)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Invocations > out[j-1].Invocations; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
