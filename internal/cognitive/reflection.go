package cognitive

import (
	"context"
	"strings"
)

// ReflectionAudit is the outcome of the Reflection layer: a fast,
// heuristic pass over a Thought and its execution result that runs
// ahead of MetaCognition (UnifiedReflector). It flags answers that
// look hallucinated, overly hedged, or robotic before the more
// expensive LLM-driven meta-cognitive analysis runs.
type ReflectionAudit struct {
	RoboticMarkers []string
	Confidence     float64
	Suspect        bool
}

// Auditor performs the Reflection layer.
type Auditor interface {
	Audit(ctx context.Context, thought *Thought, result *ExecutionResult) *ReflectionAudit
}

var roboticMarkers = []string{
	"as an ai language model",
	"i am an ai",
	"i don't have personal",
	"i cannot browse the internet",
	"as a large language model",
	"i don't have the ability to",
}

var hedgeWords = []string{
	"i think", "maybe", "possibly", "i'm not sure", "it's unclear", "i guess", "perhaps",
}

// DefaultAuditor is a deterministic, no-LLM Auditor. It exists to catch
// the cheap, high-signal failure modes (boilerplate disclaimers, heavy
// hedging, empty output on a claimed success) before spending a model
// call on the fuller MetaCognition pass.
type DefaultAuditor struct{}

func NewAuditor() *DefaultAuditor {
	return &DefaultAuditor{}
}

func (a *DefaultAuditor) Audit(ctx context.Context, thought *Thought, result *ExecutionResult) *ReflectionAudit {
	audit := &ReflectionAudit{Confidence: 1.0}

	content := strings.ToLower(thought.Content)
	for _, marker := range roboticMarkers {
		if strings.Contains(content, marker) {
			audit.RoboticMarkers = append(audit.RoboticMarkers, marker)
			audit.Confidence -= 0.3
		}
	}

	for _, hedge := range hedgeWords {
		if strings.Contains(content, hedge) {
			audit.Confidence -= 0.1
		}
	}

	if result != nil && result.Success && strings.TrimSpace(result.Output) == "" {
		audit.Confidence -= 0.4
	}

	if audit.Confidence < 0 {
		audit.Confidence = 0
	}
	audit.Suspect = audit.Confidence < 0.5

	return audit
}
