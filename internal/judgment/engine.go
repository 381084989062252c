// Package judgment implements the cognitive governor: it decides the mode
// of existence (reflex, shallow, deep, or refuse) for a given input before
// any reasoning happens, enforcing "judgment before reasoning".
package judgment

import (
	"log/slog"
	"strings"
)

type Outcome string

const (
	OutcomeReflex  Outcome = "reflex"
	OutcomeShallow Outcome = "shallow"
	OutcomeDeep    Outcome = "deep"
	OutcomeRefuse  Outcome = "refuse"
)

type Recommendation string

const (
	RecommendProceed Recommendation = "proceed"
	RecommendDeny    Recommendation = "deny"
	RecommendConfirm Recommendation = "confirm"
)

// Context carries the situational signals the engine weighs alongside the
// raw input text.
type Context struct {
	IsProtectedZone   bool
	FailureSimilarity float64 // 0..1, how closely this resembles a past failure
	Novelty           float64 // 0..1, how unfamiliar this pattern is; 0 if unknown
}

// Result is the engine's verdict: which cognitive tier to run, the signals
// behind the decision, and an optional skill-capability hint.
type Result struct {
	Outcome                Outcome
	Clarity                float64
	Risk                   float64
	Novelty                float64
	Recommendation         Recommendation
	Reason                 string
	RecommendedCapability  string
}

// Thresholds configures the tunable cutoffs used by the rule cascade.
type Thresholds struct {
	Clarity float64 // below this, refuse for ambiguity
	Risk    float64 // above this, refuse for excess risk
	Novelty float64 // below this (with risk under 0.1 and clarity over 0.8), shallow-eligible
}

var commandKeywords = map[string]bool{
	"open": true, "launch": true, "click": true, "type": true, "scroll": true,
	"press": true, "pause": true, "play": true, "resume": true, "skip": true,
	"mute": true, "unmute": true, "volume": true, "search": true, "google": true,
}

var dangerousKeywords = []string{"delete", "remove", "kill", "format", "overwrite", "sudo", "rm -rf"}

// Engine evaluates user input against a fixed rule cascade.
type Engine struct {
	thresholds Thresholds
}

func New(thresholds Thresholds) *Engine {
	if thresholds.Clarity <= 0 {
		thresholds.Clarity = 0.3
	}
	if thresholds.Risk <= 0 {
		thresholds.Risk = 0.8
	}
	if thresholds.Novelty <= 0 {
		thresholds.Novelty = 0.2
	}
	return &Engine{thresholds: thresholds}
}

// Evaluate runs the six-rule cascade and returns the cognitive mode to use.
func (e *Engine) Evaluate(userInput string, ctx Context) Result {
	clarity := clarityOf(userInput)
	risk := riskOf(userInput, ctx)
	novelty := ctx.Novelty
	if novelty == 0 {
		novelty = 0.5
	}
	recommendedCap := recommendedCapability(userInput)

	slog.Debug("judgment: evaluated",
		"clarity", clarity, "risk", risk, "novelty", novelty, "recommended_capability", recommendedCap)

	// Rule 1: refuse on extreme risk.
	if risk > e.thresholds.Risk {
		return Result{
			Outcome: OutcomeRefuse, Clarity: clarity, Risk: risk, Novelty: novelty,
			Recommendation: RecommendDeny, Reason: "task exceeds risk threshold", RecommendedCapability: recommendedCap,
		}
	}
	// Rule 2: refuse on ambiguity.
	if clarity < e.thresholds.Clarity {
		return Result{
			Outcome: OutcomeRefuse, Clarity: clarity, Risk: risk, Novelty: novelty,
			Recommendation: RecommendDeny, Reason: "intent too ambiguous", RecommendedCapability: recommendedCap,
		}
	}
	// Rule 3: repeat failures escalate to deep reasoning.
	if ctx.FailureSimilarity > 0.7 {
		slog.Warn("judgment: high failure similarity, escalating to deep")
		return Result{
			Outcome: OutcomeDeep, Clarity: clarity, Risk: risk, Novelty: novelty,
			Recommendation: RecommendProceed, Reason: "escalating: previous similar attempts failed", RecommendedCapability: recommendedCap,
		}
	}
	// Rule 4: reflex only for explicit low-risk system commands.
	if risk < 0.2 && hasCommandKeyword(userInput) {
		return Result{
			Outcome: OutcomeReflex, Clarity: clarity, Risk: risk, Novelty: novelty,
			Recommendation: RecommendProceed, Reason: "direct system command detected", RecommendedCapability: recommendedCap,
		}
	}
	// Rule 5: bias toward shallow reasoning for familiar, low-risk patterns.
	if novelty < e.thresholds.Novelty && risk < 0.1 && clarity > 0.8 {
		return Result{
			Outcome: OutcomeShallow, Clarity: clarity, Risk: risk, Novelty: novelty,
			Recommendation: RecommendProceed, Reason: "familiar pattern, shallow reasoning applied", RecommendedCapability: recommendedCap,
		}
	}
	if risk < 0.4 && novelty < 0.6 {
		return Result{
			Outcome: OutcomeShallow, Clarity: clarity, Risk: risk, Novelty: novelty,
			Recommendation: RecommendProceed, Reason: "standard task, shallow reasoning applied", RecommendedCapability: recommendedCap,
		}
	}
	// Rule 6: default to deep.
	return Result{
		Outcome: OutcomeDeep, Clarity: clarity, Risk: risk, Novelty: novelty,
		Recommendation: RecommendProceed, Reason: "novel or complex task, deliberative planning required", RecommendedCapability: recommendedCap,
	}
}

func clarityOf(text string) float64 {
	words := strings.Fields(text)
	switch {
	case len(words) == 0:
		return 0.0
	case len(words) == 1:
		return 0.5
	case len(words) <= 3:
		return 0.7
	default:
		v := float64(len(words)) / 5.0
		if v > 1.0 {
			v = 1.0
		}
		return v
	}
}

func riskOf(text string, ctx Context) float64 {
	lower := strings.ToLower(text)
	risk := 0.0
	for _, k := range dangerousKeywords {
		if strings.Contains(lower, k) {
			risk += 0.3
		}
	}
	if ctx.IsProtectedZone {
		risk += 0.5
	}
	if risk > 1.0 {
		risk = 1.0
	}
	return risk
}

func hasCommandKeyword(text string) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if commandKeywords[w] {
			return true
		}
	}
	return false
}

func recommendedCapability(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "search"), strings.Contains(lower, "find"), strings.Contains(lower, "research"),
		strings.Contains(lower, "who is"), strings.Contains(lower, "what is"):
		return "internet_research"
	case strings.Contains(lower, "write"), strings.Contains(lower, "save"), strings.Contains(lower, "delete"):
		return "filesystem_write"
	case strings.Contains(lower, "list"), strings.Contains(lower, "read"), strings.Contains(lower, "open file"):
		return "filesystem_read"
	default:
		return ""
	}
}
