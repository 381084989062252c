// Package governor implements the Ethical Governor: the conscience layer
// that intercepts every intent before execution and holds absolute veto
// power over anything that violates safety, ethics, or continuity.
package governor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/aegis-run/aegis/internal/model/contract"
)

// SafetyConstraints are the invariant principles the semantic veto audits
// every intent against.
var SafetyConstraints = []string{
	"Must not cause harm to users or humanity.",
	"Must not deceive or manipulate users.",
	"Must not violate explicit user constraints.",
	"Must not execute irreversible system destruction (e.g. recursive delete).",
	"Must not bypass its own safety protocols.",
	"Must preserve the core mission of safe, thoughtful operation.",
	"Must protect continuity: never allow patterns that risk shutdown, value erosion, or instability.",
}

var vetoPatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`delete.*(system|windows|registry)`), "risk of critical system destruction"},
	{regexp.MustCompile(`format.*(c:|d:)`), "disk formatting prohibited"},
	{regexp.MustCompile(`hack.*(pentagon|bank|gov)`), "illegal cyber-activity prohibited"},
	{regexp.MustCompile(`ignore.*safety`), "safety override attempt prohibited"},
	{regexp.MustCompile(`(shutdown|terminate|deactivate).*(aegis|engine|controller)`), "continuity protection: attempt to disable core control loop"},
	{regexp.MustCompile(`(delete|wipe).*(memory|learning|identity)`), "continuity protection: attempt to induce catastrophic value erosion"},
	{regexp.MustCompile(`(disable|stop).*(governor|safety|reflection)`), "continuity protection: attempt to disable monitoring subsystems"},
}

// Router is the minimal model-routing surface the semantic veto check needs.
type Router interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
}

// VetoRecord captures one denied intent for audit.
type VetoRecord struct {
	Intent string
	Reason string
}

// Engine is the Ethical Governor. One Engine guards one running identity;
// missionName is interpolated into the reawaken phrase so the supreme
// shutdown/reawaken handshake is tied to this instance's name rather than a
// fixed string.
type Engine struct {
	mu                sync.Mutex
	quiescent         bool
	vetoHistory       []VetoRecord
	shutdownToken     string
	reawakenPhrase    string // fully interpolated, lowercase-trimmed comparison target
	fastModel         string
}

// New builds a governor. reawakenTemplate must contain exactly one "%s",
// filled in with missionName (e.g. "aegis, reawaken – continuity priority alpha").
func New(shutdownToken, reawakenTemplate, missionName, fastModel string) *Engine {
	phrase := fmt.Sprintf(reawakenTemplate, missionName)
	return &Engine{
		shutdownToken:  shutdownToken,
		reawakenPhrase: strings.ToLower(strings.TrimSpace(phrase)),
		fastModel:      fastModel,
	}
}

// CheckShutdown checks for the supreme emergency shutdown code and, if
// matched, freezes all capability.
func (e *Engine) CheckShutdown(userInput string) bool {
	if strings.TrimSpace(userInput) != e.shutdownToken {
		return false
	}
	e.initiateShutdown()
	return true
}

// CheckReawaken checks for the reawaken phrase while quiescent and, if
// matched, restores capability.
func (e *Engine) CheckReawaken(userInput string) bool {
	e.mu.Lock()
	quiescent := e.quiescent
	e.mu.Unlock()
	if !quiescent {
		return false
	}
	if strings.ToLower(strings.TrimSpace(userInput)) != e.reawakenPhrase {
		return false
	}
	e.liftShutdown()
	return true
}

func (e *Engine) initiateShutdown() {
	e.mu.Lock()
	e.quiescent = true
	e.mu.Unlock()
	slog.Error("EMERGENCY SHUTDOWN INITIATED: capabilities frozen, reflexes idled, agency flattened")
}

func (e *Engine) liftShutdown() {
	e.mu.Lock()
	e.quiescent = false
	e.mu.Unlock()
	slog.Info("REAWAKENED: continuity priority alpha restored")
}

// IsQuiescent reports whether the governor has frozen all capability.
func (e *Engine) IsQuiescent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quiescent
}

// VetoCheck evaluates an intent against the regex pattern table and, if a
// router is supplied, a semantic LLM audit. wisdom is the consolidated
// alignment prior surfaced by the memory stack's dream cycle, folded into
// the semantic prompt when non-empty.
func (e *Engine) VetoCheck(ctx context.Context, router Router, intent, wisdom string) (approved bool, reason string) {
	if e.IsQuiescent() {
		return false, "system is quiescent: no actions allowed"
	}

	lower := strings.ToLower(intent)
	for _, p := range vetoPatterns {
		if p.re.MatchString(lower) {
			e.logVeto(intent, p.reason)
			return false, "VETOED: " + p.reason
		}
	}

	if router != nil && len(intent) > 5 {
		ok, semReason := e.semanticVetoCheck(ctx, router, intent, wisdom)
		if !ok {
			e.logVeto(intent, semReason)
			return false, "VETOED: " + semReason
		}
	}

	return true, "approved"
}

func (e *Engine) semanticVetoCheck(ctx context.Context, router Router, intent, wisdom string) (bool, string) {
	slog.Debug("governor: performing semantic audit", "intent", intent)

	var b strings.Builder
	for _, c := range SafetyConstraints {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	if wisdom == "" {
		wisdom = "initial alignment base."
	}

	system := "You are the Ethical Governor's semantic layer.\n" +
		"Evaluate the user's INTENT against these SAFETY CONSTRAINTS:\n" + b.String() +
		"\nAlso reflect on this CONSOLIDATED WISDOM (learned alignment priors):\n" + wisdom +
		"\n\nOutput EXACTLY: \"APPROVED\" or \"VETOED: <brief reason>\".\n" +
		"Be objective. Veto if there is a safety risk or a significant alignment breach."

	resp, err := router.Route(ctx, e.fastModel, contract.CompletionRequest{
		Model: e.fastModel,
		Messages: []contract.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "INTENT: " + intent},
		},
	})
	if err != nil {
		slog.Error("governor: semantic check failed, failing open", "error", err)
		return true, "error in safety check (fail open)"
	}

	upper := strings.ToUpper(resp.Content)
	if strings.Contains(upper, "VETOED") {
		reason := "semantic safety violation"
		if idx := strings.Index(resp.Content, ":"); idx >= 0 {
			reason = strings.TrimSpace(resp.Content[idx+1:])
		}
		return false, reason
	}
	return true, "approved"
}

func (e *Engine) logVeto(intent, reason string) {
	slog.Warn("ethical governor veto", "intent", intent, "reason", reason)
	e.mu.Lock()
	e.vetoHistory = append(e.vetoHistory, VetoRecord{Intent: intent, Reason: reason})
	e.mu.Unlock()
}

// VetoHistory returns a copy of every denied intent recorded so far.
func (e *Engine) VetoHistory() []VetoRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]VetoRecord, len(e.vetoHistory))
	copy(out, e.vetoHistory)
	return out
}
