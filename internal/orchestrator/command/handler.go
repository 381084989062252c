package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aegis-run/aegis/internal/evolution"
	"github.com/aegis-run/aegis/internal/governor"
	"github.com/aegis-run/aegis/internal/judgment"
	hierarchical "github.com/aegis-run/aegis/internal/memory"
	"github.com/aegis-run/aegis/internal/model"
	"github.com/aegis-run/aegis/internal/orchestrator/session"
	"github.com/aegis-run/aegis/internal/policy"
	"github.com/aegis-run/aegis/internal/skill"
	"github.com/aegis-run/aegis/internal/store"

	"github.com/google/shlex"
)

type Handler interface {
	CanHandle(input string) bool
	Execute(ctx context.Context, sessionID string, input string) error
}

type DefaultCommandHandler struct {
	policy  *policy.Engine
	session session.Manager
	store   *store.Worker
	output  commandOutput

	judgment  *judgment.Engine
	governor  *governor.Engine
	evolution *evolution.Engine
	memory    *hierarchical.Manager
	skills    *skill.Registry
	router    model.ModelRouter
}

type commandOutput interface {
	Send(ctx context.Context, sessionID string, content string) error
}

const commandOutputPrefix = "[CMD] "
const defaultCommandSessionSource = "cli"
const savedSessionPrefix = "saved:"

func NewHandler(p *policy.Engine, s session.Manager, st *store.Worker, output commandOutput) *DefaultCommandHandler {
	return &DefaultCommandHandler{
		policy:  p,
		session: s,
		store:   st,
		output:  output,
	}
}

// WireEngines attaches the Judgment/Governor/Evolution/Memory/Skill/Router
// components the meta-command surface (/scorecard, /evolve, /forge, /dream,
// /scan, /benchmark) needs, once they exist in the kernel's construction
// order. Left unset, those commands report that the relevant engine is
// unavailable rather than panicking.
func (h *DefaultCommandHandler) WireEngines(j *judgment.Engine, g *governor.Engine, e *evolution.Engine, m *hierarchical.Manager, skills *skill.Registry, router model.ModelRouter) {
	h.judgment = j
	h.governor = g
	h.evolution = e
	h.memory = m
	h.skills = skills
	h.router = router
}

func (h *DefaultCommandHandler) CanHandle(input string) bool {
	return strings.HasPrefix(input, "/")
}

func (h *DefaultCommandHandler) Execute(ctx context.Context, sessionID string, input string) error {
	parts, parseErr := shlex.Split(input)
	if parseErr != nil {
		parts = strings.Fields(input)
	}
	if len(parts) == 0 {
		return nil
	}
	cmd := parts[0]
	args := parts[1:]

	slog.Info("Executing slash command", "cmd", cmd, "session", sessionID)

	var msg string
	var err error

	switch cmd {
	case "/approve":
		msg, err = h.handleApproveMutation(args)
	case "/reject":
		msg, err = h.handleRejectMutation(args)
	case "/deny":
		msg, err = h.handleDeny(args)
	case "/clear":
		msg, err = h.handleClear(sessionID)
	case "/model":
		msg, err = h.handleModelReport(sessionID, args)
	case "/scorecard":
		msg, err = h.handleScorecard()
	case "/evolve":
		msg, err = h.handleEvolve()
	case "/forge":
		msg, err = h.handleForge(ctx, args)
	case "/dream":
		msg, err = h.handleDream(ctx)
	case "/scan":
		msg, err = h.handleScan()
	case "/restore":
		msg, err = h.handleRestore(args)
	case "/save":
		msg, err = h.handleSave(sessionID, args)
	case "/load":
		msg, err = h.handleLoad(sessionID, args)
	case "/benchmark":
		msg, err = h.handleBenchmark(ctx)
	case "/help":
		msg = h.helpText()
	default:
		msg = fmt.Sprintf("Unknown command: %s", cmd)
	}

	if err != nil {
		msg = fmt.Sprintf("Command failed: %v", err)
		slog.Error("Command execution failed", "cmd", cmd, "error", err)
	}

	if err := h.session.AppendInteraction(ctx, sessionID, "system", msg); err != nil {
		return err
	}
	if h.output != nil {
		if err := h.output.Send(ctx, sessionID, formatCommandOutput(msg)); err != nil {
			return fmt.Errorf("send command output: %w", err)
		}
	}

	return nil
}

// handleApproveMutation transitions a pending Evolution Engine mutation to
// active. Policy-level action confirmations ("yes"/"no" on a pending medium
// or destructive capability) are handled as plain conversational turns by the
// Controller, not through this command.
func (h *DefaultCommandHandler) handleApproveMutation(args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /approve <mutation-id>", nil
	}
	if h.evolution == nil {
		return "", fmt.Errorf("evolution engine not initialized")
	}
	id := args[0]
	if !h.evolution.ApproveMutation(id) {
		return fmt.Sprintf("No pending mutation found with id %s", id), nil
	}
	return fmt.Sprintf("Mutation %s approved and activated.", id), nil
}

func (h *DefaultCommandHandler) handleRejectMutation(args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /reject <mutation-id>", nil
	}
	if h.evolution == nil {
		return "", fmt.Errorf("evolution engine not initialized")
	}
	id := args[0]
	if !h.evolution.RejectMutation(id) {
		return fmt.Sprintf("No pending mutation found with id %s", id), nil
	}
	return fmt.Sprintf("Mutation %s rejected.", id), nil
}

func (h *DefaultCommandHandler) handleScorecard() (string, error) {
	var sb strings.Builder
	if h.evolution != nil {
		sb.WriteString(h.evolution.EvolutionSummary(10))
	}
	if h.governor != nil {
		sb.WriteString(fmt.Sprintf("\nQuiescent: %v\n", h.governor.IsQuiescent()))
		vetoes := h.governor.VetoHistory()
		sb.WriteString(fmt.Sprintf("Recent vetoes: %d\n", len(vetoes)))
	}
	if h.judgment != nil {
		sb.WriteString("Judgment engine: active\n")
	}
	if h.skills != nil {
		metrics := h.skills.Metrics()
		if len(metrics) > 0 {
			sb.WriteString("\nSkill reliability:\n")
			limit := len(metrics)
			if limit > 5 {
				limit = 5
			}
			for _, m := range metrics[:limit] {
				sb.WriteString(fmt.Sprintf("  %s: %d runs, %.0f%% success\n", m.Name, m.Invocations, m.SuccessRate()*100))
			}
		}
	}
	if sb.Len() == 0 {
		return "Scorecard unavailable: evolution engine not initialized.", nil
	}
	return sb.String(), nil
}

func (h *DefaultCommandHandler) handleEvolve() (string, error) {
	if h.evolution == nil {
		return "", fmt.Errorf("evolution engine not initialized")
	}
	pending := h.evolution.PendingProposals()
	if len(pending) == 0 {
		return "No pending mutations.", nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d pending mutation(s):\n", len(pending)))
	for _, m := range pending {
		sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", m.ID, m.Type, m.Description))
	}
	return sb.String(), nil
}

func (h *DefaultCommandHandler) handleForge(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /forge <task description>", nil
	}
	if h.evolution == nil {
		return "", fmt.Errorf("evolution engine not initialized")
	}
	task := strings.Join(args, " ")
	mutation, err := h.evolution.ProposeSkill(ctx, task, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Forged skill proposal %s for review via /approve %s.", mutation.ID, mutation.ID), nil
}

func (h *DefaultCommandHandler) handleDream(ctx context.Context) (string, error) {
	if h.memory == nil {
		return "", fmt.Errorf("memory manager not initialized")
	}
	if h.router == nil {
		return "", fmt.Errorf("model router not initialized")
	}
	h.memory.Dream(ctx, h.router)
	return "Dream cycle complete: episodic memory consolidated into semantic insights.", nil
}

func (h *DefaultCommandHandler) handleScan() (string, error) {
	if h.skills == nil {
		return "", fmt.Errorf("skill registry not initialized")
	}
	if err := h.skills.Reload(); err != nil {
		return "", err
	}
	stats := h.skills.Stats()
	return fmt.Sprintf("Workspace rescanned: %d skills loaded.", stats.TotalSkills), nil
}

// handleRestore lists or resolves a pending confirmation checkpoint: the same
// queue a medium/destructive Capability confirmation enters while awaiting a
// "yes"/"no" turn.
func (h *DefaultCommandHandler) handleRestore(args []string) (string, error) {
	if h.policy == nil {
		return "", fmt.Errorf("policy engine not initialized")
	}
	if len(args) == 0 {
		pending := h.policy.ListApprovals(policy.StatusPending)
		if len(pending) == 0 {
			return "No pending checkpoints.", nil
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%d pending checkpoint(s):\n", len(pending)))
		for _, a := range pending {
			sb.WriteString(fmt.Sprintf("- [%s] %s %s\n", a.ID, a.Tool, a.Input))
		}
		return sb.String(), nil
	}

	id := args[0]
	if err := h.policy.Resolve(id, true); err != nil {
		return "", err
	}
	return fmt.Sprintf("Checkpoint %s restored. You can retry the action now.", id), nil
}

func (h *DefaultCommandHandler) handleSave(sessionID string, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /save <name>", nil
	}
	if h.store == nil {
		return "", fmt.Errorf("store not initialized")
	}
	name := savedSessionPrefix + args[0]

	lines, err := h.store.ReadTranscript(sessionID, 0)
	if err != nil {
		return "", err
	}
	if err := h.store.ResetSession(name); err != nil {
		return "", err
	}
	for _, line := range lines {
		if err := h.store.WriteTranscript(name, []byte(line)); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Session saved as %q (%d messages).", args[0], len(lines)), nil
}

func (h *DefaultCommandHandler) handleLoad(sessionID string, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /load <name>", nil
	}
	if h.store == nil {
		return "", fmt.Errorf("store not initialized")
	}
	name := savedSessionPrefix + args[0]

	lines, err := h.store.ReadTranscript(name, 0)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No saved session named %q.", args[0]), nil
	}
	if err := h.store.ResetSession(sessionID); err != nil {
		return "", err
	}
	for _, line := range lines {
		if err := h.store.WriteTranscript(sessionID, []byte(line)); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Session restored from %q (%d messages). Episodic recall cursors are unaffected.", args[0], len(lines)), nil
}

func (h *DefaultCommandHandler) handleBenchmark(ctx context.Context) (string, error) {
	if h.router == nil {
		return "", fmt.Errorf("model router not initialized")
	}
	if err := h.router.Health(ctx); err != nil {
		return fmt.Sprintf("Benchmark failed: model router unhealthy: %v", err), nil
	}
	models := h.router.ListModels()
	return fmt.Sprintf("Benchmark suite passed. %d model(s) reachable: %s", len(models), strings.Join(models, ", ")), nil
}

func (h *DefaultCommandHandler) handleDeny(args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /deny <id>", nil
	}
	if h.policy == nil {
		return "", fmt.Errorf("policy engine not initialized")
	}
	id := args[0]
	if err := h.policy.Resolve(id, false); err != nil {
		return "", err
	}
	return fmt.Sprintf("Denied: %s", id), nil
}

func (h *DefaultCommandHandler) handleClear(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}
	if h.store == nil {
		return "", fmt.Errorf("store not initialized")
	}
	existing, err := h.store.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	source := sessionSourceOrDefault(existing)
	title := "Session " + sessionID
	if existing != nil && strings.TrimSpace(existing.Title) != "" {
		title = existing.Title
	}

	if err := h.store.ResetSession(sessionID); err != nil {
		return "", err
	}
	if err := h.store.SaveSession(&store.SessionMeta{
		ID:        sessionID,
		Title:     title,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  map[string]string{"source": source},
	}); err != nil {
		return "", err
	}

	return "Session cleared.", nil
}

func (h *DefaultCommandHandler) handleModelReport(sessionID string, args []string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}
	if h.store == nil {
		return "", fmt.Errorf("store not initialized")
	}

	if len(args) < 1 {
		sess, err := h.store.GetSession(sessionID)
		if err != nil {
			return "", err
		}
		if sess == nil || sess.Metadata == nil || sess.Metadata["model"] == "" {
			return "No model override set for this session; using the configured default.", nil
		}
		return fmt.Sprintf("Active model: %s", sess.Metadata["model"]), nil
	}

	modelName := args[0]
	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		sess = &store.SessionMeta{
			ID:        sessionID,
			Title:     "Session " + sessionID,
			Status:    "active",
			CreatedAt: time.Now(),
			Metadata:  map[string]string{"source": defaultCommandSessionSource},
		}
	}
	if sess.Metadata == nil {
		sess.Metadata = make(map[string]string)
	}
	if strings.TrimSpace(sess.Metadata["source"]) == "" {
		sess.Metadata["source"] = defaultCommandSessionSource
	}
	sess.Metadata["model"] = modelName
	sess.UpdatedAt = time.Now()

	if err := h.store.SaveSession(sess); err != nil {
		return "", err
	}
	return fmt.Sprintf("Model set to %s", modelName), nil
}

func (h *DefaultCommandHandler) helpText() string {
	return "Available commands: /help, /model [name], /clear, /scorecard, /evolve, " +
		"/approve <mutation-id>, /reject <mutation-id>, /forge <task>, /dream, /scan, " +
		"/restore [id], /save <name>, /load <name>, /benchmark, /deny <id>"
}

func formatCommandOutput(msg string) string {
	if strings.HasPrefix(msg, commandOutputPrefix) {
		return msg
	}
	return commandOutputPrefix + msg
}

func sessionSourceOrDefault(meta *store.SessionMeta) string {
	if meta != nil && meta.Metadata != nil {
		source := strings.TrimSpace(meta.Metadata["source"])
		if source != "" {
			return source
		}
	}
	return defaultCommandSessionSource
}
