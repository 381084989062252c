// Package evolution implements gradual, auditable self-modification:
// proposing, approving, and applying mutations to reflex shortcuts, priority
// weightings, and synthesized skills, with AST-validated sandboxing for any
// generated code.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/debounce"
	"github.com/aegis-run/aegis/internal/model/contract"

	"github.com/natefinch/atomic"
)

type MutationType string

const (
	MutationReflex         MutationType = "reflex"
	MutationConfidence     MutationType = "confidence"
	MutationPriority       MutationType = "priority"
	MutationSkillSynthesis MutationType = "skill_synthesis"
)

type MutationStatus string

const (
	StatusPending  MutationStatus = "pending"
	StatusApplied  MutationStatus = "applied"
	StatusRejected MutationStatus = "rejected"
)

// Mutation is one proposed or applied change to the runtime's behavior.
type Mutation struct {
	ID            string                 `json:"id"`
	Type          MutationType           `json:"type"`
	Description   string                 `json:"description"`
	Value         map[string]interface{} `json:"value"`
	PatternID     string                 `json:"pattern_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	Status        MutationStatus         `json:"status"`
	SuccessCount  int                    `json:"success_count"`
	AppliedAt     time.Time              `json:"applied_at,omitempty"`
	RejectedAt    time.Time              `json:"rejected_at,omitempty"`
}

type mutationLog struct {
	Applied             []Mutation `json:"applied"`
	Pending             []Mutation `json:"pending"`
	History             []Mutation `json:"history"`
	CrystallizedSummary string     `json:"crystallized_summary"`
}

// ReflexLearner is implemented by internal/reflex.Engine.
type ReflexLearner interface {
	LearnPattern(userInput, skill string, params map[string]string)
}

// Router is the narrow model-routing surface skill synthesis and identity
// crystallization need.
type Router interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
}

// Engine is the adaptive self-modification engine. One Engine per workspace.
type Engine struct {
	mu              sync.Mutex
	log             mutationLog
	path            string
	skillsDir       string
	reflex          ReflexLearner
	router          Router
	reasoningModel  string
	debouncer       *debounce.Debouncer
}

func New(statePath, dynamicSkillsDir string, reflex ReflexLearner, router Router, reasoningModel string) *Engine {
	e := &Engine{
		path: statePath, skillsDir: dynamicSkillsDir,
		reflex: reflex, router: router, reasoningModel: reasoningModel,
	}
	e.debouncer = debounce.New(1*time.Second, e.persist)
	e.load()
	if dynamicSkillsDir != "" {
		_ = os.MkdirAll(dynamicSkillsDir, 0755)
	}
	return e
}

// ProposeMutation records a new candidate mutation, ignoring exact
// description duplicates already pending or applied.
func (e *Engine) ProposeMutation(mType MutationType, description string, value map[string]interface{}, patternID string) *Mutation {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, m := range append(append([]Mutation{}, e.log.Applied...), e.log.Pending...) {
		if m.Description == description {
			return nil
		}
	}

	m := Mutation{
		ID: fmt.Sprintf("mut_%d", time.Now().UnixNano()),
		Type: mType, Description: description, Value: value, PatternID: patternID,
		CreatedAt: time.Now(), Status: StatusPending,
	}
	e.log.Pending = append(e.log.Pending, m)
	e.debouncer.MarkDirty()
	slog.Info("evolution: new mutation proposed", "description", description)
	return &m
}

// PendingProposals returns every mutation awaiting approval.
func (e *Engine) PendingProposals() []Mutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Mutation, len(e.log.Pending))
	copy(out, e.log.Pending)
	return out
}

// ApproveMutation applies a pending mutation by ID: reflex mutations teach
// the fast-path engine directly; skill_synthesis mutations go through
// AST validation before being written to disk.
func (e *Engine) ApproveMutation(id string) bool {
	e.mu.Lock()
	idx := -1
	for i, m := range e.log.Pending {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	m := e.log.Pending[idx]
	e.mu.Unlock()

	switch m.Type {
	case MutationReflex:
		if e.reflex != nil {
			input, _ := m.Value["input"].(string)
			skill, _ := m.Value["skill"].(string)
			params := map[string]string{}
			if raw, ok := m.Value["params"].(map[string]interface{}); ok {
				for k, v := range raw {
					params[k] = fmt.Sprintf("%v", v)
				}
			}
			e.reflex.LearnPattern(input, skill, params)
		}
	case MutationSkillSynthesis:
		e.applySkillMutation(m)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	m.Status = StatusApplied
	m.AppliedAt = time.Now()
	e.log.Pending = append(e.log.Pending[:idx], e.log.Pending[idx+1:]...)
	e.log.Applied = append(e.log.Applied, m)
	e.debouncer.MarkDirty()
	slog.Info("evolution: mutation approved and applied", "id", id)
	return true
}

// RejectMutation moves a pending mutation to history without applying it.
func (e *Engine) RejectMutation(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, m := range e.log.Pending {
		if m.ID == id {
			m.Status = StatusRejected
			m.RejectedAt = time.Now()
			e.log.Pending = append(e.log.Pending[:i], e.log.Pending[i+1:]...)
			e.log.History = append(e.log.History, m)
			e.debouncer.MarkDirty()
			return true
		}
	}
	return false
}

// RecordSuccess increments the success count for pending mutations tied to
// patternID, auto-approving any that reach 3 recorded successes. The count
// is never reset, so the successes need not be consecutive.
func (e *Engine) RecordSuccess(patternID string) {
	e.mu.Lock()
	var toApply []string
	for i := range e.log.Pending {
		if e.log.Pending[i].PatternID != patternID {
			continue
		}
		e.log.Pending[i].SuccessCount++
		if e.log.Pending[i].SuccessCount >= 3 {
			toApply = append(toApply, e.log.Pending[i].ID)
			slog.Info("evolution: auto-applying mutation after 3 consistent successes", "id", e.log.Pending[i].ID)
		}
	}
	e.debouncer.MarkDirty()
	e.mu.Unlock()

	for _, id := range toApply {
		e.ApproveMutation(id)
	}
}

// ActiveMutations returns applied mutations, optionally filtered by type.
func (e *Engine) ActiveMutations(mType MutationType) []Mutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mType == "" {
		out := make([]Mutation, len(e.log.Applied))
		copy(out, e.log.Applied)
		return out
	}
	var out []Mutation
	for _, m := range e.log.Applied {
		if m.Type == mType {
			out = append(out, m)
		}
	}
	return out
}

// AgentWeightings synthesizes the final priority weightings for the
// Deliberation layer from every applied "priority" mutation.
func (e *Engine) AgentWeightings() map[string]float64 {
	weights := map[string]float64{"curiosity": 1.0, "skepticism": 1.0, "efficiency": 1.0, "autonomy": 1.0}
	for _, m := range e.ActiveMutations(MutationPriority) {
		for k, v := range m.Value {
			if _, ok := weights[k]; !ok {
				continue
			}
			if f, ok := v.(float64); ok {
				weights[k] += f
			}
		}
	}
	return weights
}

// EvolutionSummary renders a human-readable account of recent identity
// shifts, favoring the crystallized summary once the applied log grows long.
func (e *Engine) EvolutionSummary(limit int) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder
	b.WriteString("IDENTITY EVOLUTION LOG:\n")
	if e.log.CrystallizedSummary != "" {
		b.WriteString("[CRYSTALLIZED IDENTITY]: " + e.log.CrystallizedSummary + "\n")
	}
	if len(e.log.Applied) == 0 {
		if e.log.CrystallizedSummary == "" {
			return "Identity Status: Stable. No significant deviations from core priors recorded."
		}
		return b.String()
	}

	recent := e.log.Applied
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	reflexCount := 0
	var priorityShifts []Mutation
	for _, m := range recent {
		if m.Type == MutationReflex {
			reflexCount++
		}
		if m.Type == MutationPriority {
			priorityShifts = append(priorityShifts, m)
		}
	}
	fmt.Fprintf(&b, "RECENT SHIFTS (last %d interactions):\n", len(recent))
	if reflexCount > 0 {
		fmt.Fprintf(&b, "- compiled %d new reflex shortcuts for habituated tasks\n", reflexCount)
	}
	for _, ps := range priorityShifts {
		b.WriteString("- " + ps.Description + "\n")
	}
	return b.String()
}

// CrystallizeIdentity periodically folds the applied-mutation history into a
// single narrative summary, then archives the applied log.
func (e *Engine) CrystallizeIdentity(ctx context.Context) {
	e.mu.Lock()
	if e.router == nil || len(e.log.Applied) == 0 {
		e.mu.Unlock()
		return
	}
	applied := make([]Mutation, len(e.log.Applied))
	copy(applied, e.log.Applied)
	currentSummary := e.log.CrystallizedSummary
	e.mu.Unlock()

	slog.Info("evolution: crystallizing identity")
	var history strings.Builder
	for _, m := range applied {
		fmt.Fprintf(&history, "- %s (at %s)\n", m.Description, m.AppliedAt.Format(time.RFC3339))
	}

	resp, err := e.router.Route(ctx, e.reasoningModel, contract.CompletionRequest{
		Model: e.reasoningModel,
		Messages: []contract.Message{
			{Role: "system", Content: "You are the meta-cognitive archivist. Simplify a complex log of behavioral mutations into a single, high-level narrative summary of who the runtime is becoming. Max 3 sentences. Focus on trajectory, preferences, and agency."},
			{Role: "user", Content: "CURRENT IDENTITY BASE: " + currentSummary + "\n\nNEW MUTATIONS:\n" + history.String()},
		},
	})
	if err != nil {
		slog.Error("evolution: crystallization failed", "error", err)
		return
	}

	e.mu.Lock()
	e.log.CrystallizedSummary = strings.TrimSpace(resp.Content)
	e.log.History = append(e.log.History, e.log.Applied...)
	e.log.Applied = nil
	e.debouncer.MarkDirty()
	e.mu.Unlock()
	slog.Info("evolution: identity crystallized and log archived")
}

// ProposeSkill asks the reasoning model to synthesize a new Go-based skill
// and proposes it as a skill_synthesis mutation pending approval.
func (e *Engine) ProposeSkill(ctx context.Context, taskDescription, codeHint string) (*Mutation, error) {
	if e.router == nil {
		return nil, fmt.Errorf("evolution: no model router configured")
	}
	slog.Info("evolution: forging new skill", "task", taskDescription)

	resp, err := e.router.Route(ctx, e.reasoningModel, contract.CompletionRequest{
		Model: e.reasoningModel,
		Messages: []contract.Message{
			{Role: "system", Content: "You write a single Go source file implementing the skill.Skill interface for the Aegis runtime. Output ONLY the code in a markdown ```go block. Include a package clause and all needed imports."},
			{Role: "user", Content: "TASK: " + taskDescription + "\nHINT: " + codeHint},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("evolution: skill synthesis failed: %w", err)
	}

	code := extractCodeBlock(resp.Content)
	skillName := extractSkillName(code)

	return e.ProposeMutation(MutationSkillSynthesis,
		fmt.Sprintf("neural forge: new skill '%s' for %s", skillName, taskDescription),
		map[string]interface{}{"code": code, "skill_name": skillName}, ""), nil
}

var codeBlockRe = regexp.MustCompile("(?s)```go\\n(.*?)```")

func extractCodeBlock(resp string) string {
	if m := codeBlockRe.FindStringSubmatch(resp); m != nil {
		return m[1]
	}
	return resp
}

var funcNameRe = regexp.MustCompile(`func\s+\w+\s*\(\s*\w*\s*\*?(\w+)\)\s*Name\s*\(`)

func extractSkillName(code string) string {
	if m := funcNameRe.FindStringSubmatch(code); m != nil {
		return strings.ToLower(m[1])
	}
	return fmt.Sprintf("skill_%d", time.Now().Unix())
}

// validateSkillCode AST-validates generated Go code before it is written to
// disk: it must parse, must not import os/exec, syscall, unsafe or plugin,
// and must declare at least one function named Execute or Name. Call
// expressions are not inspected, and the code is not type-checked against
// the skill interface.
func validateSkillCode(code string) (bool, string) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "synthesized_skill.go", code, parser.AllErrors)
	if err != nil {
		return false, fmt.Sprintf("syntax error in generated code: %v", err)
	}

	dangerousImports := map[string]bool{
		"os/exec": true, "syscall": true, "unsafe": true, "plugin": true,
	}
	hasMethod := false

	var badImport string
	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.ImportSpec:
			path := strings.Trim(node.Path.Value, `"`)
			if dangerousImports[path] {
				badImport = path
			}
		case *ast.FuncDecl:
			if node.Name.Name == "Execute" || node.Name.Name == "Name" {
				hasMethod = true
			}
		}
		return true
	})

	if badImport != "" {
		return false, "dangerous import detected: " + badImport
	}
	if !hasMethod {
		return false, "generated code does not implement the skill interface"
	}
	return true, "code validation passed"
}

func (e *Engine) applySkillMutation(m Mutation) {
	code, _ := m.Value["code"].(string)
	skillName, _ := m.Value["skill_name"].(string)

	ok, msg := validateSkillCode(code)
	if !ok {
		slog.Error("evolution: skill mutation rejected", "reason", msg, "skill", skillName)
		return
	}
	slog.Info("evolution: skill code validated", "skill", skillName)

	if e.skillsDir == "" {
		return
	}
	path := filepath.Join(e.skillsDir, skillName+".go")
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		slog.Error("evolution: failed to write synthesized skill", "error", err)
		return
	}
	slog.Info("evolution audit: skill created", "skill", skillName, "path", path)
}

func (e *Engine) persist() {
	e.mu.Lock()
	snapshot := e.log
	e.mu.Unlock()

	if e.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		slog.Error("evolution: failed to create state dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		slog.Error("evolution: failed to marshal state", "error", err)
		return
	}
	if err := atomic.WriteFile(e.path, strings.NewReader(string(data))); err != nil {
		slog.Error("evolution: failed to persist state", "error", err)
	}
}

// Flush forces an immediate state write, for graceful shutdown.
func (e *Engine) Flush() {
	e.debouncer.Flush()
}

func (e *Engine) load() {
	if e.path == "" {
		return
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return
	}
	var log mutationLog
	if err := json.Unmarshal(data, &log); err != nil {
		slog.Warn("evolution: failed to parse state, starting fresh", "error", err)
		return
	}
	e.log = log
	slog.Info("evolution: loaded mutation log", "applied", len(log.Applied), "pending", len(log.Pending))
}
