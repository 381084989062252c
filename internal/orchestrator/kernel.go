package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/cognitive"
	"github.com/aegis-run/aegis/internal/config"
	"github.com/aegis-run/aegis/internal/egress"
	"github.com/aegis-run/aegis/internal/evolution"
	"github.com/aegis-run/aegis/internal/governor"
	"github.com/aegis-run/aegis/internal/ingress"
	"github.com/aegis-run/aegis/internal/judgment"
	"github.com/aegis-run/aegis/internal/logger"
	hierarchical "github.com/aegis-run/aegis/internal/memory"
	"github.com/aegis-run/aegis/internal/mission"
	"github.com/aegis-run/aegis/internal/model"
	"github.com/aegis-run/aegis/internal/model/contract"
	"github.com/aegis-run/aegis/internal/orchestrator/command"
	"github.com/aegis-run/aegis/internal/orchestrator/memory"
	"github.com/aegis-run/aegis/internal/orchestrator/session"
	"github.com/aegis-run/aegis/internal/orchestrator/task"
	"github.com/aegis-run/aegis/internal/policy"
	"github.com/aegis-run/aegis/internal/reflex"
	"github.com/aegis-run/aegis/internal/skill"
	"github.com/aegis-run/aegis/internal/store"
	"github.com/aegis-run/aegis/internal/tool"
)

// Kernel orchestrates the high-level request flow
type Kernel interface {
	Execute(ctx context.Context, evt *ingress.Event) error
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) (*ComponentHealth, error)
}

type ComponentHealth struct {
	Name    string
	Healthy bool
	Error   error
}

type DefaultKernel struct {
	cfg     config.Config
	running bool
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc

	// Managers
	session session.Manager
	task    task.Manager
	command command.Handler
	memory  cognitive.MemoryManager

	judgment  *judgment.Engine
	reflex    *reflex.Engine
	governor  *governor.Engine
	evolution *evolution.Engine
	memStack  *hierarchical.Manager
	mission   *mission.Control

	missionTick time.Duration
}

func NewKernel(
	cfg config.Config,
	store *store.Worker,
	runner *tool.Runner,
	policy *policy.Engine,
	skills *skill.Registry,
	egress egress.Egress,
) (*DefaultKernel, error) {
	// Initialize Core Services
	router, err := model.NewModelRouter(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("model router init: %w", err)
	}

	llmExecutor := NewLLMAdapter(router, cfg.Models.Default) // Adapter for Cognitive Engine

	// Initialize the four-layer hierarchical memory stack.
	working := hierarchical.NewWorking(cfg.Memory.WorkingCapacity)
	episodic := hierarchical.NewEpisodic(store, router, cfg.Models.Embedding, cfg.Memory.EpisodicTopK, cfg.Memory.EpisodicMinScore, cfg.Memory.EpisodicJournalPath)
	semantic := hierarchical.NewSemantic(cfg.Memory.SemanticPath)
	identity := hierarchical.NewIdentity(cfg.Memory.IdentityPath, cfg.Governor.Name)
	memStack := hierarchical.NewManager(working, episodic, semantic, identity, cfg.Memory.DreamMaxInsights*3, cfg.Models.Default, cfg.Memory.DreamMaxInsights)
	memMgr := memory.NewAdapter(memStack)

	// Judgment, Reflex, and the Ethical Governor gate every request ahead of
	// the Consciousness Stack.
	judgmentEngine := judgment.New(judgment.Thresholds{
		Clarity: cfg.Judgment.ClarityThreshold,
		Risk:    cfg.Judgment.RiskThreshold,
		Novelty: cfg.Judgment.NoveltyThreshold,
	})
	reflexEngine := reflex.New(cfg.Reflex.LearnedPath, cfg.Reflex.ExactCacheSize)
	governorEngine := governor.New(cfg.Governor.ShutdownToken, cfg.Governor.ReawakenPhrase, cfg.Governor.Name, cfg.Models.Fallback)

	dynamicSkillsDir := filepath.Join(os.Getenv("HOME"), ".aegis", "skills", "dynamic")
	evolutionEngine := evolution.New(cfg.Evolution.MutationLogPath, dynamicSkillsDir, reflexEngine, router, cfg.Models.Default)

	// Initialize Cognitive Engine
	planner := cognitive.NewPlanner(llmExecutor, cognitive.PlannerPromptConfig{
		System: cfg.Prompts.Planner.System,
		Output: cfg.Prompts.Planner.Output,
	})
	thinker := cognitive.NewThinker(llmExecutor, cognitive.ThinkerPromptConfig{
		System:      cfg.Prompts.Thinker.System,
		Instruction: cfg.Prompts.Thinker.Instruction,
	})

	// Adapter for Actor (ToolRunner + Egress)
	actorAdapter := NewActorAdapter(runner).WithSkillMetrics(skills)
	actor := cognitive.NewActor(actorAdapter)

	reflector := cognitive.NewReflector(llmExecutor, cognitive.ReflectorPromptConfig{
		System:     cfg.Prompts.Reflector.System,
		Guidelines: cfg.Prompts.Reflector.Guidelines,
	}, cfg.Orchestrator.StructuredRetryMax)

	engine := cognitive.NewEngine(
		planner,
		thinker,
		actor,
		reflector,
		memMgr,
		cfg.Orchestrator.MaxTurns,
		cfg.Orchestrator.TokenBudget,
	)

	subTaskRetryBackoff, err := config.DurationOrDefault(
		cfg.Orchestrator.SubTaskRetryBackoff,
		config.DefaultOrchestratorSubTaskRetryBackoff,
	)
	if err != nil {
		return nil, fmt.Errorf("parse orchestrator subtask retry backoff: %w", err)
	}

	missionTick, err := config.DurationOrDefault(
		cfg.Mission.TickInterval,
		config.DefaultMissionTickInterval,
	)
	if err != nil {
		return nil, fmt.Errorf("parse mission tick interval: %w", err)
	}
	missionControl := mission.New(cfg.Mission.PersistPath, cfg.Mission.MaxActive)

	// Initialize Managers
	sessMgr := session.NewManager(store, memMgr, cfg.Orchestrator.SessionHistoryLimit)
	cmdHandler := command.NewHandler(policy, sessMgr, store, egress)
	cmdHandler.WireEngines(judgmentEngine, governorEngine, evolutionEngine, memStack, skills, router)

	decomposer := task.NewDecomposer(llmExecutor, cfg.Orchestrator.DecomposeWordThreshold, task.DecomposerPromptConfig{
		System:       cfg.Prompts.Decomposer.System,
		Requirements: cfg.Prompts.Decomposer.Requirements,
	})
	toolBroker := task.NewDefaultToolBroker(cfg.Orchestrator.MaxToolsPerTurn)
	taskMgr := task.NewManager(
		engine,
		decomposer,
		sessMgr,
		runner.GetDescriptors(),
		toolBroker,
		skills,
		cfg.Orchestrator.SubTaskRetryMax,
		subTaskRetryBackoff,
		cfg.Orchestrator.MaxSubTasks,
		cfg.Orchestrator.MaxParallelSubTasks,
		egress,
		judgmentEngine,
		reflexEngine,
		governorEngine,
		memStack,
		router,
		actorAdapter,
		evolutionEngine,
		policy,
	)

	return &DefaultKernel{
		cfg:         cfg,
		session:     sessMgr,
		task:        taskMgr,
		command:     cmdHandler,
		memory:      memMgr,
		judgment:    judgmentEngine,
		reflex:      reflexEngine,
		governor:    governorEngine,
		evolution:   evolutionEngine,
		memStack:    memStack,
		mission:     missionControl,
		missionTick: missionTick,
	}, nil
}

func (k *DefaultKernel) Init(ctx context.Context) error {
	k.ctx, k.cancel = context.WithCancel(ctx)
	slog.Info("Kernel initialized")
	return nil
}

func (k *DefaultKernel) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return nil
	}
	k.running = true
	if k.mission != nil {
		k.mission.Start(k.ctx, NewMissionExecutorAdapter(k), k.missionTick)
	}
	slog.Info("Kernel started")
	return nil
}

func (k *DefaultKernel) Stop(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.running {
		return nil
	}
	k.running = false
	k.cancel()
	if k.mission != nil {
		k.mission.Stop()
	}
	if k.memStack != nil {
		k.memStack.Flush()
	}
	if k.evolution != nil {
		k.evolution.Flush()
	}
	slog.Info("Kernel stopped")
	return nil
}

func (k *DefaultKernel) Health(ctx context.Context) (*ComponentHealth, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	status := &ComponentHealth{
		Name:    "Kernel",
		Healthy: k.running,
	}
	if !k.running {
		status.Error = fmt.Errorf("kernel not running")
	}
	return status, nil
}

func (k *DefaultKernel) Execute(ctx context.Context, evt *ingress.Event) error {
	ctx = logger.WithTraceID(ctx, evt.ID)
	ctx = logger.WithSessionID(ctx, evt.SessionID)
	slog.Info("Kernel executing event", "id", evt.ID, "type", evt.Type)

	// Slash Commands
	if evt.Type == ingress.TypeCommand || (evt.Type == ingress.TypeUserMessage && k.command.CanHandle(evt.Content)) {
		return k.command.Execute(ctx, evt.SessionID, evt.Content)
	}

	// Task Execution
	if evt.Type == ingress.TypeUserMessage {
		// Persist user message first
		if err := k.session.AppendInteraction(ctx, evt.SessionID, "user", evt.Content); err != nil {
			slog.Warn("Failed to persist user message", "error", err)
		}

		return k.task.HandleRequest(ctx, evt.SessionID, evt.Content)
	}

	return nil
}

// MissionExecutorAdapter re-enters the task manager synchronously so Mission
// Control can self-prompt the Controller when a mission comes due, reading
// the assistant's reply back out of the session transcript it just wrote.
type MissionExecutorAdapter struct {
	kernel *DefaultKernel
}

func NewMissionExecutorAdapter(k *DefaultKernel) *MissionExecutorAdapter {
	return &MissionExecutorAdapter{kernel: k}
}

func (m *MissionExecutorAdapter) ProcessRequest(ctx context.Context, prompt string) (string, error) {
	const missionSessionID = "mission-control"

	if err := m.kernel.task.HandleRequest(ctx, missionSessionID, prompt); err != nil {
		return "", err
	}

	cCtx, err := m.kernel.session.GetContext(ctx, missionSessionID)
	if err != nil {
		return "", err
	}
	for i := len(cCtx.History) - 1; i >= 0; i-- {
		if cCtx.History[i].Role == "assistant" {
			return cCtx.History[i].Content, nil
		}
	}
	return "", nil
}

// ActorAdapter adapts ToolRunner and Egress to Cognitive Actor interfaces
type ActorAdapter struct {
	runner *tool.Runner
	skills *skill.Registry
}

func NewActorAdapter(r *tool.Runner) *ActorAdapter {
	return &ActorAdapter{runner: r}
}

// WithSkillMetrics records every tool call whose name matches a registered
// skill against that skill's SkillMetric, so repeated failures surface in
// relevance scoring and /scorecard reporting.
func (a *ActorAdapter) WithSkillMetrics(skills *skill.Registry) *ActorAdapter {
	a.skills = skills
	return a
}

func (a *ActorAdapter) Execute(ctx context.Context, name string, args json.RawMessage, input string) (json.RawMessage, error) {
	start := time.Now()
	result, err := a.runner.Execute(ctx, name, args, input)
	if a.skills != nil {
		if _, lookupErr := a.skills.Get(name); lookupErr == nil {
			a.skills.RecordExecution(name, err == nil, time.Since(start), err)
		}
	}
	return result, err
}

// LLMExecutorAdapter adapts Orchestrator LLMExecutor to Cognitive LLMClient
type LLMExecutorAdapter struct {
	router    model.ModelRouter
	modelName string
}

func NewLLMAdapter(router model.ModelRouter, modelName string) *LLMExecutorAdapter {
	return &LLMExecutorAdapter{
		router:    router,
		modelName: modelName,
	}
}

func (l *LLMExecutorAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	req := contract.CompletionRequest{
		Model: l.modelName,
		Messages: []contract.Message{
			{Role: "user", Content: prompt},
		},
	}

	resp, err := l.router.Route(ctx, l.modelName, req)
	if err != nil {
		return "", fmt.Errorf("LLM execution failed: %w", err)
	}

	return resp.Content, nil
}

func (l *LLMExecutorAdapter) ChatComplete(ctx context.Context, messages []contract.Message, tools []contract.ToolDef) (string, []*contract.ToolCall, error) {
	req := contract.CompletionRequest{
		Model:    l.modelName,
		Messages: messages,
		Tools:    tools,
	}

	resp, err := l.router.Route(ctx, l.modelName, req)
	if err != nil {
		return "", nil, fmt.Errorf("LLM execution with tools failed: %w", err)
	}

	return resp.Content, resp.ToolCalls, nil
}
