package cognitive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aegis-run/aegis/internal/config"
	"github.com/aegis-run/aegis/internal/model/contract"
)

// Error types for the Cognitive Engine
type ErrorType string

const (
	ErrTransient ErrorType = "transient"
	ErrLogic     ErrorType = "logic"
	ErrFatal     ErrorType = "fatal"
	ErrMaxTurns  ErrorType = "max_turns_reached"
)

type CognitiveError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *CognitiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// DefaultCognitiveEngine implements the OODA loop across all five layers of
// the Consciousness Stack: Interpretation (interpreter) runs once up front,
// Planner/Thinker cover Planning and Deliberation, Actor executes, and
// Reflection (auditor) runs ahead of MetaCognition (reflector) each turn.
type DefaultCognitiveEngine struct {
	interpreter Interpreter
	planner     Planner
	thinker     Thinker
	actor       Actor
	auditor     Auditor
	reflector   Reflector
	memory      MemoryManager
	maxTurns    int
	tokenBudget int
}

func NewEngine(
	planner Planner,
	thinker Thinker,
	actor Actor,
	reflector Reflector,
	memory MemoryManager,
	maxTurns int,
	tokenBudget int,
) *DefaultCognitiveEngine {
	if maxTurns <= 0 {
		maxTurns = config.DefaultOrchestratorMaxTurns
	}
	if tokenBudget <= 0 {
		tokenBudget = config.DefaultOrchestratorTokenBudget
	}

	return &DefaultCognitiveEngine{
		interpreter: NewInterpreter(),
		planner:     planner,
		thinker:     thinker,
		actor:       actor,
		auditor:     NewAuditor(),
		reflector:   reflector,
		memory:      memory,
		maxTurns:    maxTurns,
		tokenBudget: tokenBudget,
	}
}

// SetInterpreter overrides the Interpretation-layer implementation.
func (e *DefaultCognitiveEngine) SetInterpreter(i Interpreter) {
	if i != nil {
		e.interpreter = i
	}
}

// SetAuditor overrides the Reflection-layer implementation.
func (e *DefaultCognitiveEngine) SetAuditor(a Auditor) {
	if a != nil {
		e.auditor = a
	}
}

func (e *DefaultCognitiveEngine) SetMaxTurns(n int) {
	if n > 0 {
		e.maxTurns = n
	}
}

func (e *DefaultCognitiveEngine) SetTokenBudget(n int) {
	if n > 0 {
		e.tokenBudget = n
	}
}

func (e *DefaultCognitiveEngine) Run(ctx context.Context, goal string, opts ...ExecutionOption) (*Result, error) {
	// Initialize Context
	cCtx := &CognitiveContext{
		Metadata:    make(map[string]string),
		Scratchpad:  []string{},
		History:     []contract.Message{},
		Memories:    []string{},
		TokenBudget: e.tokenBudget,
	}

	// Apply options to hydrate context
	for _, opt := range opts {
		opt(cCtx)
	}

	slog.Info("CognitiveEngine started", "goal", goal, "context_keys", len(cCtx.Metadata))

	// Interpretation: pure, no-LLM first pass over the raw goal text.
	if e.interpreter != nil {
		cCtx.Interpretation = e.interpreter.Interpret(ctx, goal)
		slog.Debug("Interpretation complete", "intent", cCtx.Interpretation.Intent, "sentiment", cCtx.Interpretation.Sentiment)
	}

	// Plan (Observe & Orient)
	plan, err := e.planner.Plan(ctx, goal, cCtx)
	if err != nil {
		return nil, &CognitiveError{Type: ErrFatal, Message: "Planning failed", Cause: err}
	}
	cCtx.CurrentPlan = plan
	slog.Debug("Plan generated", "steps", len(plan.Steps))

	// Cognitive Loop (Decide & Act)
	var lastToolCall *contract.ToolCall
	lastToolSucceeded := false
	for i := 0; i < e.maxTurns; i++ {
		// Check for cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slog.Debug("Cognitive loop turn", "turn", i+1, "max", e.maxTurns)

		// Think (Decide)
		thought, err := e.thinker.Think(ctx, goal, cCtx.CurrentPlan, cCtx)
		if err != nil {
			return nil, &CognitiveError{Type: ErrLogic, Message: "Thinking failed", Cause: err}
		}

		// Append Assistant Thought to History
		asstMsg := contract.Message{
			Role:    "assistant",
			Content: thought.Content,
		}
		if thought.Action != nil && thought.Action.Type == ActionTypeToolCall {
			asstMsg.ToolCalls = thought.Action.ToolCalls
		}
		cCtx.History = append(cCtx.History, asstMsg)

		// Final Answer Check
		if thought.IsFinalAnswer() {
			slog.Info("Final answer reached", "turn", i+1)
			return &Result{
				Content: thought.Content,
				Meta:    runMeta(i+1, lastToolCall, lastToolSucceeded),
			}, nil
		}

		// Act
		result, err := e.actor.Execute(ctx, thought.Action)
		if err != nil {
			slog.Error("Action execution failed", "error", err)
			return nil, &CognitiveError{Type: ErrFatal, Message: "Action execution failed", Cause: err}
		}

		// A tool call blocked on the Capability Gate halts the loop rather
		// than feeding an opaque failure string back into the next turn: the
		// caller needs the user's yes/no before anything else can happen.
		if result.Pending != nil {
			slog.Info("Action pending approval", "tool", result.Pending.Tool, "approval_id", result.Pending.ApprovalID)
			meta := runMeta(i+1, lastToolCall, lastToolSucceeded)
			meta["pending_approval"] = result.Pending
			return &Result{Meta: meta}, nil
		}

		// Append Tool Outputs to History
		if thought.Action.Type == ActionTypeToolCall {
			for _, toolOut := range result.ToolOutputs {
				cCtx.History = append(cCtx.History, contract.Message{
					Role:       "tool",
					Content:    toolOut.Output,
					ToolCallID: toolOut.CallID,
				})
			}
			// Track the single-call case so a caller can promote a repeatedly
			// successful goal->tool resolution to the reflex fast path.
			if len(thought.Action.ToolCalls) == 1 {
				lastToolCall = thought.Action.ToolCalls[0]
				lastToolSucceeded = result.Success
			} else {
				lastToolCall = nil
			}
		}

		// Auto-prune history if needed
		cCtx.Prune()

		// Reflection: heuristic audit ahead of the full MetaCognition pass.
		if e.auditor != nil {
			audit := e.auditor.Audit(ctx, thought, result)
			if audit.Suspect {
				slog.Warn("Reflection audit flagged output", "confidence", audit.Confidence, "robotic_markers", audit.RoboticMarkers)
				cCtx.Scratchpad = append(cCtx.Scratchpad, fmt.Sprintf("[self-audit] low confidence (%.2f) in last output, double-check before finalizing", audit.Confidence))
			}
		}

		// MetaCognition: LLM-driven analysis of what happened and what's next.
		reflection, err := e.reflector.Reflect(ctx, goal, thought.Action, result)
		if err != nil {
			slog.Warn("Reflection failed", "error", err)
		} else {
			cCtx.Update(reflection)

			// Handle Control Signals
			switch reflection.NextAction {
			case SignalRetry:
				slog.Info("Reflector requested retry")
				// A retry still counts as a turn, so repeated retries stay bounded by maxTurns.
			case SignalReplan:
				slog.Info("Reflector requested replan")
				newPlan, err := e.planner.Plan(ctx, goal, cCtx)
				if err == nil {
					cCtx.CurrentPlan = newPlan
				}
			case SignalStop:
				slog.Info("Reflector requested stop")
				return &Result{
					Content: "Stopped by reflector: " + reflection.Content,
					Meta:    runMeta(i+1, lastToolCall, lastToolSucceeded),
				}, nil
			}

			// Optional: Persist new memories if memory manager is available
			if e.memory != nil && len(reflection.NewMemories) > 0 {
				go func(mems []string) {
					for _, m := range mems {
						if err := e.memory.Remember(context.Background(), m); err != nil {
							slog.Warn("Failed to persist memory", "error", err)
						}
					}
				}(reflection.NewMemories)
			}
		}
	}

	return nil, &CognitiveError{Type: ErrMaxTurns, Message: "Max cognitive turns reached"}
}

// runMeta surfaces the last resolved single tool call so a caller can decide
// whether a goal has repeatedly resolved to the same action and is a
// candidate for reflex promotion.
func runMeta(turns int, lastToolCall *contract.ToolCall, lastToolSucceeded bool) map[string]interface{} {
	meta := map[string]interface{}{"turns": turns}
	if lastToolCall != nil {
		meta["last_tool_call"] = lastToolCall
		meta["last_tool_call_succeeded"] = lastToolSucceeded
	}
	return meta
}
