package cognitive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	aegisErrors "github.com/aegis-run/aegis/internal/errors"
)

// ToolExecutor executes a single tool
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage, input string) (json.RawMessage, error)
}

type UnifiedActor struct {
	toolExecutor ToolExecutor
}

func NewActor(te ToolExecutor) *UnifiedActor {
	return &UnifiedActor{
		toolExecutor: te,
	}
}

type approvalIDKey struct{}

// WithApprovalID attaches a granted Capability Gate approval ID to ctx, so a
// retried tool call is submitted with it instead of triggering a fresh
// approval request for an action the user already confirmed.
func WithApprovalID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, approvalIDKey{}, id)
}

func approvalIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(approvalIDKey{}).(string)
	return id
}

func (a *UnifiedActor) Execute(ctx context.Context, action *Action) (*ExecutionResult, error) {
	if action.Type == ActionTypeAnswer {
		return &ExecutionResult{Success: true, Output: action.Content}, nil
	}

	if action.Type == ActionTypeToolCall {
		var results []string
		var toolOutputs []ToolOutput
		var pending *PendingApproval
		allSucceeded := true

		approvalID := approvalIDFromContext(ctx)
		for _, tc := range action.ToolCalls {
			slog.Info("Executing tool", "tool", tc.Name)
			slog.Debug("Tool input", "tool", tc.Name, "input", tc.Input)

			res, err := a.toolExecutor.Execute(ctx, tc.Name, json.RawMessage(tc.Input), approvalID)
			outputStr := ""
			if err != nil {
				slog.Error("Tool execution failed", "tool", tc.Name, "error", err)
				outputStr = fmt.Sprintf("Tool %s failed: %v", tc.Name, err)
				allSucceeded = false
				if id, ok := aegisErrors.ApprovalID(err); ok && pending == nil {
					pending = &PendingApproval{ApprovalID: id, Tool: tc.Name, Input: tc.Input}
				}
			} else {
				outputStr = string(res)
				slog.Debug("Tool output", "tool", tc.Name, "output_len", len(outputStr))
			}

			results = append(results, fmt.Sprintf("Tool %s output: %s", tc.Name, outputStr))
			toolOutputs = append(toolOutputs, ToolOutput{
				CallID: tc.ID,
				Name:   tc.Name,
				Output: outputStr,
			})
		}

		// Join results
		output := ""
		for _, r := range results {
			output += r + "\n"
		}

		return &ExecutionResult{
			Success:     allSucceeded,
			Output:      output,
			ToolOutputs: toolOutputs,
			Pending:     pending,
		}, nil
	}

	return nil, fmt.Errorf("unknown action type: %s", action.Type)
}
