package cognitive

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/aegis-run/aegis/internal/model/contract"
)

// ResponseKind discriminates the two Deliberation-stage wire schemas: Lite
// for low-stakes general turns, Full for anything carrying a thought trace
// and metacognitive annotation.
type ResponseKind string

const (
	ResponseKindLite ResponseKind = "lite"
	ResponseKindFull ResponseKind = "full"
)

// LiteResponse is the 3-field schema used for general-intent turns where a
// thought trace isn't worth the extra tokens.
type LiteResponse struct {
	FinalResponse string             `json:"final_response"`
	Action        *contract.ToolCall `json:"action,omitempty"`
	Confidence    float64            `json:"confidence"`
}

// FullResponse is the complete schema used once a turn escalates (vision,
// coding, low confidence, or an explicit request for reasoning).
type FullResponse struct {
	Thought       string             `json:"thought"`
	Action        *contract.ToolCall `json:"action,omitempty"`
	FinalResponse string             `json:"final_response"`
	Metacognition string             `json:"metacog"`
	Confidence    float64            `json:"confidence"`
}

// StructuredResponse is a Go sum type over Response = Lite | Full: exactly
// one of Lite/Full is populated, selected by Kind. It lets the Thinker
// accept either schema from a model that lacks native tool-calling without
// the rest of the Consciousness Stack caring which one arrived.
type StructuredResponse struct {
	Kind ResponseKind
	Lite *LiteResponse
	Full *FullResponse
}

// ToFull lifts a Lite response into the Full shape so downstream consumers
// (Reflection, MetaCognition) always see a Thought/Metacognition field, even
// if the model never produced one.
func (r *StructuredResponse) ToFull() *FullResponse {
	if r == nil {
		return &FullResponse{}
	}
	if r.Kind == ResponseKindFull && r.Full != nil {
		return r.Full
	}
	if r.Lite == nil {
		return &FullResponse{}
	}
	return &FullResponse{
		Action:        r.Lite.Action,
		FinalResponse: r.Lite.FinalResponse,
		Confidence:    r.Lite.Confidence,
	}
}

// parseStructuredResponse parses a model's structured-output reply into
// whichever schema it used. It is tried as a fallback when the model has no
// native tool-calling support and answered with a Lite/Full JSON body
// instead of a tool call.
func parseStructuredResponse(raw string) (*StructuredResponse, bool) {
	normalized := cleanModelJSON(raw)
	if normalized == "" {
		return nil, false
	}
	if extracted := extractFirstBalancedJSON(normalized, '{', '}'); extracted != "" {
		normalized = extracted
	}

	var full FullResponse
	if err := json.Unmarshal([]byte(normalized), &full); err == nil {
		if strings.TrimSpace(full.Thought) != "" || strings.TrimSpace(full.Metacognition) != "" {
			return &StructuredResponse{Kind: ResponseKindFull, Full: &full}, true
		}
		if strings.TrimSpace(full.FinalResponse) != "" || full.Action != nil {
			return &StructuredResponse{Kind: ResponseKindLite, Lite: &LiteResponse{
				FinalResponse: full.FinalResponse,
				Action:        full.Action,
				Confidence:    full.Confidence,
			}}, true
		}
	}
	return nil, false
}

type plannerParseMode string

const (
	plannerParseModeJSONArray   plannerParseMode = "json_array"
	plannerParseModeJSONObject  plannerParseMode = "json_object"
	plannerParseModeExtracted   plannerParseMode = "json_extracted"
	plannerParseModeLineSplit   plannerParseMode = "line_split"
	plannerParseModeGoalDefault plannerParseMode = "goal_default"
)

type reflectionParseMode string

const (
	reflectionParseModeJSON      reflectionParseMode = "json_object"
	reflectionParseModeExtracted reflectionParseMode = "json_extracted"
	reflectionParseModeHeuristic reflectionParseMode = "heuristic_fallback"
)

type reflectionPayload struct {
	Analysis    string   `json:"analysis"`
	Action      string   `json:"next_action"`
	NewMemories []string `json:"new_memories"`
}

type plannerPayload struct {
	Steps []PlanStep `json:"steps"`
	Plan  []PlanStep `json:"plan"`
	Items []PlanStep `json:"items"`
	Tasks []PlanStep `json:"tasks"`
}

func parsePlannerResponse(raw string, goal string) ([]PlanStep, plannerParseMode) {
	normalized := cleanModelJSON(raw)

	if steps, ok := parsePlanStepArrayJSON(normalized); ok {
		return steps, plannerParseModeJSONArray
	}
	if steps, ok := parsePlanStepObjectJSON(normalized); ok {
		return steps, plannerParseModeJSONObject
	}

	if extracted := extractFirstBalancedJSON(normalized, '[', ']'); extracted != "" {
		if steps, ok := parsePlanStepArrayJSON(extracted); ok {
			return steps, plannerParseModeExtracted
		}
	}
	if extracted := extractFirstBalancedJSON(normalized, '{', '}'); extracted != "" {
		if steps, ok := parsePlanStepObjectJSON(extracted); ok {
			return steps, plannerParseModeExtracted
		}
	}

	if steps := parsePlanStepLines(normalized); len(steps) > 0 {
		if len(steps) == 1 && looksLikeControlToken(steps[0].Description) {
			return defaultPlanSteps(goal), plannerParseModeGoalDefault
		}
		return steps, plannerParseModeLineSplit
	}

	return defaultPlanSteps(goal), plannerParseModeGoalDefault
}

func parseReflectionResponse(raw string) (*Reflection, reflectionParseMode) {
	normalized := cleanModelJSON(raw)

	if reflection, ok := parseReflectionJSON(normalized, reflectionParseModeJSON); ok {
		return reflection, reflectionParseModeJSON
	}

	if extracted := extractFirstBalancedJSON(normalized, '{', '}'); extracted != "" {
		if reflection, ok := parseReflectionJSON(extracted, reflectionParseModeExtracted); ok {
			return reflection, reflectionParseModeExtracted
		}
	}

	return buildReflectionFallback(normalized), reflectionParseModeHeuristic
}

func parsePlanStepArrayJSON(raw string) ([]PlanStep, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	var steps []PlanStep
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, false
	}
	steps = normalizePlanSteps(steps)
	if len(steps) == 0 {
		return nil, false
	}
	return steps, true
}

func parsePlanStepObjectJSON(raw string) ([]PlanStep, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	var payload plannerPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}

	candidates := [][]PlanStep{payload.Steps, payload.Plan, payload.Items, payload.Tasks}
	for _, candidate := range candidates {
		steps := normalizePlanSteps(candidate)
		if len(steps) > 0 {
			return steps, true
		}
	}
	return nil, false
}

func parsePlanStepLines(raw string) []PlanStep {
	lines := strings.Split(raw, "\n")
	out := make([]PlanStep, 0, len(lines))
	for _, line := range lines {
		description := normalizePlanLine(line)
		if description == "" {
			continue
		}
		out = append(out, PlanStep{
			ID:          fmt.Sprintf("step-%d", len(out)+1),
			Description: description,
			Status:      "pending",
		})
	}
	return out
}

func normalizePlanLine(line string) string {
	clean := strings.TrimSpace(line)
	if clean == "" {
		return ""
	}

	for {
		updated := false
		for _, prefix := range []string{"- ", "* ", "â€¢ ", "> "} {
			if strings.HasPrefix(clean, prefix) {
				clean = strings.TrimSpace(clean[len(prefix):])
				updated = true
			}
		}
		if !updated {
			break
		}
	}

	clean = trimNumericPrefix(clean)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return ""
	}
	return clean
}

func trimNumericPrefix(line string) string {
	if line == "" || !unicode.IsDigit(rune(line[0])) {
		return line
	}

	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i >= len(line) {
		return line
	}

	switch line[i] {
	case '.', ')', '-', ':':
		i++
	default:
		return line
	}

	for i < len(line) && unicode.IsSpace(rune(line[i])) {
		i++
	}
	if i >= len(line) {
		return ""
	}
	return line[i:]
}

func normalizePlanSteps(steps []PlanStep) []PlanStep {
	out := make([]PlanStep, 0, len(steps))
	for _, step := range steps {
		description := strings.TrimSpace(step.Description)
		if description == "" {
			continue
		}

		id := strings.TrimSpace(step.GetID())
		if id == "" || id == "<nil>" {
			id = fmt.Sprintf("step-%d", len(out)+1)
		}
		status := strings.TrimSpace(step.Status)
		if status == "" {
			status = "pending"
		}

		out = append(out, PlanStep{
			ID:          id,
			Description: description,
			Status:      status,
		})
	}
	return out
}

func defaultPlanSteps(goal string) []PlanStep {
	description := strings.TrimSpace(goal)
	if description == "" {
		description = "Execute the user goal safely."
	}
	return []PlanStep{
		{
			ID:          "step-1",
			Description: description,
			Status:      "pending",
		},
	}
}

func parseReflectionJSON(raw string, _ reflectionParseMode) (*Reflection, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}

	var payload reflectionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}

	analysis := strings.TrimSpace(payload.Analysis)
	if analysis == "" {
		analysis = strings.TrimSpace(raw)
	}

	return &Reflection{
		Content:     analysis,
		NextAction:  parseControlSignal(payload.Action, analysis),
		NewMemories: normalizeMemories(payload.NewMemories),
	}, true
}

func buildReflectionFallback(raw string) *Reflection {
	analysis := strings.TrimSpace(raw)
	if analysis == "" {
		analysis = "No reflection content returned."
	}
	return &Reflection{
		Content:    analysis,
		NextAction: inferControlSignalFromText(analysis),
	}
}

func parseControlSignal(actionRaw string, analysis string) ControlSignal {
	switch strings.ToLower(strings.TrimSpace(actionRaw)) {
	case "retry":
		return SignalRetry
	case "replan":
		return SignalReplan
	case "stop":
		return SignalStop
	case "continue":
		return SignalContinue
	default:
		return inferControlSignalFromText(analysis)
	}
}

func inferControlSignalFromText(text string) ControlSignal {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case containsAny(lower, "retry", "try again", "transient"):
		return SignalRetry
	case containsAny(lower, "replan", "new plan", "different plan"):
		return SignalReplan
	case containsAny(lower, "goal achieved", "task complete", "cannot continue", "impossible"):
		return SignalStop
	default:
		return SignalContinue
	}
}

func normalizeMemories(memories []string) []string {
	if len(memories) == 0 {
		return nil
	}

	out := make([]string, 0, len(memories))
	seen := make(map[string]struct{}, len(memories))
	for _, memory := range memories {
		clean := strings.TrimSpace(memory)
		if clean == "" {
			continue
		}
		if _, exists := seen[clean]; exists {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractFirstBalancedJSON(input string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return strings.TrimSpace(input[start : i+1])
			}
		}
	}
	return ""
}

func looksLikeControlToken(s string) bool {
	token := strings.TrimSpace(s)
	if token == "" || strings.Contains(token, " ") || len(token) > 80 {
		return false
	}
	for _, r := range token {
		if unicode.IsUpper(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
