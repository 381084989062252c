package cognitive

import (
	"context"
	"regexp"
	"strings"
)

// Interpretation is the result of the Interpretation layer: a pure,
// no-LLM first pass over raw input that extracts entities, a coarse
// intent label, and sentiment before any model call is made. It feeds
// the Deliberation layer (UnifiedThinker), whose prompt carries the
// intent, sentiment and entities; the Judgment Engine scores the raw
// text on its own and does not read it.
type Interpretation struct {
	Intent    string
	Entities  []string
	Sentiment string
}

// Interpreter performs the Interpretation layer of the Consciousness Stack.
type Interpreter interface {
	Interpret(ctx context.Context, text string) *Interpretation
}

var (
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	pathPattern  = regexp.MustCompile(`(?:~|/)[\w./-]+`)
)

var intentKeywords = map[string][]string{
	"question":  {"what", "why", "how", "when", "where", "who", "?"},
	"command":   {"open", "launch", "run", "execute", "start", "stop", "close", "delete", "create"},
	"search":    {"search", "find", "look up", "google"},
	"affirm":    {"yes", "yeah", "confirm", "approve", "ok", "okay"},
	"negate":    {"no", "don't", "stop that", "cancel", "abort"},
	"farewell":  {"bye", "goodbye", "see you", "later"},
	"greeting":  {"hi", "hello", "hey", "good morning", "good evening"},
}

var positiveWords = []string{"great", "thanks", "awesome", "love", "good", "nice", "perfect", "excellent"}
var negativeWords = []string{"bad", "hate", "annoyed", "angry", "frustrated", "terrible", "broken", "wrong", "fail"}

// RuleBasedInterpreter is a deterministic, keyword/regex-driven
// Interpreter. It makes no model call: it exists to give Deliberation
// a cheap, reproducible first read of the input before any reasoning
// budget is spent.
type RuleBasedInterpreter struct{}

func NewInterpreter() *RuleBasedInterpreter {
	return &RuleBasedInterpreter{}
}

func (i *RuleBasedInterpreter) Interpret(ctx context.Context, text string) *Interpretation {
	lower := strings.ToLower(text)

	return &Interpretation{
		Intent:    classifyIntent(lower),
		Entities:  extractEntities(text),
		Sentiment: classifySentiment(lower),
	}
}

func classifyIntent(lower string) string {
	for _, label := range []string{"question", "greeting", "farewell", "affirm", "negate", "search", "command"} {
		for _, kw := range intentKeywords[label] {
			if strings.Contains(lower, kw) {
				return label
			}
		}
	}
	return "statement"
}

func classifySentiment(lower string) string {
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return "positive"
	case score < 0:
		return "negative"
	default:
		return "neutral"
	}
}

func extractEntities(text string) []string {
	var entities []string
	entities = append(entities, urlPattern.FindAllString(text, -1)...)
	entities = append(entities, emailPattern.FindAllString(text, -1)...)

	for _, m := range pathPattern.FindAllString(text, -1) {
		if len(m) > 2 && !urlPattern.MatchString(m) {
			entities = append(entities, m)
		}
	}
	return entities
}
