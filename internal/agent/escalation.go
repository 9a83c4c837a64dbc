package agent

import (
	"fmt"
	"strings"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const (
	recentWindowSize     = 5
	repetitionThreshold  = 0.8
	longConversationSize = 15
)

var frustrationKeywords = []string{
	"speak to a person", "speak to someone", "talk to a person", "talk to someone",
	"real person", "real human", "human agent", "human being", "not a bot",
	"stop texting me", "stop messaging", "leave me alone",
	"this is ridiculous", "this is stupid", "waste of time", "terrible",
	"worst experience", "never coming back", "horrible", "awful",
	"you suck", "useless", "incompetent",
	"manager", "supervisor", "complaint", "complain", "lawyer", "attorney",
	"better business bureau", "bbb",
}

var explicitEscalationKeywords = []string{
	"speak to a human", "talk to a human", "transfer me", "connect me",
	"real person", "live person", "live agent", "human please",
	"get me someone", "let me speak", "operator", "representative",
}

var complexTopicKeywords = []string{
	"warranty claim", "recall", "lemon law", "accident", "insurance claim",
	"legal", "lawsuit", "refund", "return the car", "dispute",
	"mechanical issue", "defect", "broke down", "not working",
}

// EscalationEvaluator decides whether a conversation must be handed to a
// human. It runs before any model call and gates reply generation entirely.
type EscalationEvaluator struct {
	logger *logging.Logger
}

// NewEscalationEvaluator creates a new escalation evaluator.
func NewEscalationEvaluator(logger *logging.Logger) *EscalationEvaluator {
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationEvaluator{logger: logger}
}

// Evaluate checks the customer-message history against the escalation rules
// in strict priority order, returning the first rule that fires.
func (e *EscalationEvaluator) Evaluate(messages []Message) EscalationResult {
	var customer []Message
	for _, m := range messages {
		if m.Role == RoleCustomer {
			customer = append(customer, m)
		}
	}
	if len(customer) == 0 {
		return EscalationResult{}
	}

	recent := customer
	if len(recent) > recentWindowSize {
		recent = recent[len(recent)-recentWindowSize:]
	}
	var recentParts []string
	for _, m := range recent {
		recentParts = append(recentParts, strings.ToLower(m.Content))
	}
	recentText := strings.Join(recentParts, " ")

	if kw := firstMatch(recentText, explicitEscalationKeywords); kw != "" {
		e.logger.Info("escalation triggered: explicit request", "keyword", kw)
		return EscalationResult{
			ShouldEscalate: true,
			Reason:         fmt.Sprintf("Customer explicitly requested human agent: %q", kw),
			Confidence:     0.95,
		}
	}

	frustration := allMatches(recentText, frustrationKeywords)
	if len(frustration) >= 2 {
		e.logger.Info("escalation triggered: multiple frustration signals", "matches", frustration)
		return EscalationResult{
			ShouldEscalate: true,
			Reason:         "Customer showing frustration: " + strings.Join(frustration, ", "),
			Confidence:     0.85,
		}
	}

	if len(frustration) == 1 && hasRepeatedMessages(recent) {
		e.logger.Info("escalation triggered: frustration with repeated messages")
		return EscalationResult{
			ShouldEscalate: true,
			Reason:         "Customer frustrated and repeating themselves",
			Confidence:     0.80,
		}
	}

	if kw := firstMatch(recentText, complexTopicKeywords); kw != "" {
		e.logger.Info("escalation triggered: complex topic", "keyword", kw)
		return EscalationResult{
			ShouldEscalate: true,
			Reason:         fmt.Sprintf("Complex topic requiring human: %q", kw),
			Confidence:     0.75,
		}
	}

	if len(recent) >= 3 && hasRepeatedMessages(recent) {
		e.logger.Info("escalation triggered: repeated messages without resolution")
		return EscalationResult{
			ShouldEscalate: true,
			Reason:         "Customer repeating themselves and may need human assistance",
			Confidence:     0.70,
		}
	}

	if len(customer) >= longConversationSize {
		e.logger.Info("escalation suggested: long conversation", "message_count", len(customer))
		return EscalationResult{
			ShouldEscalate: true,
			Reason:         "Long conversation that may benefit from human follow-up",
			Confidence:     0.55,
		}
	}

	return EscalationResult{}
}

func firstMatch(text string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw
		}
	}
	return ""
}

func allMatches(text string, keywords []string) []string {
	var matches []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matches = append(matches, kw)
		}
	}
	return matches
}

// hasRepeatedMessages reports whether any two adjacent messages are
// identical or near-identical after lowercasing and trimming.
func hasRepeatedMessages(messages []Message) bool {
	if len(messages) < 2 {
		return false
	}
	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = strings.TrimSpace(strings.ToLower(m.Content))
	}
	for i := 1; i < len(contents); i++ {
		if contents[i] == contents[i-1] {
			return true
		}
		if similarity(contents[i], contents[i-1]) > repetitionThreshold {
			return true
		}
	}
	return false
}

// similarity is normalized Levenshtein similarity in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	dist := levenshteinDistance(longer, shorter)
	return float64(len(longer)-dist) / float64(len(longer))
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := 0; j <= len(ra); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = min(prev[j-1], min(curr[j-1], prev[j])) + 1
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}
