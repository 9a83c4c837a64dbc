package agent

import (
	"regexp"
	"strings"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

var vehicleKeywords = []string{
	"sedan", "suv", "truck", "coupe", "van", "minivan", "convertible", "hatchback",
	"camry", "corolla", "civic", "accord", "f-150", "f150", "silverado", "ram",
	"rav4", "cr-v", "crv", "highlander", "pilot", "tacoma", "tundra", "mustang",
	"tesla", "model 3", "model y", "bmw", "mercedes", "audi", "lexus", "honda",
	"toyota", "ford", "chevrolet", "chevy", "nissan", "hyundai", "kia", "subaru",
	"new car", "used car", "pre-owned", "certified", "vehicle", "car", "auto",
}

var budgetKeywords = []string{
	"budget", "price", "cost", "afford", "payment", "monthly", "down payment",
	"finance", "financing", "lease", "leasing", "loan", "apr", "interest rate",
	"$", "thousand", "per month", "/mo", "a month",
}

var (
	timelineUrgentKeywords   = []string{"today", "tomorrow", "asap", "right now", "this week", "urgent", "immediately"}
	timelineSoonKeywords     = []string{"this month", "next week", "soon", "couple weeks", "few days"}
	timelineBrowsingKeywords = []string{"just looking", "browsing", "maybe later", "not sure when", "no rush", "someday"}
)

var tradeInKeywords = []string{
	"trade-in", "trade in", "trading in", "current car", "my car", "selling my",
	"what can i get", "worth", "value of my",
}

var dollarAmountRe = regexp.MustCompile(`(?i)\$[\d,]+|\d{2,}k`)

// QualificationFactors are the five independent sub-scores that sum into a
// lead's qualification score.
type QualificationFactors struct {
	VehicleInterest int
	Budget          int
	Timeline        int
	TradeIn         int
	Engagement      int
}

// QualificationScorer computes a 0-100 lead-quality score from the full
// customer-message history. Scoring is a pure function of the history and is
// recomputed from scratch after every agent turn.
type QualificationScorer struct {
	logger *logging.Logger
}

// NewQualificationScorer creates a new qualification scorer.
func NewQualificationScorer(logger *logging.Logger) *QualificationScorer {
	if logger == nil {
		logger = logging.Default()
	}
	return &QualificationScorer{logger: logger}
}

// Score returns the current qualification score for a message history.
// Histories without customer messages score 0.
func (s *QualificationScorer) Score(messages []Message) int {
	var customer []Message
	for _, m := range messages {
		if m.Role == RoleCustomer {
			customer = append(customer, m)
		}
	}
	if len(customer) == 0 {
		return 0
	}

	var parts []string
	for _, m := range customer {
		parts = append(parts, strings.ToLower(m.Content))
	}
	text := strings.Join(parts, " ")

	factors := QualificationFactors{
		VehicleInterest: scoreVehicleInterest(text),
		Budget:          scoreBudget(text),
		Timeline:        scoreTimeline(text),
		TradeIn:         scoreTradeIn(text),
		Engagement:      scoreEngagement(len(customer)),
	}
	score := clampScore(factors.VehicleInterest + factors.Budget + factors.Timeline + factors.TradeIn + factors.Engagement)

	s.logger.Info("qualification score computed",
		"score", score,
		"vehicle", factors.VehicleInterest,
		"budget", factors.Budget,
		"timeline", factors.Timeline,
		"trade_in", factors.TradeIn,
		"engagement", factors.Engagement,
	)
	return score
}

func scoreVehicleInterest(text string) int {
	switch n := len(allMatches(text, vehicleKeywords)); {
	case n == 0:
		return 0
	case n == 1:
		return 10
	case n == 2:
		return 18
	default:
		return 25
	}
}

func scoreBudget(text string) int {
	matches := allMatches(text, budgetKeywords)
	if len(matches) == 0 {
		return 0
	}
	if dollarAmountRe.MatchString(text) {
		return 25
	}
	if len(matches) >= 2 {
		return 20
	}
	return 12
}

// scoreTimeline uses any-match over the urgency lists rather than the
// priority-first strategy of context extraction; the two can disagree on
// the same input and that difference is intentional.
func scoreTimeline(text string) int {
	if firstMatch(text, timelineUrgentKeywords) != "" {
		return 25
	}
	if firstMatch(text, timelineSoonKeywords) != "" {
		return 18
	}
	if firstMatch(text, timelineBrowsingKeywords) != "" {
		return 5
	}
	return 0
}

func scoreTradeIn(text string) int {
	switch n := len(allMatches(text, tradeInKeywords)); {
	case n == 0:
		return 0
	case n >= 2:
		return 15
	default:
		return 10
	}
}

func scoreEngagement(messageCount int) int {
	switch {
	case messageCount >= 10:
		return 10
	case messageCount >= 5:
		return 7
	case messageCount >= 3:
		return 5
	case messageCount >= 1:
		return 2
	default:
		return 0
	}
}

func clampScore(raw int) int {
	if raw > 100 {
		return 100
	}
	if raw < 0 {
		return 0
	}
	return raw
}
