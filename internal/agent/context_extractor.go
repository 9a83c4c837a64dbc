package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

var (
	vehicleSpecificRe  = regexp.MustCompile(`(?i)(?:looking for|interested in|want|need|like)\s+(?:a\s+)?(\d{4})?\s*([\w-]+)\s+([\w-]+)`)
	vehicleTypeRe      = regexp.MustCompile(`(?i)\b(sedan|suv|truck|coupe|van|minivan|convertible|hatchback|crossover)\b`)
	vehicleConditionRe = regexp.MustCompile(`(?i)\b(new|used|pre-owned|certified|cpo)\b`)
	vehicleMakeRe      = regexp.MustCompile(`(?i)\b(toyota|honda|ford|chevrolet|chevy|nissan|hyundai|kia|subaru|bmw|mercedes|audi|lexus|tesla|ram|dodge|jeep|gmc|volkswagen|vw|mazda|volvo)\b`)
	vehicleModelRe     = regexp.MustCompile(`(?i)\b(camry|corolla|civic|accord|f-?150|silverado|rav4|cr-?v|highlander|pilot|tacoma|tundra|mustang|model\s*[3ys]|altima|elantra|sportage|outback|wrangler)\b`)

	budgetAmountRe      = regexp.MustCompile(`(?i)\$\s*([\d,]+)\s*(k|thousand)?`)
	budgetAmountKRe     = regexp.MustCompile(`(?i)\b(\d+)\s*k\b`)
	budgetStatedRe      = regexp.MustCompile(`(?i)(?:budget|spend|afford|pay)\s+(?:is\s+)?(?:around\s+|about\s+|up to\s+|max\s+|under\s+|less than\s+)?\$?([\d,]+)`)
	budgetMonthlyRe     = regexp.MustCompile(`(?i)\$?([\d,]+)\s*(?:/mo|per month|a month|monthly)`)
	budgetDownPaymentRe = regexp.MustCompile(`(?i)(?:down payment|put down)\s+(?:of\s+)?\$?([\d,]+)`)
	paymentMethodRe     = regexp.MustCompile(`(?i)\b(finance|financing|lease|leasing|cash|loan)\b`)

	tradeInVehicleRe = regexp.MustCompile(`(?i)(?:trade|trading)\s*(?:in)?\s+(?:my\s+)?(\d{4})?\s*([\w-]+)?\s*([\w-]+)?`)
	tradeInCurrentRe = regexp.MustCompile(`(?i)(?:driving|have|own)\s+(?:a\s+)?(\d{4})?\s*([\w-]+)\s*([\w-]+)`)
	tradeInMileageRe = regexp.MustCompile(`(?i)(\d{1,3}[,.]?\d{3,})\s*miles`)
)

// timelinePatterns are checked in priority order; the first match wins so a
// single extraction never carries more than one urgency bucket.
var timelinePatterns = []struct {
	re      *regexp.Regexp
	urgency Urgency
}{
	{regexp.MustCompile(`(?i)\b(today|tonight|right now|asap|immediately|urgent)\b`), UrgencyImmediate},
	{regexp.MustCompile(`(?i)\b(tomorrow|this week|next few days|couple days)\b`), UrgencyThisWeek},
	{regexp.MustCompile(`(?i)\b(this month|next week|couple weeks|few weeks|soon)\b`), UrgencyThisMonth},
	{regexp.MustCompile(`(?i)\b(next month|couple months|few months)\b`), UrgencyNextFewMonths},
	{regexp.MustCompile(`(?i)\b(just looking|browsing|no rush|not sure when|maybe later|someday|next year)\b`), UrgencyBrowsing},
}

// ContextExtractor parses free-text customer messages into structured
// buying signals. Extraction is pure and recomputed from the full customer
// history on every call.
type ContextExtractor struct {
	logger *logging.Logger
}

// NewContextExtractor creates a new context extractor.
func NewContextExtractor(logger *logging.Logger) *ContextExtractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &ContextExtractor{logger: logger}
}

// ExtractFromMessages runs all four pattern families over the concatenated
// customer-authored text. Categories with no matches stay nil.
func (e *ContextExtractor) ExtractFromMessages(messages []Message) ExtractedContext {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleCustomer {
			parts = append(parts, m.Content)
		}
	}
	if len(parts) == 0 {
		return ExtractedContext{}
	}

	text := strings.Join(parts, " ")
	ctx := ExtractedContext{
		VehicleInterest: extractVehicleInterest(text),
		Budget:          extractBudget(text),
		Timeline:        extractTimeline(text),
		TradeIn:         extractTradeIn(text),
	}

	e.logger.Debug("context extracted",
		"has_vehicle", ctx.VehicleInterest != nil,
		"has_budget", ctx.Budget != nil,
		"has_timeline", ctx.Timeline != nil,
		"has_trade_in", ctx.TradeIn != nil,
	)
	return ctx
}

func extractVehicleInterest(text string) *VehicleInterest {
	var v VehicleInterest

	if m := vehicleSpecificRe.FindStringSubmatch(text); m != nil {
		v.Year = m[1]
		v.Make = m[2]
		v.Model = m[3]
	}
	if m := vehicleTypeRe.FindStringSubmatch(text); m != nil {
		v.Type = m[1]
	}
	if m := vehicleConditionRe.FindStringSubmatch(text); m != nil {
		v.Condition = m[1]
	}
	if m := vehicleMakeRe.FindStringSubmatch(text); m != nil {
		v.Make = m[1]
	}
	if m := vehicleModelRe.FindStringSubmatch(text); m != nil {
		v.Model = m[1]
	}

	if v.IsZero() {
		return nil
	}
	return &v
}

func extractBudget(text string) *Budget {
	var b Budget

	if m := budgetAmountRe.FindStringSubmatch(text); m != nil {
		n := parseAmount(m[1])
		if m[2] != "" {
			n *= 1000
		}
		b.Total = n
	}
	if m := budgetAmountKRe.FindStringSubmatch(text); m != nil {
		b.Total = parseAmount(m[1]) * 1000
	}
	if m := budgetStatedRe.FindStringSubmatch(text); m != nil && b.Total == 0 {
		b.Total = parseAmount(m[1])
	}
	if m := budgetMonthlyRe.FindStringSubmatch(text); m != nil {
		b.MonthlyPayment = parseAmount(m[1])
	}
	if m := budgetDownPaymentRe.FindStringSubmatch(text); m != nil {
		b.DownPayment = parseAmount(m[1])
	}
	if m := paymentMethodRe.FindStringSubmatch(text); m != nil {
		b.PaymentMethod = strings.ToLower(m[1])
	}

	if b.IsZero() {
		return nil
	}
	return &b
}

func extractTimeline(text string) *Timeline {
	for _, p := range timelinePatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return &Timeline{Urgency: p.urgency, Keyword: strings.ToLower(m[1])}
		}
	}
	return nil
}

func extractTradeIn(text string) *TradeIn {
	lower := strings.ToLower(text)
	hasIntent := strings.Contains(lower, "trade-in") ||
		strings.Contains(lower, "trade in") ||
		strings.Contains(lower, "trading in") ||
		strings.Contains(lower, "value of my")
	if !hasIntent {
		return nil
	}

	t := TradeIn{HasTradeIn: true}
	for _, re := range []*regexp.Regexp{tradeInVehicleRe, tradeInCurrentRe} {
		m := re.FindStringSubmatch(text)
		if m == nil || (m[1] == "" && m[2] == "") {
			continue
		}
		if m[1] != "" {
			t.Year = m[1]
		}
		if m[2] != "" {
			t.Make = m[2]
		}
		if m[3] != "" {
			t.Model = m[3]
		}
	}
	if m := tradeInMileageRe.FindStringSubmatch(text); m != nil {
		t.Mileage = parseAmount(m[1])
	}
	return &t
}

func parseAmount(raw string) int {
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(raw)
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}
