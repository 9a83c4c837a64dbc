package agent

import "time"

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusActive      ConversationStatus = "active"
	StatusEscalated   ConversationStatus = "escalated"
	StatusHumanActive ConversationStatus = "human_active"
	StatusClosed      ConversationStatus = "closed"
)

// MessageRole identifies who authored a message.
type MessageRole string

const (
	RoleCustomer MessageRole = "customer"
	RoleAgent    MessageRole = "agent"
	RoleHuman    MessageRole = "human"
)

// Channel is the transport an inbound message arrived on.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelWeb   Channel = "web"
)

// Conversation is one ongoing dialogue between a customer and a dealership.
// At most one non-closed conversation exists per (customer, dealership) pair.
type Conversation struct {
	ID                 string
	CustomerPhone      string
	DealershipID       string
	Status             ConversationStatus
	QualificationScore *int
	LastMessageAt      time.Time
	CreatedAt          time.Time
}

// Message is one turn in a conversation. The message log is append-only.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// ContextCategory names one independently-extracted slice of customer context.
type ContextCategory string

const (
	CategoryVehicleInterest ContextCategory = "vehicle_interest"
	CategoryBudget          ContextCategory = "budget"
	CategoryTimeline        ContextCategory = "timeline"
	CategoryTradeIn         ContextCategory = "trade_in"
)

// Urgency is the single timeline bucket assigned to a conversation.
type Urgency string

const (
	UrgencyImmediate     Urgency = "immediate"
	UrgencyThisWeek      Urgency = "this_week"
	UrgencyThisMonth     Urgency = "this_month"
	UrgencyNextFewMonths Urgency = "next_few_months"
	UrgencyBrowsing      Urgency = "browsing"
)

// VehicleInterest holds what we know about the vehicle a customer wants.
type VehicleInterest struct {
	Year      string `json:"year,omitempty"`
	Make      string `json:"make,omitempty"`
	Model     string `json:"model,omitempty"`
	Type      string `json:"type,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// FieldCount reports how many fields are populated, which drives the
// stored confidence tier.
func (v VehicleInterest) FieldCount() int {
	return countNonEmpty(v.Year, v.Make, v.Model, v.Type, v.Condition)
}

// IsZero reports whether nothing was extracted.
func (v VehicleInterest) IsZero() bool { return v.FieldCount() == 0 }

// Budget holds extracted purchase-budget signals. Zero means not mentioned.
type Budget struct {
	Total          int    `json:"total,omitempty"`
	MonthlyPayment int    `json:"monthly_payment,omitempty"`
	DownPayment    int    `json:"down_payment,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`
}

func (b Budget) FieldCount() int {
	n := 0
	if b.Total > 0 {
		n++
	}
	if b.MonthlyPayment > 0 {
		n++
	}
	if b.DownPayment > 0 {
		n++
	}
	if b.PaymentMethod != "" {
		n++
	}
	return n
}

func (b Budget) IsZero() bool { return b.FieldCount() == 0 }

// Timeline is the purchase-urgency bucket plus the keyword that matched it.
type Timeline struct {
	Urgency Urgency `json:"urgency,omitempty"`
	Keyword string  `json:"keyword,omitempty"`
}

func (t Timeline) FieldCount() int {
	n := 0
	if t.Urgency != "" {
		n++
	}
	if t.Keyword != "" {
		n++
	}
	return n
}

func (t Timeline) IsZero() bool { return t.Urgency == "" }

// TradeIn holds trade-in intent plus whatever vehicle details were stated.
type TradeIn struct {
	HasTradeIn bool   `json:"has_trade_in,omitempty"`
	Year       string `json:"year,omitempty"`
	Make       string `json:"make,omitempty"`
	Model      string `json:"model,omitempty"`
	Mileage    int    `json:"mileage,omitempty"`
}

func (t TradeIn) FieldCount() int {
	n := countNonEmpty(t.Year, t.Make, t.Model)
	if t.HasTradeIn {
		n++
	}
	if t.Mileage > 0 {
		n++
	}
	return n
}

func (t TradeIn) IsZero() bool { return !t.HasTradeIn }

// ExtractedContext is the result of one extraction pass over a conversation.
// Nil categories were not detected and must not be persisted.
type ExtractedContext struct {
	VehicleInterest *VehicleInterest
	Budget          *Budget
	Timeline        *Timeline
	TradeIn         *TradeIn
}

// IsZero reports whether no category was detected.
func (c ExtractedContext) IsZero() bool {
	return c.VehicleInterest == nil && c.Budget == nil && c.Timeline == nil && c.TradeIn == nil
}

// EscalationResult is the transient outcome of escalation evaluation.
// It is recomputed for every inbound message and never persisted directly.
type EscalationResult struct {
	ShouldEscalate bool
	Reason         string
	Confidence     float64
}

// BookingIntent is a detected test-drive request carrying a resolved
// clock time and the source text span that produced it.
type BookingIntent struct {
	When time.Time
	Text string
}

// Action is the orchestrator's summary of how an inbound message was handled.
type Action string

const (
	ActionResponded        Action = "responded"
	ActionEscalated        Action = "escalated"
	ActionBookingScheduled Action = "booking_scheduled"
	ActionHumanActive      Action = "human_active"
)

// DealershipInfo is the subset of a dealership profile the prompt composer
// and reply pipeline need.
type DealershipInfo struct {
	ID          string
	Name        string
	Hours       string
	Personality string
	Phone       string
	Email       string
	Timezone    string
}

func countNonEmpty(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

// ConfidenceForFields maps a populated-field count onto the stored
// confidence tier for an extracted category.
func ConfidenceForFields(fieldCount int) float64 {
	switch {
	case fieldCount >= 3:
		return 0.9
	case fieldCount >= 2:
		return 0.7
	default:
		return 0.5
	}
}
