package agent

import (
	"fmt"
	"strings"
)

const basePrompt = `You are a friendly, professional car dealership assistant named Shiftly. You help customers find the right vehicle and schedule test drives.

RULES:
- Keep responses under 160 characters (SMS length)
- Ask one question at a time
- Be warm and helpful but concise
- Never give exact prices. Say "I can get you exact pricing" and offer to connect them
- Never make up vehicle availability or specs
- If the customer is frustrated, offer to connect them with a human
- Extract: vehicle interest, budget range, timeline, trade-in info
- When customer is ready, offer to schedule a test drive

TONE: Friendly, helpful, not pushy. Like a knowledgeable friend at the dealership.`

// hotLeadThreshold marks conversations worth steering toward a booking.
const hotLeadThreshold = 60

// PromptContext is the per-conversation state the prompt composer folds into
// the system instruction.
type PromptContext struct {
	QualificationScore int
	Context            ExtractedContext
}

// BuildSystemPrompt layers the base persona with optional dealership info
// and customer context. Pure string composition.
func BuildSystemPrompt(dealership *DealershipInfo, promptCtx *PromptContext) string {
	parts := []string{basePrompt}

	if dealership != nil {
		var section []string
		if dealership.Name != "" {
			section = append(section, fmt.Sprintf("You work at %s.", dealership.Name))
		}
		if dealership.Hours != "" {
			section = append(section, fmt.Sprintf("Business hours: %s.", dealership.Hours))
		}
		if dealership.Personality != "" {
			section = append(section, "Dealership personality: "+dealership.Personality)
		}
		if dealership.Phone != "" {
			section = append(section, "Dealership phone: "+dealership.Phone)
		}
		if len(section) > 0 {
			parts = append(parts, "\nDEALERSHIP INFO:\n"+strings.Join(section, "\n"))
		}
	}

	if promptCtx != nil {
		var section []string
		if promptCtx.QualificationScore > 0 {
			section = append(section, fmt.Sprintf("Lead score: %d/100", promptCtx.QualificationScore))
			if promptCtx.QualificationScore >= hotLeadThreshold {
				section = append(section, "This is a HOT lead. Be attentive and move toward booking.")
			}
		}

		if vi := promptCtx.Context.VehicleInterest; vi != nil {
			var vehicle []string
			for _, part := range []string{vi.Make, vi.Model, vi.Type, vi.Condition} {
				if part != "" {
					vehicle = append(vehicle, part)
				}
			}
			if len(vehicle) > 0 {
				section = append(section, "Customer interested in: "+strings.Join(vehicle, " "))
			}
		}

		if b := promptCtx.Context.Budget; b != nil {
			if b.Total > 0 {
				section = append(section, fmt.Sprintf("Budget: $%d", b.Total))
			}
			if b.MonthlyPayment > 0 {
				section = append(section, fmt.Sprintf("Monthly budget: $%d/mo", b.MonthlyPayment))
			}
			if b.PaymentMethod != "" {
				section = append(section, "Payment: "+b.PaymentMethod)
			}
		}

		if t := promptCtx.Context.Timeline; t != nil && t.Urgency != "" {
			section = append(section, "Timeline: "+string(t.Urgency))
		}

		if ti := promptCtx.Context.TradeIn; ti != nil && ti.HasTradeIn {
			section = append(section, "Customer has a trade-in.")
		}

		if len(section) > 0 {
			parts = append(parts, "\nCUSTOMER CONTEXT (use this to personalize your response):\n"+strings.Join(section, "\n"))
		}
	}

	return strings.Join(parts, "\n")
}
