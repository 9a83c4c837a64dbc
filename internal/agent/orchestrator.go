package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shiftly-ai/agent-backend/internal/observability/metrics"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

var orchestratorTracer = otel.Tracer("agent/orchestrator")

const escalationReply = "I understand your concern. Let me connect you with one of our team members who can help you directly. Someone will reach out to you shortly!"

// HandleMessageRequest is one inbound customer message.
type HandleMessageRequest struct {
	CustomerPhone string
	DealershipID  string
	Message       string
	Channel       Channel
}

// HandleMessageResponse summarizes how the message was handled.
type HandleMessageResponse struct {
	ConversationID     string
	Reply              string
	Action             Action
	QualificationScore int
}

// Deliverer sends replies back over the inbound channel. Delivery failures
// are the deliverer's problem to log; they must never surface here.
type Deliverer interface {
	Deliver(ctx context.Context, channel Channel, destination, text string)
}

// DealershipProvider resolves the dealership profile used for prompt
// composition.
type DealershipProvider interface {
	GetDealership(ctx context.Context, id string) (*DealershipInfo, error)
}

// Orchestrator sequences the per-message pipeline: conversation resolution,
// escalation, booking intent, context extraction, reply generation, scoring,
// and job dispatch. Persistence errors propagate to the caller; enqueue and
// delivery failures do not.
type Orchestrator struct {
	store       Store
	escalation  *EscalationEvaluator
	booking     *BookingIntentDetector
	extractor   *ContextExtractor
	scorer      *QualificationScorer
	replies     *ReplyGenerator
	deliverer   Deliverer
	dispatcher  Dispatcher
	dealerships DealershipProvider
	events      *EventLogger
	metrics     *metrics.PipelineMetrics
	logger      *logging.Logger
}

// OrchestratorOption customizes optional orchestrator collaborators.
type OrchestratorOption func(*Orchestrator)

// WithDealerships wires a dealership profile source into prompt composition.
func WithDealerships(p DealershipProvider) OrchestratorOption {
	return func(o *Orchestrator) { o.dealerships = p }
}

// WithMetrics wires pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates the message orchestrator.
func NewOrchestrator(
	store Store,
	escalation *EscalationEvaluator,
	booking *BookingIntentDetector,
	extractor *ContextExtractor,
	scorer *QualificationScorer,
	replies *ReplyGenerator,
	deliverer Deliverer,
	dispatcher Dispatcher,
	logger *logging.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if store == nil {
		panic("agent: store cannot be nil")
	}
	if escalation == nil || booking == nil || extractor == nil || scorer == nil || replies == nil {
		panic("agent: pipeline components cannot be nil")
	}
	if deliverer == nil {
		panic("agent: deliverer cannot be nil")
	}
	if dispatcher == nil {
		panic("agent: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		store:      store,
		escalation: escalation,
		booking:    booking,
		extractor:  extractor,
		scorer:     scorer,
		replies:    replies,
		deliverer:  deliverer,
		dispatcher: dispatcher,
		events:     NewEventLogger(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleMessage runs the full pipeline for one inbound message.
func (o *Orchestrator) HandleMessage(ctx context.Context, req HandleMessageRequest) (*HandleMessageResponse, error) {
	ctx, span := orchestratorTracer.Start(ctx, "HandleMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("dealership.id", req.DealershipID),
		attribute.String("channel", string(req.Channel)),
	)
	start := time.Now()

	conv, created, err := o.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}
	o.events.MessageReceived(ctx, conv.ID, conv.DealershipID, req.Message)

	if created {
		// Best-effort CRM contact creation for brand-new conversations.
		o.enqueue(ctx, conv, QueueCRMSync, CRMSyncJob{
			ConversationID: conv.ID,
			DealershipID:   conv.DealershipID,
			CustomerPhone:  conv.CustomerPhone,
			Action:         CRMSyncCreate,
		})
	}

	// A human is driving the conversation: record the message and stand down.
	if conv.Status == StatusHumanActive {
		if _, err := o.store.AppendMessage(ctx, conv.ID, RoleCustomer, req.Message, map[string]any{"channel": string(req.Channel)}); err != nil {
			return nil, err
		}
		o.observe(ActionHumanActive, req.Channel, start)
		return &HandleMessageResponse{
			ConversationID:     conv.ID,
			Action:             ActionHumanActive,
			QualificationScore: scoreOrZero(conv),
		}, nil
	}

	if _, err := o.store.AppendMessage(ctx, conv.ID, RoleCustomer, req.Message, map[string]any{"channel": string(req.Channel)}); err != nil {
		return nil, err
	}

	history, err := o.store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		return nil, err
	}

	if result := o.escalation.Evaluate(history); result.ShouldEscalate {
		return o.escalate(ctx, conv, req, result, start)
	}

	if intent := o.booking.Detect(req.Message); intent != nil {
		return o.scheduleBooking(ctx, conv, req, intent, start)
	}

	extracted := o.extractor.ExtractFromMessages(history)
	if err := o.persistContext(ctx, conv.ID, extracted); err != nil {
		return nil, err
	}
	if !extracted.IsZero() {
		o.events.ContextExtracted(ctx, conv.ID, conv.DealershipID, extractedCategories(extracted))
	}

	prompt := BuildSystemPrompt(o.lookupDealership(ctx, conv.DealershipID), &PromptContext{
		QualificationScore: scoreOrZero(conv),
		Context:            extracted,
	})
	reply, err := o.replies.Generate(ctx, history, prompt)
	if err != nil {
		return nil, err
	}
	if reply.Fallback {
		o.metrics.ObserveFallback()
	}
	o.events.ReplyGenerated(ctx, conv.ID, conv.DealershipID, reply.Fallback, reply.Usage.TotalTokens)

	if _, err := o.store.AppendMessage(ctx, conv.ID, RoleAgent, reply.Text, map[string]any{
		"channel":       string(req.Channel),
		"input_tokens":  reply.Usage.InputTokens,
		"output_tokens": reply.Usage.OutputTokens,
		"fallback":      reply.Fallback,
	}); err != nil {
		return nil, err
	}
	o.deliver(ctx, req, reply.Text)

	score := o.scorer.Score(history)
	if err := o.store.SetQualificationScore(ctx, conv.ID, score); err != nil {
		return nil, err
	}
	o.events.Scored(ctx, conv.ID, conv.DealershipID, score)

	o.dispatchJobs(ctx, conv, score, extracted)

	if err := o.store.LogInteraction(ctx, conv.ID, InteractionMessageSent, true, map[string]any{
		"channel":             string(req.Channel),
		"tokens":              reply.Usage.TotalTokens,
		"qualification_score": score,
	}, ""); err != nil {
		return nil, err
	}

	o.observe(ActionResponded, req.Channel, start)
	return &HandleMessageResponse{
		ConversationID:     conv.ID,
		Reply:              reply.Text,
		Action:             ActionResponded,
		QualificationScore: score,
	}, nil
}

// resolveConversation finds the active conversation for the pair or creates
// one. The second return reports whether a new conversation was created.
func (o *Orchestrator) resolveConversation(ctx context.Context, req HandleMessageRequest) (*Conversation, bool, error) {
	conv, err := o.store.FindActiveConversation(ctx, req.CustomerPhone, req.DealershipID)
	if err != nil {
		return nil, false, err
	}
	if conv != nil {
		return conv, false, nil
	}

	conv, err = o.store.CreateConversation(ctx, req.CustomerPhone, req.DealershipID)
	if err != nil {
		return nil, false, err
	}
	o.events.ConversationStarted(ctx, conv.ID, conv.DealershipID, req.CustomerPhone, req.Channel)
	return conv, true, nil
}

func (o *Orchestrator) escalate(ctx context.Context, conv *Conversation, req HandleMessageRequest, result EscalationResult, start time.Time) (*HandleMessageResponse, error) {
	if err := o.store.SetStatus(ctx, conv.ID, StatusEscalated); err != nil {
		return nil, err
	}
	if err := o.store.LogInteraction(ctx, conv.ID, InteractionEscalation, true, map[string]any{
		"reason":     result.Reason,
		"confidence": result.Confidence,
	}, ""); err != nil {
		return nil, err
	}

	if _, err := o.store.AppendMessage(ctx, conv.ID, RoleAgent, escalationReply, map[string]any{
		"escalated":         true,
		"escalation_reason": result.Reason,
		"channel":           string(req.Channel),
	}); err != nil {
		return nil, err
	}
	o.deliver(ctx, req, escalationReply)

	o.enqueue(ctx, conv, QueueNotifications, NotificationJob{
		Type:           NotifyEscalation,
		ConversationID: conv.ID,
		DealershipID:   conv.DealershipID,
		Metadata: map[string]any{
			"reason":     result.Reason,
			"confidence": result.Confidence,
		},
	})

	o.events.Escalated(ctx, conv.ID, conv.DealershipID, result.Reason, result.Confidence)
	o.observe(ActionEscalated, req.Channel, start)
	return &HandleMessageResponse{
		ConversationID:     conv.ID,
		Reply:              escalationReply,
		Action:             ActionEscalated,
		QualificationScore: scoreOrZero(conv),
	}, nil
}

func (o *Orchestrator) scheduleBooking(ctx context.Context, conv *Conversation, req HandleMessageRequest, intent *BookingIntent, start time.Time) (*HandleMessageResponse, error) {
	o.enqueue(ctx, conv, QueueBooking, BookingJob{
		ConversationID: conv.ID,
		DealershipID:   conv.DealershipID,
		CustomerPhone:  conv.CustomerPhone,
		PreferredDate:  intent.When.Format(time.RFC3339),
	})

	reply := fmt.Sprintf("Great! I've noted your test drive request for %s. Our team will confirm the details shortly!",
		intent.When.Format("Monday, Jan 2 at 3:04 PM"))

	if _, err := o.store.AppendMessage(ctx, conv.ID, RoleAgent, reply, map[string]any{
		"booking_intent": true,
		"booking_time":   intent.When.Format(time.RFC3339),
		"channel":        string(req.Channel),
	}); err != nil {
		return nil, err
	}
	o.deliver(ctx, req, reply)

	if err := o.store.LogInteraction(ctx, conv.ID, InteractionBooking, true, map[string]any{
		"when":    intent.When.Format(time.RFC3339),
		"matched": intent.Text,
	}, ""); err != nil {
		return nil, err
	}

	o.events.BookingIntentDetected(ctx, conv.ID, conv.DealershipID, intent.Text, intent.When)
	o.observe(ActionBookingScheduled, req.Channel, start)
	return &HandleMessageResponse{
		ConversationID:     conv.ID,
		Reply:              reply,
		Action:             ActionBookingScheduled,
		QualificationScore: scoreOrZero(conv),
	}, nil
}

func (o *Orchestrator) persistContext(ctx context.Context, conversationID string, extracted ExtractedContext) error {
	if v := extracted.VehicleInterest; v != nil {
		if err := o.store.UpsertContext(ctx, conversationID, CategoryVehicleInterest, v, ConfidenceForFields(v.FieldCount())); err != nil {
			return err
		}
	}
	if b := extracted.Budget; b != nil {
		if err := o.store.UpsertContext(ctx, conversationID, CategoryBudget, b, ConfidenceForFields(b.FieldCount())); err != nil {
			return err
		}
	}
	if t := extracted.Timeline; t != nil {
		if err := o.store.UpsertContext(ctx, conversationID, CategoryTimeline, t, ConfidenceForFields(t.FieldCount())); err != nil {
			return err
		}
	}
	if ti := extracted.TradeIn; ti != nil {
		if err := o.store.UpsertContext(ctx, conversationID, CategoryTradeIn, ti, ConfidenceForFields(ti.FieldCount())); err != nil {
			return err
		}
	}
	return nil
}

// dispatchJobs applies the post-turn dispatch rules. Each rule is evaluated
// independently; none are mutually exclusive.
func (o *Orchestrator) dispatchJobs(ctx context.Context, conv *Conversation, score int, extracted ExtractedContext) {
	if score >= crmSyncScoreThreshold {
		o.enqueue(ctx, conv, QueueCRMSync, CRMSyncJob{
			ConversationID:     conv.ID,
			DealershipID:       conv.DealershipID,
			CustomerPhone:      conv.CustomerPhone,
			Action:             CRMSyncUpdate,
			QualificationScore: score,
			VehicleInterest:    extracted.VehicleInterest,
		})
	}

	if t := extracted.Timeline; t != nil && (t.Urgency == UrgencyImmediate || t.Urgency == UrgencyThisWeek) {
		preferred := bookingPreferredWeek
		if t.Urgency == UrgencyImmediate {
			preferred = bookingPreferredText
		}
		o.enqueue(ctx, conv, QueueBooking, BookingJob{
			ConversationID:  conv.ID,
			DealershipID:    conv.DealershipID,
			CustomerPhone:   conv.CustomerPhone,
			VehicleInterest: vehicleSummary(extracted.VehicleInterest),
			PreferredDate:   preferred,
		})
	}

	if score >= highScoreLeadThreshold {
		o.enqueue(ctx, conv, QueueNotifications, NotificationJob{
			Type:           NotifyHighScoreLead,
			ConversationID: conv.ID,
			DealershipID:   conv.DealershipID,
			Metadata:       map[string]any{"qualification_score": score},
		})
	}
}

// enqueue is best-effort: a failed enqueue is logged and counted, never
// propagated.
func (o *Orchestrator) enqueue(ctx context.Context, conv *Conversation, queue string, payload any) {
	err := o.dispatcher.Enqueue(ctx, queue, payload)
	o.metrics.ObserveEnqueue(queue, err)
	if err != nil {
		o.logger.Warn("failed to enqueue job",
			"queue", queue,
			"conversation_id", conv.ID,
			"error", err,
		)
		return
	}
	o.events.JobDispatched(ctx, conv.ID, conv.DealershipID, queue)
}

// deliver routes the reply back over the inbound channel. Web replies ride
// the HTTP response only.
func (o *Orchestrator) deliver(ctx context.Context, req HandleMessageRequest, text string) {
	if req.Channel == ChannelWeb {
		return
	}
	o.deliverer.Deliver(ctx, req.Channel, req.CustomerPhone, text)
}

func (o *Orchestrator) lookupDealership(ctx context.Context, dealershipID string) *DealershipInfo {
	if o.dealerships == nil {
		return nil
	}
	info, err := o.dealerships.GetDealership(ctx, dealershipID)
	if err != nil {
		o.logger.Warn("dealership lookup failed", "dealership_id", dealershipID, "error", err)
		return nil
	}
	return info
}

func (o *Orchestrator) observe(action Action, channel Channel, start time.Time) {
	o.metrics.ObserveHandled(string(action), string(channel), time.Since(start).Seconds())
}

func scoreOrZero(conv *Conversation) int {
	if conv.QualificationScore == nil {
		return 0
	}
	return *conv.QualificationScore
}

func extractedCategories(extracted ExtractedContext) []string {
	var cats []string
	if extracted.VehicleInterest != nil {
		cats = append(cats, string(CategoryVehicleInterest))
	}
	if extracted.Budget != nil {
		cats = append(cats, string(CategoryBudget))
	}
	if extracted.Timeline != nil {
		cats = append(cats, string(CategoryTimeline))
	}
	if extracted.TradeIn != nil {
		cats = append(cats, string(CategoryTradeIn))
	}
	return cats
}

// vehicleSummary flattens vehicle interest into the free-text field booking
// jobs carry.
func vehicleSummary(v *VehicleInterest) string {
	if v == nil {
		return ""
	}
	var parts []string
	for _, p := range []string{v.Year, v.Make, v.Model, v.Type} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
