package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// PipelineEvent represents a structured event in the message-handling
// pipeline. All events share the same base fields for easy filtering/grep.
type PipelineEvent struct {
	Time           string         `json:"time"`
	Event          string         `json:"event"`
	ConversationID string         `json:"conversation_id"`
	DealershipID   string         `json:"dealership_id"`
	Data           map[string]any `json:"data,omitempty"`
}

// EventLogger emits structured JSON events at each decision point in the
// pipeline. Designed for fast grep/filter debugging:
//
//	grep '"event":"escalated"' /var/log/app.log
//	grep '"conversation_id":"conv_abc"' /var/log/app.log
type EventLogger struct {
	logger *logging.Logger
}

// NewEventLogger creates a new pipeline event logger.
func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Log emits a structured pipeline event.
func (e *EventLogger) Log(_ context.Context, event, convID, dealershipID string, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := PipelineEvent{
		Time:           time.Now().UTC().Format(time.RFC3339Nano),
		Event:          event,
		ConversationID: convID,
		DealershipID:   dealershipID,
		Data:           data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

// Convenience methods for common events:

func (e *EventLogger) ConversationStarted(ctx context.Context, convID, dealershipID, phone string, channel Channel) {
	e.Log(ctx, "conversation_started", convID, dealershipID, map[string]any{
		"phone":   phone,
		"channel": string(channel),
	})
}

func (e *EventLogger) MessageReceived(ctx context.Context, convID, dealershipID, message string) {
	msg := message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	e.Log(ctx, "message_received", convID, dealershipID, map[string]any{
		"message": msg,
	})
}

func (e *EventLogger) Escalated(ctx context.Context, convID, dealershipID, reason string, confidence float64) {
	e.Log(ctx, "escalated", convID, dealershipID, map[string]any{
		"reason":     reason,
		"confidence": confidence,
	})
}

func (e *EventLogger) BookingIntentDetected(ctx context.Context, convID, dealershipID, matched string, when time.Time) {
	e.Log(ctx, "booking_intent_detected", convID, dealershipID, map[string]any{
		"matched": matched,
		"when":    when.Format(time.RFC3339),
	})
}

func (e *EventLogger) ContextExtracted(ctx context.Context, convID, dealershipID string, categories []string) {
	e.Log(ctx, "context_extracted", convID, dealershipID, map[string]any{
		"categories": categories,
	})
}

func (e *EventLogger) ReplyGenerated(ctx context.Context, convID, dealershipID string, fallback bool, tokens int32) {
	e.Log(ctx, "reply_generated", convID, dealershipID, map[string]any{
		"fallback": fallback,
		"tokens":   tokens,
	})
}

func (e *EventLogger) Scored(ctx context.Context, convID, dealershipID string, score int) {
	e.Log(ctx, "scored", convID, dealershipID, map[string]any{
		"score": score,
	})
}

func (e *EventLogger) JobDispatched(ctx context.Context, convID, dealershipID, queue string) {
	e.Log(ctx, "job_dispatched", convID, dealershipID, map[string]any{
		"queue": queue,
	})
}

func (e *EventLogger) ErrorOccurred(ctx context.Context, convID, dealershipID, step string, err error) {
	e.Log(ctx, "error", convID, dealershipID, map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
