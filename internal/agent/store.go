package agent

import (
	"context"
	"time"
)

// InteractionType labels a logged pipeline decision.
type InteractionType string

const (
	InteractionMessageSent InteractionType = "message_sent"
	InteractionEscalation  InteractionType = "escalation"
	InteractionBooking     InteractionType = "booking_intent"
	InteractionHandoff     InteractionType = "handoff"
)

// Store is the persistence contract the orchestrator drives. The store owns
// how persistence happens; the orchestrator owns when.
//
// FindActiveConversation returns (nil, nil) when no active or human_active
// conversation exists for the pair. CreateConversation must be safe under
// concurrent first messages from the same customer: on a uniqueness conflict
// it resolves to the row the concurrent writer created.
type Store interface {
	FindActiveConversation(ctx context.Context, customerPhone, dealershipID string) (*Conversation, error)
	CreateConversation(ctx context.Context, customerPhone, dealershipID string) (*Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, role MessageRole, content string, metadata map[string]any) (*Message, error)
	// ListMessages returns messages ordered oldest-first. limit <= 0 means all.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	SetStatus(ctx context.Context, conversationID string, status ConversationStatus) error
	SetQualificationScore(ctx context.Context, conversationID string, score int) error
	UpsertContext(ctx context.Context, conversationID string, category ContextCategory, value any, confidence float64) error
	LogInteraction(ctx context.Context, conversationID string, kind InteractionType, success bool, metadata map[string]any, errMsg string) error
	// CloseStale transitions conversations idle longer than age to closed,
	// returning how many rows changed.
	CloseStale(ctx context.Context, age time.Duration) (int64, error)
}
