package agent

import (
	"context"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// HandoffService moves a conversation between AI-driven and human-driven
// handling. While a conversation is human_active the orchestrator appends
// inbound messages but generates no replies.
type HandoffService struct {
	store  Store
	logger *logging.Logger
}

// NewHandoffService creates a new handoff service.
func NewHandoffService(store Store, logger *logging.Logger) *HandoffService {
	if store == nil {
		panic("agent: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HandoffService{store: store, logger: logger}
}

// Start hands the conversation to a human agent.
func (s *HandoffService) Start(ctx context.Context, conversationID, agentUserID string) error {
	if err := s.store.SetStatus(ctx, conversationID, StatusHumanActive); err != nil {
		return err
	}
	if err := s.store.LogInteraction(ctx, conversationID, InteractionHandoff, true, map[string]any{
		"phase":         "start",
		"agent_user_id": agentUserID,
	}, ""); err != nil {
		return err
	}
	s.logger.Info("human handoff started", "conversation_id", conversationID, "agent_user_id", agentUserID)
	return nil
}

// End returns the conversation to the AI.
func (s *HandoffService) End(ctx context.Context, conversationID string) error {
	if err := s.store.SetStatus(ctx, conversationID, StatusActive); err != nil {
		return err
	}
	if err := s.store.LogInteraction(ctx, conversationID, InteractionHandoff, true, map[string]any{
		"phase": "end",
	}, ""); err != nil {
		return err
	}
	s.logger.Info("human handoff ended, returning to AI", "conversation_id", conversationID)
	return nil
}
