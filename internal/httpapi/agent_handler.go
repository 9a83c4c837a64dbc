package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/internal/dealership"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Pipeline is the slice of the orchestrator the handlers drive.
type Pipeline interface {
	HandleMessage(ctx context.Context, req agent.HandleMessageRequest) (*agent.HandleMessageResponse, error)
}

// StaffFinder resolves which dealership user an escalated conversation is
// routed to.
type StaffFinder interface {
	FirstActiveUser(ctx context.Context, dealershipID string) (*dealership.User, error)
}

// AgentHandler serves the /api/agent endpoints and the web-chat entry.
type AgentHandler struct {
	pipeline   Pipeline
	store      agent.Store
	scorer     *agent.QualificationScorer
	handoff    *agent.HandoffService
	staff      StaffFinder
	dispatcher agent.Dispatcher
	logger     *logging.Logger
}

func NewAgentHandler(
	pipeline Pipeline,
	store agent.Store,
	scorer *agent.QualificationScorer,
	handoff *agent.HandoffService,
	staff StaffFinder,
	dispatcher agent.Dispatcher,
	logger *logging.Logger,
) *AgentHandler {
	if pipeline == nil {
		panic("httpapi: pipeline cannot be nil")
	}
	if store == nil {
		panic("httpapi: store cannot be nil")
	}
	if scorer == nil {
		panic("httpapi: scorer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AgentHandler{
		pipeline:   pipeline,
		store:      store,
		scorer:     scorer,
		handoff:    handoff,
		staff:      staff,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type handleMessageRequest struct {
	CustomerPhone string `json:"customer_phone"`
	DealershipID  string `json:"dealership_id"`
	Message       string `json:"message"`
	Channel       string `json:"channel"`
}

type handleMessageResponse struct {
	ConversationID     string `json:"conversation_id"`
	Reply              string `json:"reply,omitempty"`
	Action             string `json:"action"`
	QualificationScore int    `json:"qualification_score"`
}

// HandleMessage handles POST /api/agent/handle-message.
func (h *AgentHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req handleMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.CustomerPhone) == "" || strings.TrimSpace(req.DealershipID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "customer_phone, dealership_id and message are required")
		return
	}

	channel := agent.Channel(req.Channel)
	if channel == "" {
		channel = agent.ChannelSMS
	}

	resp, err := h.pipeline.HandleMessage(r.Context(), agent.HandleMessageRequest{
		CustomerPhone: req.CustomerPhone,
		DealershipID:  req.DealershipID,
		Message:       req.Message,
		Channel:       channel,
	})
	if err != nil {
		h.logger.Error("handle-message failed", "error", err, "dealership_id", req.DealershipID)
		writeError(w, http.StatusInternalServerError, "failed to handle message")
		return
	}

	writeJSON(w, http.StatusOK, handleMessageResponse{
		ConversationID:     resp.ConversationID,
		Reply:              resp.Reply,
		Action:             string(resp.Action),
		QualificationScore: resp.QualificationScore,
	})
}

type chatRequest struct {
	DealershipID string `json:"dealership_id"`
	CustomerID   string `json:"customer_id"`
	Message      string `json:"message"`
}

// Chat handles POST /api/chat. Web replies ride the HTTP response only.
func (h *AgentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.DealershipID) == "" || strings.TrimSpace(req.CustomerID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "dealership_id, customer_id and message are required")
		return
	}

	resp, err := h.pipeline.HandleMessage(r.Context(), agent.HandleMessageRequest{
		CustomerPhone: req.CustomerID,
		DealershipID:  req.DealershipID,
		Message:       req.Message,
		Channel:       agent.ChannelWeb,
	})
	if err != nil {
		h.logger.Error("chat message failed", "error", err, "dealership_id", req.DealershipID)
		writeError(w, http.StatusInternalServerError, "failed to handle message")
		return
	}

	writeJSON(w, http.StatusOK, handleMessageResponse{
		ConversationID:     resp.ConversationID,
		Reply:              resp.Reply,
		Action:             string(resp.Action),
		QualificationScore: resp.QualificationScore,
	})
}

type conversationResponse struct {
	ID                 string            `json:"id"`
	CustomerPhone      string            `json:"customer_phone"`
	DealershipID       string            `json:"dealership_id"`
	Status             string            `json:"status"`
	QualificationScore *int              `json:"qualification_score"`
	LastMessageAt      time.Time         `json:"last_message_at"`
	CreatedAt          time.Time         `json:"created_at"`
	Messages           []messageResponse `json:"messages"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GetConversation handles GET /api/agent/conversation/{conversationID}.
func (h *AgentHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.store.GetConversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, agent.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("conversation lookup failed", "error", err, "conversation_id", conversationID)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), conversationID, 0)
	if err != nil {
		h.logger.Error("message list failed", "error", err, "conversation_id", conversationID)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	writeJSON(w, http.StatusOK, toConversationResponse(conv, messages))
}

type qualifyRequest struct {
	ConversationID string `json:"conversation_id"`
}

// Qualify handles POST /api/agent/qualify: it rescores the conversation from
// its full history and persists the result.
func (h *AgentHandler) Qualify(w http.ResponseWriter, r *http.Request) {
	var req qualifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	if _, err := h.store.GetConversation(r.Context(), req.ConversationID); err != nil {
		if errors.Is(err, agent.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("conversation lookup failed", "error", err, "conversation_id", req.ConversationID)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), req.ConversationID, 0)
	if err != nil {
		h.logger.Error("message list failed", "error", err, "conversation_id", req.ConversationID)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	score := h.scorer.Score(messages)
	if err := h.store.SetQualificationScore(r.Context(), req.ConversationID, score); err != nil {
		h.logger.Error("score persist failed", "error", err, "conversation_id", req.ConversationID)
		writeError(w, http.StatusInternalServerError, "failed to persist score")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":     req.ConversationID,
		"qualification_score": score,
	})
}

type escalateRequest struct {
	ConversationID string `json:"conversation_id"`
	Reason         string `json:"reason"`
}

// Escalate handles POST /api/agent/escalate: it marks the conversation
// escalated, routes it to the first active dealership user, and pages staff.
func (h *AgentHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	var req escalateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "manual_escalation"
	}

	conv, err := h.store.GetConversation(r.Context(), req.ConversationID)
	if err != nil {
		if errors.Is(err, agent.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("conversation lookup failed", "error", err, "conversation_id", req.ConversationID)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	assigned := h.assignAgent(r.Context(), conv.DealershipID)

	if err := h.store.SetStatus(r.Context(), conv.ID, agent.StatusEscalated); err != nil {
		h.logger.Error("escalation status update failed", "error", err, "conversation_id", conv.ID)
		writeError(w, http.StatusInternalServerError, "failed to escalate conversation")
		return
	}

	meta := map[string]any{"reason": req.Reason, "source": "api"}
	if assigned != nil {
		meta["assigned_user_id"] = assigned.ID
	}
	if err := h.store.LogInteraction(r.Context(), conv.ID, agent.InteractionEscalation, true, meta, ""); err != nil {
		h.logger.Error("escalation log failed", "error", err, "conversation_id", conv.ID)
		writeError(w, http.StatusInternalServerError, "failed to escalate conversation")
		return
	}

	if h.dispatcher != nil {
		notification := agent.NotificationJob{
			Type:           agent.NotifyEscalation,
			ConversationID: conv.ID,
			DealershipID:   conv.DealershipID,
			Metadata: map[string]any{
				"reason":         req.Reason,
				"customer_phone": conv.CustomerPhone,
			},
		}
		if assigned != nil {
			notification.Recipient = assigned.Phone
		}
		if err := h.dispatcher.Enqueue(r.Context(), agent.QueueNotifications, notification); err != nil {
			h.logger.Warn("escalation notification enqueue failed", "error", err, "conversation_id", conv.ID)
		}
	}

	resp := map[string]any{
		"conversation_id": conv.ID,
		"status":          string(agent.StatusEscalated),
	}
	if assigned != nil {
		resp["assigned_user_id"] = assigned.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type handoffRequest struct {
	ConversationID string `json:"conversation_id"`
	AgentUserID    string `json:"agent_user_id"`
}

// StartHandoff handles POST /api/agent/handoff/start.
func (h *AgentHandler) StartHandoff(w http.ResponseWriter, r *http.Request) {
	var req handoffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if err := h.handoff.Start(r.Context(), req.ConversationID, req.AgentUserID); err != nil {
		h.respondHandoffError(w, err, req.ConversationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"conversation_id": req.ConversationID,
		"status":          string(agent.StatusHumanActive),
	})
}

// EndHandoff handles POST /api/agent/handoff/end.
func (h *AgentHandler) EndHandoff(w http.ResponseWriter, r *http.Request) {
	var req handoffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if err := h.handoff.End(r.Context(), req.ConversationID); err != nil {
		h.respondHandoffError(w, err, req.ConversationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"conversation_id": req.ConversationID,
		"status":          string(agent.StatusActive),
	})
}

func (h *AgentHandler) respondHandoffError(w http.ResponseWriter, err error, conversationID string) {
	if errors.Is(err, agent.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	h.logger.Error("handoff failed", "error", err, "conversation_id", conversationID)
	writeError(w, http.StatusInternalServerError, "handoff failed")
}

func (h *AgentHandler) assignAgent(ctx context.Context, dealershipID string) *dealership.User {
	if h.staff == nil {
		return nil
	}
	user, err := h.staff.FirstActiveUser(ctx, dealershipID)
	if err != nil {
		if !errors.Is(err, dealership.ErrNotFound) {
			h.logger.Warn("staff lookup failed", "error", err, "dealership_id", dealershipID)
		}
		return nil
	}
	return user
}

func toConversationResponse(conv *agent.Conversation, messages []agent.Message) conversationResponse {
	out := conversationResponse{
		ID:                 conv.ID,
		CustomerPhone:      conv.CustomerPhone,
		DealershipID:       conv.DealershipID,
		Status:             string(conv.Status),
		QualificationScore: conv.QualificationScore,
		LastMessageAt:      conv.LastMessageAt,
		CreatedAt:          conv.CreatedAt,
		Messages:           make([]messageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, messageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
