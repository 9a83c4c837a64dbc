package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// AdminHandler serves the JWT-protected admin surface.
type AdminHandler struct {
	store  agent.Store
	logger *logging.Logger
}

func NewAdminHandler(store agent.Store, logger *logging.Logger) *AdminHandler {
	if store == nil {
		panic("httpapi: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{store: store, logger: logger}
}

type adminMessage struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type adminConversation struct {
	ID                 string         `json:"id"`
	CustomerPhone      string         `json:"customer_phone"`
	DealershipID       string         `json:"dealership_id"`
	Status             string         `json:"status"`
	QualificationScore *int           `json:"qualification_score"`
	LastMessageAt      time.Time      `json:"last_message_at"`
	CreatedAt          time.Time      `json:"created_at"`
	Messages           []adminMessage `json:"messages"`
}

// GetConversation handles GET /admin/conversations/{conversationID}. Unlike
// the public conversation endpoint it includes per-message metadata (token
// usage, fallback flags, escalation reasons).
func (h *AdminHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.store.GetConversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, agent.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("admin conversation lookup failed", "error", err, "conversation_id", conversationID)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), conversationID, 0)
	if err != nil {
		h.logger.Error("admin message list failed", "error", err, "conversation_id", conversationID)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	out := adminConversation{
		ID:                 conv.ID,
		CustomerPhone:      conv.CustomerPhone,
		DealershipID:       conv.DealershipID,
		Status:             string(conv.Status),
		QualificationScore: conv.QualificationScore,
		LastMessageAt:      conv.LastMessageAt,
		CreatedAt:          conv.CreatedAt,
		Messages:           make([]adminMessage, 0, len(messages)),
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, adminMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
