package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	Agent           *AgentHandler
	SMSWebhook      *SMSWebhookHandler
	Admin           *AdminHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Agent != nil {
		r.Route("/api/agent", func(api chi.Router) {
			api.Post("/handle-message", cfg.Agent.HandleMessage)
			api.Get("/conversation/{conversationID}", cfg.Agent.GetConversation)
			api.Post("/qualify", cfg.Agent.Qualify)
			api.Post("/escalate", cfg.Agent.Escalate)
			api.Post("/handoff/start", cfg.Agent.StartHandoff)
			api.Post("/handoff/end", cfg.Agent.EndHandoff)
		})
		r.Post("/api/chat", cfg.Agent.Chat)
	}

	if cfg.SMSWebhook != nil {
		r.Post("/webhooks/sms", cfg.SMSWebhook.Handle)
	}

	if cfg.Admin != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/conversations/{conversationID}", cfg.Admin.GetConversation)
		})
	}

	return r
}
