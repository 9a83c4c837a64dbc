package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/internal/dealership"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// DealershipResolver maps an inbound Twilio number onto the dealership it
// belongs to.
type DealershipResolver interface {
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*dealership.Dealership, error)
}

// SMSWebhookHandler ingests Twilio-shaped form posts on /webhooks/sms. The
// reply goes out through the delivery router, so the webhook always answers
// with empty TwiML; returning an error body would only make Twilio retry a
// message the pipeline already owns.
//
// Signature validation is intentionally absent: the deployment fronts this
// route with a shared-secret path segment at the load balancer.
type SMSWebhookHandler struct {
	dealerships DealershipResolver
	pipeline    Pipeline
	logger      *logging.Logger
}

func NewSMSWebhookHandler(dealerships DealershipResolver, pipeline Pipeline, logger *logging.Logger) *SMSWebhookHandler {
	if dealerships == nil {
		panic("httpapi: dealership resolver cannot be nil")
	}
	if pipeline == nil {
		panic("httpapi: pipeline cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SMSWebhookHandler{dealerships: dealerships, pipeline: pipeline, logger: logger}
}

// Handle processes POST /webhooks/sms.
func (h *SMSWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := strings.TrimSpace(r.PostFormValue("From"))
	to := strings.TrimSpace(r.PostFormValue("To"))
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if from == "" || to == "" || body == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	d, err := h.dealerships.GetByPhoneNumber(r.Context(), to)
	if err != nil {
		h.logger.Warn("no dealership for inbound number", "to", to, "error", err)
		h.writeTwiML(w)
		return
	}

	if _, err := h.pipeline.HandleMessage(r.Context(), agent.HandleMessageRequest{
		CustomerPhone: from,
		DealershipID:  d.ID,
		Message:       body,
		Channel:       agent.ChannelSMS,
	}); err != nil {
		h.logger.Error("sms webhook pipeline failed", "error", err, "dealership_id", d.ID)
	}

	h.writeTwiML(w)
}

func (h *SMSWebhookHandler) writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}
