package delivery

import (
	"context"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Router fans replies out to the channel the customer wrote in on. Failures
// are logged, never returned: the reply is already persisted and the customer
// turn must not fail because a provider hiccuped.
type Router struct {
	sms    SMSSender
	email  EmailSender
	logger *logging.Logger
}

var _ agent.Deliverer = (*Router)(nil)

// NewRouter creates a delivery router. Either sender may be nil, in which
// case deliveries for that channel are dropped with a warning.
func NewRouter(sms SMSSender, email EmailSender, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{sms: sms, email: email, logger: logger}
}

// Deliver sends text to destination over channel.
func (r *Router) Deliver(ctx context.Context, channel agent.Channel, destination, text string) {
	switch channel {
	case agent.ChannelSMS:
		if r.sms == nil {
			r.logger.Warn("sms delivery skipped: no sender configured", "to", destination)
			return
		}
		if err := r.sms.SendSMS(ctx, destination, text); err != nil {
			r.logger.Error("sms delivery failed", "error", err, "to", destination)
		}
	case agent.ChannelEmail:
		if r.email == nil {
			r.logger.Warn("email delivery skipped: no sender configured", "to", destination)
			return
		}
		err := r.email.Send(ctx, EmailMessage{
			To:      destination,
			Subject: "Message from your dealership",
			Body:    text,
		})
		if err != nil {
			r.logger.Error("email delivery failed", "error", err, "to", destination)
		}
	case agent.ChannelWeb:
		// Web replies ride the HTTP response; nothing to push.
	default:
		r.logger.Warn("delivery skipped: unknown channel", "channel", string(channel))
	}
}
