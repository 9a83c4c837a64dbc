package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/internal/dealership"
	"github.com/shiftly-ai/agent-backend/internal/delivery"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// StaffDirectory resolves who at a dealership should receive a notification.
type StaffDirectory interface {
	Get(ctx context.Context, id string) (*dealership.Dealership, error)
	FirstActiveUser(ctx context.Context, dealershipID string) (*dealership.User, error)
}

// NotificationHandler alerts dealership staff about escalations, confirmed
// bookings, and high-score leads. The job may name an explicit recipient
// phone; otherwise the first active dealership user is paged, falling back
// to the dealership's main line.
type NotificationHandler struct {
	staff  StaffDirectory
	sms    delivery.SMSSender
	email  delivery.EmailSender
	logger *logging.Logger
}

func NewNotificationHandler(staff StaffDirectory, sms delivery.SMSSender, email delivery.EmailSender, logger *logging.Logger) *NotificationHandler {
	if staff == nil {
		panic("jobs: staff directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationHandler{staff: staff, sms: sms, email: email, logger: logger}
}

func (h *NotificationHandler) Handle(ctx context.Context, env Envelope) error {
	var job agent.NotificationJob
	if err := json.Unmarshal(env.Payload, &job); err != nil {
		return fmt.Errorf("jobs: failed to decode notification job: %w", err)
	}
	if job.DealershipID == "" {
		return fmt.Errorf("jobs: notification job missing dealership id")
	}

	phone := strings.TrimSpace(job.Recipient)
	var emailTo, emailName string

	if phone == "" {
		user, err := h.staff.FirstActiveUser(ctx, job.DealershipID)
		switch {
		case err == nil:
			phone = user.Phone
			emailTo = user.Email
			emailName = user.Name
		case errors.Is(err, dealership.ErrNotFound):
			// No staff on file, fall through to the dealership main line.
		default:
			return fmt.Errorf("jobs: staff lookup failed: %w", err)
		}
	}

	if phone == "" && emailTo == "" {
		d, err := h.staff.Get(ctx, job.DealershipID)
		if err != nil {
			return fmt.Errorf("jobs: dealership lookup failed: %w", err)
		}
		phone = d.PhoneNumber
		emailTo = d.Email
		emailName = d.Name
	}

	body := notificationBody(job)
	sent := false

	if phone != "" && h.sms != nil {
		if err := h.sms.SendSMS(ctx, phone, body); err != nil {
			h.logger.Warn("notification sms failed", "error", err, "type", job.Type, "dealership_id", job.DealershipID)
		} else {
			sent = true
		}
	}

	if emailTo != "" && h.email != nil {
		msg := delivery.EmailMessage{
			To:      emailTo,
			ToName:  emailName,
			Subject: notificationSubject(job.Type),
			Body:    body,
		}
		if err := h.email.Send(ctx, msg); err != nil {
			h.logger.Warn("notification email failed", "error", err, "type", job.Type, "dealership_id", job.DealershipID)
		} else {
			sent = true
		}
	}

	if !sent {
		return fmt.Errorf("jobs: notification %q undeliverable for dealership %s", job.Type, job.DealershipID)
	}

	h.logger.Info("staff notified", "type", job.Type, "dealership_id", job.DealershipID, "conversation_id", job.ConversationID)
	return nil
}

func notificationSubject(t agent.NotificationType) string {
	switch t {
	case agent.NotifyEscalation:
		return "Customer needs a human"
	case agent.NotifyBookingConfirmed:
		return "Test drive booked"
	case agent.NotifyHighScoreLead:
		return "Hot lead alert"
	default:
		return "Lead update"
	}
}

func notificationBody(job agent.NotificationJob) string {
	meta := func(key string) string {
		if job.Metadata == nil {
			return ""
		}
		v, _ := job.Metadata[key].(string)
		return v
	}

	switch job.Type {
	case agent.NotifyEscalation:
		phone := meta("customer_phone")
		if phone == "" {
			phone = "a customer"
		}
		return fmt.Sprintf("%s asked to speak with a person. Conversation %s is waiting for you.", phone, job.ConversationID)
	case agent.NotifyBookingConfirmed:
		msg := fmt.Sprintf("Test drive booked for %s", meta("customer_phone"))
		if v := meta("vehicle_interest"); v != "" {
			msg += " (" + v + ")"
		}
		if at := meta("scheduled_at"); at != "" {
			msg += " at " + at
		}
		return msg + "."
	case agent.NotifyHighScoreLead:
		score := ""
		if job.Metadata != nil {
			if s, ok := job.Metadata["score"].(float64); ok {
				score = fmt.Sprintf(" (score %d)", int(s))
			}
		}
		return fmt.Sprintf("High-intent lead%s in conversation %s. Worth a call today.", score, job.ConversationID)
	default:
		return fmt.Sprintf("Update on conversation %s.", job.ConversationID)
	}
}
