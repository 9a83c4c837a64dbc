package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/internal/crm"
	"github.com/shiftly-ai/agent-backend/internal/delivery"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const defaultTestDriveDuration = 45 * time.Minute

// BookingHandler turns a booking job into a persisted test-drive slot,
// confirms it to the customer over SMS, and mirrors the appointment into
// the CRM calendar when one is configured. Only the database write is
// load-bearing; everything after it is best effort.
type BookingHandler struct {
	store      BookingStore
	sms        delivery.SMSSender
	crm        crm.Adapter
	dispatcher agent.Dispatcher
	logger     *logging.Logger
	now        func() time.Time
}

// BookingOption customizes optional booking collaborators.
type BookingOption func(*BookingHandler)

// WithBookingSMS wires a confirmation SMS sender.
func WithBookingSMS(sender delivery.SMSSender) BookingOption {
	return func(h *BookingHandler) { h.sms = sender }
}

// WithBookingCRM mirrors confirmed bookings into the CRM calendar.
func WithBookingCRM(adapter crm.Adapter) BookingOption {
	return func(h *BookingHandler) { h.crm = adapter }
}

// WithBookingNotifier enqueues a booking_confirmed staff notification
// after each booking.
func WithBookingNotifier(dispatcher agent.Dispatcher) BookingOption {
	return func(h *BookingHandler) { h.dispatcher = dispatcher }
}

// WithBookingClock overrides the clock used to resolve relative dates.
func WithBookingClock(now func() time.Time) BookingOption {
	return func(h *BookingHandler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewBookingHandler(store BookingStore, logger *logging.Logger, opts ...BookingOption) *BookingHandler {
	if store == nil {
		panic("jobs: booking store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &BookingHandler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BookingHandler) Handle(ctx context.Context, env Envelope) error {
	var job agent.BookingJob
	if err := json.Unmarshal(env.Payload, &job); err != nil {
		return fmt.Errorf("jobs: failed to decode booking job: %w", err)
	}
	if job.ConversationID == "" || job.CustomerPhone == "" {
		return fmt.Errorf("jobs: booking job missing conversation or phone")
	}

	scheduledAt := resolvePreferredDate(job.PreferredDate, h.now().UTC())

	booking, err := h.store.CreateBooking(ctx, Booking{
		ConversationID:  job.ConversationID,
		DealershipID:    job.DealershipID,
		CustomerPhone:   job.CustomerPhone,
		VehicleInterest: job.VehicleInterest,
		ScheduledAt:     scheduledAt,
		Status:          "pending",
	})
	if err != nil {
		return err
	}

	if h.sms != nil {
		body := confirmationMessage(booking)
		if err := h.sms.SendSMS(ctx, job.CustomerPhone, body); err != nil {
			h.logger.Warn("booking confirmation sms failed", "error", err, "booking_id", booking.ID)
		}
	}

	if h.crm != nil {
		h.mirrorToCRM(ctx, job, booking)
	}

	if h.dispatcher != nil {
		notification := agent.NotificationJob{
			Type:           agent.NotifyBookingConfirmed,
			ConversationID: job.ConversationID,
			DealershipID:   job.DealershipID,
			Metadata: map[string]any{
				"booking_id":       booking.ID,
				"customer_phone":   job.CustomerPhone,
				"scheduled_at":     booking.ScheduledAt.Format(time.RFC3339),
				"vehicle_interest": job.VehicleInterest,
			},
		}
		if err := h.dispatcher.Enqueue(ctx, agent.QueueNotifications, notification); err != nil {
			h.logger.Warn("booking notification enqueue failed", "error", err, "booking_id", booking.ID)
		}
	}

	h.logger.Info("test drive booked",
		"booking_id", booking.ID,
		"conversation_id", job.ConversationID,
		"scheduled_at", booking.ScheduledAt,
	)
	return nil
}

func (h *BookingHandler) mirrorToCRM(ctx context.Context, job agent.BookingJob, booking *Booking) {
	contactID, err := h.crm.FindContact(ctx, job.CustomerPhone)
	if err != nil {
		h.logger.Warn("crm lookup for booking failed", "error", err, "booking_id", booking.ID)
		return
	}
	if contactID == "" {
		contactID, err = h.crm.CreateContact(ctx, crm.Contact{
			Phone: job.CustomerPhone,
			Tags:  []string{"ai-lead"},
		})
		if err != nil {
			h.logger.Warn("crm contact create for booking failed", "error", err, "booking_id", booking.ID)
			return
		}
	}

	title := "Test drive"
	if job.VehicleInterest != "" {
		title = "Test drive: " + job.VehicleInterest
	}
	if _, err := h.crm.BookAppointment(ctx, crm.Appointment{
		ContactID: contactID,
		Title:     title,
		StartAt:   booking.ScheduledAt,
		EndAt:     booking.ScheduledAt.Add(defaultTestDriveDuration),
	}); err != nil {
		h.logger.Warn("crm appointment create failed", "error", err, "booking_id", booking.ID)
	}
}

// resolvePreferredDate maps a job's preferred date onto a concrete slot.
// Booking-intent jobs carry an RFC3339 timestamp; dispatch-rule jobs carry
// the relative markers "today" or "this_week".
func resolvePreferredDate(preferred string, now time.Time) time.Time {
	if ts, err := time.Parse(time.RFC3339, preferred); err == nil {
		return ts
	}

	switch preferred {
	case "today":
		return now.Truncate(time.Hour).Add(time.Hour)
	case "this_week":
		return nextSlotAt(now.AddDate(0, 0, 2))
	default:
		return nextSlotAt(now.AddDate(0, 0, 1))
	}
}

// nextSlotAt pins a day onto the 10:00 showroom slot.
func nextSlotAt(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, day.Location())
}

func confirmationMessage(b *Booking) string {
	when := b.ScheduledAt.Format("Monday, Jan 2 at 3:04 PM")
	if b.VehicleInterest != "" {
		return fmt.Sprintf("You're all set! Your test drive for the %s is scheduled for %s. Reply here if you need to reschedule.", b.VehicleInterest, when)
	}
	return fmt.Sprintf("You're all set! Your test drive is scheduled for %s. Reply here if you need to reschedule.", when)
}
