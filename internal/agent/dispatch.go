package agent

import "context"

// Queue names for background jobs.
const (
	QueueCRMSync       = "crm-sync"
	QueueBooking       = "test-drive-booking"
	QueueNotifications = "notifications"
)

// Dispatch thresholds applied after each agent turn.
const (
	crmSyncScoreThreshold  = 60
	highScoreLeadThreshold = 80
	bookingPreferredText   = "today"
	bookingPreferredWeek   = "this_week"
)

// CRMSyncAction distinguishes contact creation from updates.
type CRMSyncAction string

const (
	CRMSyncCreate CRMSyncAction = "create"
	CRMSyncUpdate CRMSyncAction = "update"
)

// CRMSyncJob asks the CRM worker to push a lead into the dealership's CRM.
type CRMSyncJob struct {
	ConversationID     string           `json:"conversation_id"`
	DealershipID       string           `json:"dealership_id"`
	CustomerPhone      string           `json:"customer_phone"`
	Action             CRMSyncAction    `json:"action"`
	QualificationScore int              `json:"qualification_score,omitempty"`
	VehicleInterest    *VehicleInterest `json:"vehicle_interest,omitempty"`
}

// BookingJob asks the booking worker to create a test-drive booking.
type BookingJob struct {
	ConversationID  string `json:"conversation_id"`
	DealershipID    string `json:"dealership_id"`
	CustomerPhone   string `json:"customer_phone"`
	VehicleInterest string `json:"vehicle_interest,omitempty"`
	// PreferredDate is either an RFC3339 timestamp from a detected booking
	// intent or a relative marker ("today", "this_week") from dispatch rules.
	PreferredDate string `json:"preferred_date"`
}

// NotificationType labels a notification job.
type NotificationType string

const (
	NotifyEscalation       NotificationType = "escalation"
	NotifyBookingConfirmed NotificationType = "booking_confirmed"
	NotifyHighScoreLead    NotificationType = "high_score_lead"
)

// NotificationJob asks the notification worker to alert dealership staff.
type NotificationJob struct {
	Type           NotificationType `json:"type"`
	ConversationID string           `json:"conversation_id"`
	DealershipID   string           `json:"dealership_id"`
	Recipient      string           `json:"recipient,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// Dispatcher enqueues background jobs. Dispatch is best-effort from the
// pipeline's perspective: the orchestrator logs enqueue failures as warnings
// and never fails the customer-facing turn over one.
type Dispatcher interface {
	Enqueue(ctx context.Context, queue string, payload any) error
}
