package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Contact is the lead record pushed into the dealership's CRM.
type Contact struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Tags      []string
	// CustomFields carries qualification score and vehicle interest.
	CustomFields map[string]any
}

// Note is a timeline entry attached to a CRM contact.
type Note struct {
	Body      string
	Timestamp time.Time
}

// Appointment is a test-drive slot pushed to the CRM calendar.
type Appointment struct {
	ContactID string
	Title     string
	StartAt   time.Time
	EndAt     time.Time
	Timezone  string
}

// Config holds provider credentials.
type Config struct {
	BaseURL    string
	APIKey     string
	LocationID string
	CalendarID string
}

// Adapter abstracts the dealership's CRM. FindContact returns ("", nil) when
// no contact matches the phone number.
type Adapter interface {
	FindContact(ctx context.Context, phone string) (string, error)
	CreateContact(ctx context.Context, contact Contact) (string, error)
	UpdateContact(ctx context.Context, contactID string, contact Contact) error
	AddNote(ctx context.Context, contactID string, note Note) error
	BookAppointment(ctx context.Context, appt Appointment) (string, error)
}

// New returns the adapter for the configured provider.
func New(provider string, cfg Config, logger *logging.Logger) (Adapter, error) {
	switch provider {
	case "gohighlevel":
		return NewGoHighLevelAdapter(cfg, logger), nil
	default:
		return nil, fmt.Errorf("crm: unsupported provider %q", provider)
	}
}
