package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const (
	defaultGHLBaseURL = "https://rest.gohighlevel.com/v1"
	defaultTimeout    = 20 * time.Second
)

// GoHighLevelAdapter talks to the GoHighLevel v1 REST API.
type GoHighLevelAdapter struct {
	baseURL    string
	apiKey     string
	locationID string
	calendarID string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewGoHighLevelAdapter creates a GoHighLevel CRM adapter.
func NewGoHighLevelAdapter(cfg Config, logger *logging.Logger) *GoHighLevelAdapter {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGHLBaseURL
	}
	return &GoHighLevelAdapter{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		locationID: cfg.LocationID,
		calendarID: cfg.CalendarID,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

type ghlContactEnvelope struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

type ghlLookupResponse struct {
	Contacts []struct {
		ID string `json:"id"`
	} `json:"contacts"`
}

type ghlAppointmentResponse struct {
	ID string `json:"id"`
}

// FindContact looks a contact up by phone number.
func (a *GoHighLevelAdapter) FindContact(ctx context.Context, phone string) (string, error) {
	query := url.Values{"phone": {phone}}
	var out ghlLookupResponse
	status, err := a.do(ctx, http.MethodGet, "/contacts/lookup?"+query.Encode(), nil, &out)
	if err != nil {
		if status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	if len(out.Contacts) == 0 {
		return "", nil
	}
	return out.Contacts[0].ID, nil
}

// CreateContact creates a contact and returns its CRM id.
func (a *GoHighLevelAdapter) CreateContact(ctx context.Context, contact Contact) (string, error) {
	var out ghlContactEnvelope
	if _, err := a.do(ctx, http.MethodPost, "/contacts/", a.contactBody(contact), &out); err != nil {
		return "", err
	}
	if out.Contact.ID == "" {
		return "", fmt.Errorf("crm: create contact returned empty id")
	}
	a.logger.Info("crm contact created", "contact_id", out.Contact.ID)
	return out.Contact.ID, nil
}

// UpdateContact overwrites the contact's lead fields.
func (a *GoHighLevelAdapter) UpdateContact(ctx context.Context, contactID string, contact Contact) error {
	if contactID == "" {
		return fmt.Errorf("crm: contact id required")
	}
	_, err := a.do(ctx, http.MethodPut, "/contacts/"+contactID, a.contactBody(contact), nil)
	return err
}

// AddNote appends a note to the contact timeline.
func (a *GoHighLevelAdapter) AddNote(ctx context.Context, contactID string, note Note) error {
	if contactID == "" {
		return fmt.Errorf("crm: contact id required")
	}
	body := map[string]any{"body": note.Body}
	if !note.Timestamp.IsZero() {
		body["createdAt"] = note.Timestamp.UTC().Format(time.RFC3339)
	}
	_, err := a.do(ctx, http.MethodPost, "/contacts/"+contactID+"/notes/", body, nil)
	return err
}

// BookAppointment creates a calendar appointment for the contact.
func (a *GoHighLevelAdapter) BookAppointment(ctx context.Context, appt Appointment) (string, error) {
	if appt.ContactID == "" {
		return "", fmt.Errorf("crm: contact id required")
	}
	body := map[string]any{
		"calendarId": a.calendarID,
		"contactId":  appt.ContactID,
		"title":      appt.Title,
		"startTime":  appt.StartAt.UTC().Format(time.RFC3339),
		"endTime":    appt.EndAt.UTC().Format(time.RFC3339),
	}
	if appt.Timezone != "" {
		body["selectedTimezone"] = appt.Timezone
	}
	var out ghlAppointmentResponse
	if _, err := a.do(ctx, http.MethodPost, "/appointments/", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (a *GoHighLevelAdapter) contactBody(contact Contact) map[string]any {
	body := map[string]any{
		"phone":      contact.Phone,
		"locationId": a.locationID,
	}
	if contact.FirstName != "" {
		body["firstName"] = contact.FirstName
	}
	if contact.LastName != "" {
		body["lastName"] = contact.LastName
	}
	if contact.Email != "" {
		body["email"] = contact.Email
	}
	if len(contact.Tags) > 0 {
		body["tags"] = contact.Tags
	}
	if len(contact.CustomFields) > 0 {
		body["customField"] = contact.CustomFields
	}
	return body
}

func (a *GoHighLevelAdapter) do(ctx context.Context, method, path string, payload any, out any) (int, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return 0, fmt.Errorf("crm: missing api key")
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("crm: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("crm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("crm: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return resp.StatusCode, fmt.Errorf("crm: status %d: %s", resp.StatusCode, msg)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("crm: unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
