package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAdapter(ts *httptest.Server) *GoHighLevelAdapter {
	return NewGoHighLevelAdapter(Config{
		BaseURL:    ts.URL,
		APIKey:     "key",
		LocationID: "loc_1",
		CalendarID: "cal_1",
	}, nil)
}

func TestFindContact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/contacts/lookup") {
			http.Error(w, "wrong path", http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("phone") != "+15555550123" {
			http.Error(w, "missing phone", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "missing auth", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]any{{"id": "contact_1"}},
		})
	}))
	defer ts.Close()

	id, err := newTestAdapter(ts).FindContact(context.Background(), "+15555550123")
	if err != nil {
		t.Fatalf("FindContact error: %v", err)
	}
	if id != "contact_1" {
		t.Fatalf("unexpected contact id %q", id)
	}
}

func TestFindContactNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	id, err := newTestAdapter(ts).FindContact(context.Background(), "+15555550123")
	if err != nil {
		t.Fatalf("FindContact error: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}

func TestCreateContact(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/contacts/" {
			http.Error(w, "wrong route", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"contact": map[string]any{"id": "contact_9"}})
	}))
	defer ts.Close()

	id, err := newTestAdapter(ts).CreateContact(context.Background(), Contact{
		Phone:        "+15555550123",
		Tags:         []string{"ai-lead"},
		CustomFields: map[string]any{"qualification_score": 72},
	})
	if err != nil {
		t.Fatalf("CreateContact error: %v", err)
	}
	if id != "contact_9" {
		t.Fatalf("unexpected contact id %q", id)
	}
	if got["phone"] != "+15555550123" || got["locationId"] != "loc_1" {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestCreateContactEmptyID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"contact": map[string]any{}})
	}))
	defer ts.Close()

	if _, err := newTestAdapter(ts).CreateContact(context.Background(), Contact{Phone: "+1555"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestBookAppointment(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments/" {
			http.Error(w, "wrong route", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "appt_1"})
	}))
	defer ts.Close()

	start := time.Date(2026, 2, 21, 15, 0, 0, 0, time.UTC)
	id, err := newTestAdapter(ts).BookAppointment(context.Background(), Appointment{
		ContactID: "contact_1",
		Title:     "Test drive",
		StartAt:   start,
		EndAt:     start.Add(30 * time.Minute),
		Timezone:  "America/Chicago",
	})
	if err != nil {
		t.Fatalf("BookAppointment error: %v", err)
	}
	if id != "appt_1" {
		t.Fatalf("unexpected appointment id %q", id)
	}
	if got["calendarId"] != "cal_1" || got["contactId"] != "contact_1" {
		t.Fatalf("unexpected request body: %+v", got)
	}
	if got["selectedTimezone"] != "America/Chicago" {
		t.Fatalf("timezone not sent: %+v", got)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"msg":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	err := newTestAdapter(ts).UpdateContact(context.Background(), "contact_1", Contact{Phone: "+1555"})
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	a := NewGoHighLevelAdapter(Config{BaseURL: "http://localhost"}, nil)
	if _, err := a.FindContact(context.Background(), "+1555"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestFactory(t *testing.T) {
	if _, err := New("gohighlevel", Config{APIKey: "key"}, nil); err != nil {
		t.Fatalf("factory error: %v", err)
	}
	if _, err := New("salesforce", Config{}, nil); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}
