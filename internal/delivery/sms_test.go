package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTwilioSendSMS(t *testing.T) {
	var form map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer ts.Close()

	s := NewTwilioSender("AC123", "token", "+15550001111", nil)
	s.baseURL = ts.URL

	if err := s.SendSMS(context.Background(), "+15555550123", "hello"); err != nil {
		t.Fatalf("SendSMS error: %v", err)
	}
	if got := form["To"]; len(got) != 1 || got[0] != "+15555550123" {
		t.Fatalf("unexpected To: %v", form)
	}
	if got := form["From"]; len(got) != 1 || got[0] != "+15550001111" {
		t.Fatalf("unexpected From: %v", form)
	}
}

func TestTwilioSendSMSNoRetryOnBadRequest(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"code":21211,"message":"Invalid 'To' number","status":400}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	s := NewTwilioSender("AC123", "token", "+15550001111", nil)
	s.baseURL = ts.URL

	err := s.SendSMS(context.Background(), "bogus", "hello")
	if err == nil || !strings.Contains(err.Error(), "code 21211") {
		t.Fatalf("expected twilio error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestTwilioSendSMSRetriesRateLimit(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, `{"code":20429,"message":"Too Many Requests","status":429}`, http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer ts.Close()

	s := NewTwilioSender("AC123", "token", "+15550001111", nil)
	s.baseURL = ts.URL

	if err := s.SendSMS(context.Background(), "+15555550123", "hello"); err != nil {
		t.Fatalf("SendSMS error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestTwilioSendSMSValidation(t *testing.T) {
	s := NewTwilioSender("", "", "+15550001111", nil)
	if err := s.SendSMS(context.Background(), "+1555", "hi"); err == nil {
		t.Fatal("expected credentials error")
	}

	s = NewTwilioSender("AC123", "token", "+15550001111", nil)
	if err := s.SendSMS(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected to-required error")
	}
	if err := s.SendSMS(context.Background(), "+1555", "  "); err == nil {
		t.Fatal("expected body-required error")
	}
}
