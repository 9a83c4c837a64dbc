package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var conversationColumns = []string{"id", "customer_phone", "dealership_id", "status", "qualification_score", "last_message_at", "created_at"}

func conversationRow(id, phone, dealershipID, status string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(conversationColumns).AddRow(id, phone, dealershipID, status, nil, now, now)
}

func TestPostgresStoreFindActiveConversation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id, customer_phone").
		WithArgs("+15551234567", "dealer-1").
		WillReturnRows(conversationRow("conv-1", "+15551234567", "dealer-1", "active"))

	conv, err := store.FindActiveConversation(context.Background(), "+15551234567", "dealer-1")
	if err != nil {
		t.Fatalf("find conversation: %v", err)
	}
	if conv == nil || conv.ID != "conv-1" || conv.Status != StatusActive {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if conv.QualificationScore != nil {
		t.Fatalf("expected nil score, got %v", *conv.QualificationScore)
	}
}

func TestPostgresStoreFindActiveConversationNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id, customer_phone").
		WithArgs("+15551234567", "dealer-1").
		WillReturnError(pgx.ErrNoRows)

	conv, err := store.FindActiveConversation(context.Background(), "+15551234567", "dealer-1")
	if err != nil {
		t.Fatalf("find conversation: %v", err)
	}
	if conv != nil {
		t.Fatalf("expected nil conversation, got %+v", conv)
	}
}

func TestPostgresStoreCreateConversation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(pgxmock.AnyArg(), "+15551234567", "dealer-1").
		WillReturnRows(conversationRow("conv-1", "+15551234567", "dealer-1", "active"))

	conv, err := store.CreateConversation(context.Background(), "+15551234567", "dealer-1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.ID != "conv-1" {
		t.Fatalf("unexpected conversation id %q", conv.ID)
	}
}

func TestPostgresStoreCreateConversationDuplicateResolves(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(pgxmock.AnyArg(), "+15551234567", "dealer-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery("SELECT id, customer_phone").
		WithArgs("+15551234567", "dealer-1").
		WillReturnRows(conversationRow("conv-winner", "+15551234567", "dealer-1", "active"))

	conv, err := store.CreateConversation(context.Background(), "+15551234567", "dealer-1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.ID != "conv-winner" {
		t.Fatalf("expected winner row, got %q", conv.ID)
	}
}

func TestPostgresStoreGetConversationNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id, customer_phone").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.GetConversation(context.Background(), "missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestPostgresStoreAppendMessage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	createdAt := time.Now()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(pgxmock.AnyArg(), "conv-1", "customer", "hello", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	mock.ExpectExec("UPDATE conversations").
		WithArgs("conv-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	msg, err := store.AppendMessage(context.Background(), "conv-1", RoleCustomer, "hello", map[string]any{"channel": "sms"})
	if err != nil {
		t.Fatalf("append message: %v", err)
	}
	if msg.ID == "" || msg.Role != RoleCustomer || !msg.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestPostgresStoreListMessages(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	now := time.Now()
	mock.ExpectQuery("SELECT id, conversation_id, role").
		WithArgs("conv-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "conversation_id", "role", "content", "metadata", "created_at"}).
			AddRow("msg-1", "conv-1", "customer", "hi", []byte(`{"channel":"sms"}`), now).
			AddRow("msg-2", "conv-1", "agent", "hello!", []byte(nil), now))

	msgs, err := store.ListMessages(context.Background(), "conv-1", 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Metadata["channel"] != "sms" {
		t.Fatalf("metadata not decoded: %+v", msgs[0].Metadata)
	}
	if msgs[1].Metadata != nil {
		t.Fatalf("expected nil metadata, got %+v", msgs[1].Metadata)
	}
}

func TestPostgresStoreListMessagesLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id, conversation_id, role").
		WithArgs("conv-1", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "conversation_id", "role", "content", "metadata", "created_at"}))

	if _, err := store.ListMessages(context.Background(), "conv-1", 5); err != nil {
		t.Fatalf("list messages: %v", err)
	}
}

func TestPostgresStoreSetStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("UPDATE conversations").
		WithArgs("escalated", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.SetStatus(context.Background(), "missing", StatusEscalated); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestPostgresStoreSetQualificationScore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("UPDATE conversations").
		WithArgs(72, "conv-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.SetQualificationScore(context.Background(), "conv-1", 72); err != nil {
		t.Fatalf("set score: %v", err)
	}
}

func TestPostgresStoreUpsertContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("INSERT INTO customer_context").
		WithArgs(pgxmock.AnyArg(), "conv-1", "vehicle_interest", pgxmock.AnyArg(), 0.9).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	value := &VehicleInterest{Make: "Toyota", Model: "Camry", Condition: "used"}
	if err := store.UpsertContext(context.Background(), "conv-1", CategoryVehicleInterest, value, 0.9); err != nil {
		t.Fatalf("upsert context: %v", err)
	}
}

func TestPostgresStoreLogInteraction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("INSERT INTO interaction_logs").
		WithArgs(pgxmock.AnyArg(), "conv-1", "escalation", true, pgxmock.AnyArg(), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.LogInteraction(context.Background(), "conv-1", InteractionEscalation, true, map[string]any{"reason": "frustrated"}, ""); err != nil {
		t.Fatalf("log interaction: %v", err)
	}
}

func TestPostgresStoreCloseStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("UPDATE conversations").
		WithArgs("7776000 seconds").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	closed, err := store.CloseStale(context.Background(), 90*24*time.Hour)
	if err != nil {
		t.Fatalf("close stale: %v", err)
	}
	if closed != 3 {
		t.Fatalf("expected 3 closed, got %d", closed)
	}
}
