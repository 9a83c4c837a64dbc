package dealership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	now := time.Now()
	mock.ExpectQuery("SELECT id, name, phone_number").
		WithArgs("dealer-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone_number", "email", "hours", "personality", "timezone", "created_at"}).
			AddRow("dealer-1", "Sunrise Motors", "+15550001111", "sales@sunrise.example", "Mon-Sat 9-7", "friendly", "America/Chicago", now))

	d, err := store.Get(context.Background(), "dealer-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Name != "Sunrise Motors" || d.Timezone != "America/Chicago" {
		t.Fatalf("unexpected dealership: %+v", d)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	mock.ExpectQuery("SELECT id, name, phone_number").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreGetByPhoneNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	now := time.Now()
	mock.ExpectQuery("SELECT id, name, phone_number").
		WithArgs("+15550001111").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone_number", "email", "hours", "personality", "timezone", "created_at"}).
			AddRow("dealer-1", "Sunrise Motors", "+15550001111", "", "", "", "", now))

	d, err := store.GetByPhoneNumber(context.Background(), "+15550001111")
	if err != nil {
		t.Fatalf("get by phone: %v", err)
	}
	if d.ID != "dealer-1" {
		t.Fatalf("unexpected dealership: %+v", d)
	}
}

func TestStoreFirstActiveUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	now := time.Now()
	mock.ExpectQuery("SELECT id, dealership_id, name").
		WithArgs("dealer-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "dealership_id", "name", "phone", "email", "role", "active", "created_at"}).
			AddRow("user-1", "dealer-1", "Sam Rivera", "+15550002222", "sam@sunrise.example", "sales", true, now))

	u, err := store.FirstActiveUser(context.Background(), "dealer-1")
	if err != nil {
		t.Fatalf("first active user: %v", err)
	}
	if u.ID != "user-1" || !u.Active {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestStoreFirstActiveUserNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	mock.ExpectQuery("SELECT id, dealership_id, name").
		WithArgs("dealer-1").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.FirstActiveUser(context.Background(), "dealer-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
