package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Booking is one persisted test-drive request.
type Booking struct {
	ID              string
	ConversationID  string
	DealershipID    string
	CustomerPhone   string
	VehicleInterest string
	ScheduledAt     time.Time
	Status          string
	CreatedAt       time.Time
}

// BookingStore persists test-drive bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, b Booking) (*Booking, error)
}

type bookingDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBookingStore stores bookings in the bookings table.
type PostgresBookingStore struct {
	db     bookingDB
	logger *logging.Logger
}

func NewPostgresBookingStore(db bookingDB, logger *logging.Logger) *PostgresBookingStore {
	if db == nil {
		panic("jobs: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresBookingStore{db: db, logger: logger}
}

func (s *PostgresBookingStore) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	query := `
		INSERT INTO bookings (conversation_id, dealership_id, customer_phone, vehicle_interest, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	if b.Status == "" {
		b.Status = "pending"
	}
	err := s.db.QueryRow(ctx, query,
		b.ConversationID,
		b.DealershipID,
		b.CustomerPhone,
		b.VehicleInterest,
		b.ScheduledAt,
		b.Status,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("jobs: failed to insert booking: %w", err)
	}
	return &b, nil
}
