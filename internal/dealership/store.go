package dealership

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no dealership or user matches.
var ErrNotFound = errors.New("dealership: not found")

type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads dealership profiles and staff from PostgreSQL.
type Store struct {
	db pgDB
}

// NewStore initializes a dealership store backed by pgxpool.
func NewStore(db pgDB) *Store {
	if db == nil {
		panic("dealership: pgx pool required")
	}
	return &Store{db: db}
}

const dealershipColumns = `id, name, phone_number, COALESCE(email, ''), COALESCE(hours, ''), COALESCE(personality, ''), COALESCE(timezone, ''), created_at`

// Get fetches one dealership by id.
func (s *Store) Get(ctx context.Context, id string) (*Dealership, error) {
	query := `SELECT ` + dealershipColumns + ` FROM dealerships WHERE id = $1`
	return s.scan(s.db.QueryRow(ctx, query, id))
}

// GetByPhoneNumber resolves the dealership that owns an inbound SMS number.
func (s *Store) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*Dealership, error) {
	query := `SELECT ` + dealershipColumns + ` FROM dealerships WHERE phone_number = $1`
	return s.scan(s.db.QueryRow(ctx, query, phoneNumber))
}

// FirstActiveUser returns the first active staff member for escalation
// assignment, oldest account first.
func (s *Store) FirstActiveUser(ctx context.Context, dealershipID string) (*User, error) {
	query := `
		SELECT id, dealership_id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(role, ''), active, created_at
		FROM dealership_users
		WHERE dealership_id = $1 AND active
		ORDER BY created_at ASC
		LIMIT 1
	`
	var u User
	err := s.db.QueryRow(ctx, query, dealershipID).
		Scan(&u.ID, &u.DealershipID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("dealership: first active user failed: %w", err)
	}
	return &u, nil
}

func (s *Store) scan(row pgx.Row) (*Dealership, error) {
	var d Dealership
	err := row.Scan(&d.ID, &d.Name, &d.PhoneNumber, &d.Email, &d.Hours, &d.Personality, &d.Timezone, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("dealership: lookup failed: %w", err)
	}
	return &d, nil
}
