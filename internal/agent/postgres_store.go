package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgDB is the slice of pgxpool.Pool the store needs. Declared locally so
// tests can substitute pgxmock.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db pgDB
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(db pgDB) *PostgresStore {
	if db == nil {
		panic("agent: pgx pool required")
	}
	return &PostgresStore{db: db}
}

// FindActiveConversation returns the open conversation for the pair, or
// (nil, nil) when none exists. human_active conversations count as open.
func (s *PostgresStore) FindActiveConversation(ctx context.Context, customerPhone, dealershipID string) (*Conversation, error) {
	query := `
		SELECT id, customer_phone, dealership_id, status, qualification_score, last_message_at, created_at
		FROM conversations
		WHERE customer_phone = $1 AND dealership_id = $2 AND status IN ('active', 'human_active')
		ORDER BY created_at DESC
		LIMIT 1
	`
	conv, err := s.scanConversation(s.db.QueryRow(ctx, query, customerPhone, dealershipID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("agent: find conversation failed: %w", err)
	}
	return conv, nil
}

// CreateConversation inserts a new active conversation. A partial unique
// index on (customer_phone, dealership_id) over open conversations closes
// the race between concurrent first messages: on a duplicate-key error the
// loser re-reads the winner's row.
func (s *PostgresStore) CreateConversation(ctx context.Context, customerPhone, dealershipID string) (*Conversation, error) {
	id := uuid.New()
	query := `
		INSERT INTO conversations (id, customer_phone, dealership_id, status, last_message_at)
		VALUES ($1, $2, $3, 'active', NOW())
		RETURNING id, customer_phone, dealership_id, status, qualification_score, last_message_at, created_at
	`
	conv, err := s.scanConversation(s.db.QueryRow(ctx, query, id, customerPhone, dealershipID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, findErr := s.FindActiveConversation(ctx, customerPhone, dealershipID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("agent: create conversation failed: %w", err)
	}
	return conv, nil
}

// GetConversation fetches one conversation by id.
func (s *PostgresStore) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	query := `
		SELECT id, customer_phone, dealership_id, status, qualification_score, last_message_at, created_at
		FROM conversations
		WHERE id = $1
	`
	conv, err := s.scanConversation(s.db.QueryRow(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("agent: get conversation failed: %w", err)
	}
	return conv, nil
}

// AppendMessage inserts one message and bumps the conversation's
// last-activity timestamp.
func (s *PostgresStore) AppendMessage(ctx context.Context, conversationID string, role MessageRole, content string, metadata map[string]any) (*Message, error) {
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("agent: marshal message metadata: %w", err)
		}
	}

	id := uuid.New()
	query := `
		INSERT INTO messages (id, conversation_id, role, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := s.db.QueryRow(ctx, query, id, conversationID, string(role), content, metaJSON).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("agent: insert message failed: %w", err)
	}

	touch := `UPDATE conversations SET last_message_at = NOW() WHERE id = $1`
	if _, err := s.db.Exec(ctx, touch, conversationID); err != nil {
		return nil, fmt.Errorf("agent: touch conversation failed: %w", err)
	}

	return &Message{
		ID:             id.String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      createdAt,
	}, nil
}

// ListMessages returns messages oldest-first. limit <= 0 returns all.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `
		SELECT id, conversation_id, role, content, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("agent: list messages failed: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m        Message
			role     string
			metaJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &metaJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("agent: scan message failed: %w", err)
		}
		m.Role = MessageRole(role)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
				return nil, fmt.Errorf("agent: unmarshal message metadata: %w", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agent: iterate messages failed: %w", err)
	}
	return messages, nil
}

// SetStatus updates the conversation lifecycle state.
func (s *PostgresStore) SetStatus(ctx context.Context, conversationID string, status ConversationStatus) error {
	query := `UPDATE conversations SET status = $1 WHERE id = $2`
	tag, err := s.db.Exec(ctx, query, string(status), conversationID)
	if err != nil {
		return fmt.Errorf("agent: set status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SetQualificationScore stores the recomputed lead score.
func (s *PostgresStore) SetQualificationScore(ctx context.Context, conversationID string, score int) error {
	query := `UPDATE conversations SET qualification_score = $1 WHERE id = $2`
	tag, err := s.db.Exec(ctx, query, score, conversationID)
	if err != nil {
		return fmt.Errorf("agent: set score failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// UpsertContext overwrites the stored value for one context category.
// Re-extraction replaces, never merges.
func (s *PostgresStore) UpsertContext(ctx context.Context, conversationID string, category ContextCategory, value any, confidence float64) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("agent: marshal context value: %w", err)
	}

	query := `
		INSERT INTO customer_context (id, conversation_id, context_type, value, confidence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id, context_type)
		DO UPDATE SET value = EXCLUDED.value, confidence = EXCLUDED.confidence, updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), conversationID, string(category), valueJSON, confidence); err != nil {
		return fmt.Errorf("agent: upsert context failed: %w", err)
	}
	return nil
}

// LogInteraction records one pipeline decision for auditing.
func (s *PostgresStore) LogInteraction(ctx context.Context, conversationID string, kind InteractionType, success bool, metadata map[string]any, errMsg string) error {
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("agent: marshal interaction metadata: %w", err)
		}
	}

	query := `
		INSERT INTO interaction_logs (id, conversation_id, interaction_type, success, metadata, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), conversationID, string(kind), success, metaJSON, nullableString(errMsg)); err != nil {
		return fmt.Errorf("agent: insert interaction log failed: %w", err)
	}
	return nil
}

// CloseStale closes conversations idle for longer than age.
func (s *PostgresStore) CloseStale(ctx context.Context, age time.Duration) (int64, error) {
	query := `
		UPDATE conversations
		SET status = 'closed'
		WHERE status IN ('active', 'human_active', 'escalated')
		  AND last_message_at < NOW() - $1::interval
	`
	tag, err := s.db.Exec(ctx, query, fmt.Sprintf("%d seconds", int64(age.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("agent: close stale conversations failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ErrConversationNotFound is returned when a conversation id resolves to
// no row.
var ErrConversationNotFound = errors.New("agent: conversation not found")

func (s *PostgresStore) scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		conv   Conversation
		status string
		score  *int
	)
	if err := row.Scan(&conv.ID, &conv.CustomerPhone, &conv.DealershipID, &status, &score, &conv.LastMessageAt, &conv.CreatedAt); err != nil {
		return nil, err
	}
	conv.Status = ConversationStatus(status)
	conv.QualificationScore = score
	return &conv, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
