package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vetriapp/vetri-backend/internal/domain"
)

// MessageStore manages chat messages in PostgreSQL. Ids are assigned by a
// bigserial sequence, so they are monotonic and never collide across
// concurrent inserts. It satisfies the relay's MessageStore contract.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a message store over the given database handle.
func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Create inserts a message and returns its assigned id and creation
// timestamp. The timestamp is set by the database and immutable thereafter.
func (s *MessageStore) Create(ctx context.Context, fromUser, text string) (int64, time.Time, error) {
	const query = `
		INSERT INTO chat_messages (from_user, text)
		VALUES ($1, $2)
		RETURNING id, created_at`

	var (
		id        int64
		createdAt time.Time
	)
	if err := s.db.QueryRowContext(ctx, query, fromUser, text).Scan(&id, &createdAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("store: insert message: %w", err)
	}
	return id, createdAt, nil
}

// MarkSeen flags every message whose id is in ids as seen. Ids that match no
// row are silently ignored; the update is a single atomic statement.
func (s *MessageStore) MarkSeen(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	const query = `UPDATE chat_messages SET seen = TRUE WHERE id = ANY($1)`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("store: mark seen: %w", err)
	}
	return nil
}

// MarkDelivered flags a single message as delivered.
func (s *MessageStore) MarkDelivered(ctx context.Context, id int64) error {
	const query = `UPDATE chat_messages SET delivered = TRUE WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("store: mark delivered: %w", err)
	}
	return nil
}

// Recent returns the limit most recently created messages in chronological
// order (oldest first), for the out-of-band catch-up endpoint.
func (s *MessageStore) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, from_user, text, created_at, delivered, seen
		FROM chat_messages
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// The query fetched newest-first; flip to oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// List returns all messages in chronological order.
func (s *MessageStore) List(ctx context.Context) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, from_user, text, created_at, delivered, seen
		FROM chat_messages
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Get returns a single message by id, or ErrNotFound.
func (s *MessageStore) Get(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	const query = `
		SELECT id, from_user, text, created_at, delivered, seen
		FROM chat_messages
		WHERE id = $1`

	var m domain.ChatMessage
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.FromUser, &m.Text, &m.CreatedAt, &m.Delivered, &m.Seen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return &m, nil
}

// UpdateFlags mutates the delivered and seen flags of a message. Sender, text
// and creation timestamp are immutable once persisted and cannot be changed
// through any store method.
func (s *MessageStore) UpdateFlags(ctx context.Context, id int64, delivered, seen bool) error {
	const query = `UPDATE chat_messages SET delivered = $2, seen = $3 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, delivered, seen)
	if err != nil {
		return fmt.Errorf("store: update message flags: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a message. This is an administrative action; the relay never
// deletes.
func (s *MessageStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]domain.ChatMessage, error) {
	msgs := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.FromUser, &m.Text, &m.CreatedAt, &m.Delivered, &m.Seen); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	return msgs, nil
}
