package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is a persisted chat message. Roll is the raw dice payload, nil for
// plain messages.
type Message struct {
	ID          int64
	GameID      int64
	SenderID    int64
	SenderName  string
	RecipientID *int64
	Content     string
	Roll        json.RawMessage
	CreatedAt   time.Time
}

// MessageRepository provides chat message persistence.
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a MessageRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert persists a chat message and fills in its ID and CreatedAt.
//
// Precondition: m.GameID and m.SenderID must be > 0; m.Content must be non-empty.
// Postcondition: m.ID and m.CreatedAt are set from the database on success.
func (r *MessageRepository) Insert(ctx context.Context, m *Message) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (game_id, sender_id, sender_name, recipient_id, content, roll)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		m.GameID, m.SenderID, m.SenderName, m.RecipientID, m.Content, m.Roll,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListRecent returns the newest messages of a game in ascending ID order.
// Consumed by the history endpoint of the REST surface, not by the sync core.
//
// Precondition: gameID must be > 0; limit must be >= 1.
// Postcondition: Returns at most limit messages (may be empty) or a non-nil error.
func (r *MessageRepository) ListRecent(ctx context.Context, gameID int64, limit int) ([]Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, game_id, sender_id, sender_name, recipient_id, content, roll, created_at
		FROM (
			SELECT id, game_id, sender_id, sender_name, recipient_id, content, roll, created_at
			FROM messages WHERE game_id = $1 ORDER BY id DESC LIMIT $2
		) latest ORDER BY id ASC`,
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.GameID, &m.SenderID, &m.SenderName,
			&m.RecipientID, &m.Content, &m.Roll, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
