// Package inbox stores the portal's local copy of relayed messages.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/twopelicans/portal/internal/model"
)

// ErrMessageNotFound is returned when no message matches owner and id.
var ErrMessageNotFound = errors.New("message not found")

// DefaultListLimit caps ListByOwner when the caller passes no limit.
const DefaultListLimit = 50

// Store handles message database operations.
type Store struct {
	db *sql.DB
}

// NewStore creates a message store on an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL through database/sql and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Create stores a message.
func (s *Store) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (
			id, owner_id, subject, content, sender_company,
			sender_email, direction, external_id, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.OwnerID,
		msg.Subject,
		msg.Content,
		msg.SenderCompany,
		msg.SenderEmail,
		string(msg.Direction),
		sql.NullString{String: msg.ExternalID, Valid: msg.ExternalID != ""},
		msg.IsRead,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListByOwner returns an owner's messages, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, owner_id, subject, content, sender_company,
			   sender_email, direction, external_id, is_read, created_at
		FROM messages
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages by owner: %w", err)
	}
	defer rows.Close()

	messages := make([]*model.Message, 0)
	for rows.Next() {
		var msg model.Message
		var direction string
		var externalID sql.NullString

		if err := rows.Scan(
			&msg.ID,
			&msg.OwnerID,
			&msg.Subject,
			&msg.Content,
			&msg.SenderCompany,
			&msg.SenderEmail,
			&direction,
			&externalID,
			&msg.IsRead,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Direction = model.Direction(direction)
		msg.ExternalID = externalID.String
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// MarkRead flags one of the owner's messages as read.
func (s *Store) MarkRead(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
