package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chatstore"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping chat store db: %w", err)
	}
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, chatID string) ([]chatstore.Message, error) {
	query := `
SELECT chat_id, message_no, role, content, created_at
FROM chat_messages
WHERE chat_id = $1
ORDER BY message_no ASC`

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]chatstore.Message, 0)
	for rows.Next() {
		var msg chatstore.Message
		if err := rows.Scan(&msg.ChatID, &msg.MessageNo, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat message rows: %w", err)
	}
	return messages, nil
}

func (r *Repository) NextMessageNo(ctx context.Context, chatID string) (int, error) {
	query := `
SELECT COALESCE(MAX(message_no) + 1, 0)
FROM chat_messages
WHERE chat_id = $1`

	var next int
	if err := r.db.QueryRowContext(ctx, query, chatID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next message no: %w", err)
	}
	return next, nil
}

// AppendTurn writes the user message, assistant reply and SQL artifact
// with consecutive message numbers inside one transaction.
func (r *Repository) AppendTurn(ctx context.Context, chatID string, startNo int, turn chatstore.Turn) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := `
INSERT INTO chat_messages (chat_id, message_no, role, content)
VALUES ($1, $2, $3, $4)`

	entries := []struct {
		role    string
		content string
	}{
		{chatstore.RoleUser, turn.UserMessage},
		{chatstore.RoleSystem, turn.AssistantMessage},
		{chatstore.RoleSQL, turn.SQLArtifact},
	}
	for offset, entry := range entries {
		if _, err := tx.ExecContext(ctx, insert, chatID, startNo+offset, entry.role, entry.content); err != nil {
			return fmt.Errorf("insert %s message: %w", entry.role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turn tx: %w", err)
	}
	return nil
}

func (r *Repository) LastSQLArtifact(ctx context.Context, chatID string) (string, bool, error) {
	query := `
SELECT content
FROM chat_messages
WHERE chat_id = $1 AND role = $2
ORDER BY message_no DESC
LIMIT 1`

	var sqlText string
	if err := r.db.QueryRowContext(ctx, query, chatID, chatstore.RoleSQL).Scan(&sqlText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("last sql artifact: %w", err)
	}
	return sqlText, true, nil
}

func (r *Repository) InsertPreview(ctx context.Context, preview chatstore.Preview) error {
	query := `
INSERT INTO chat_previews (chat_id, user_id, title)
VALUES ($1, $2, $3)
ON CONFLICT (chat_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, preview.ChatID, preview.UserID, preview.Title); err != nil {
		return fmt.Errorf("insert chat preview: %w", err)
	}
	return nil
}

func (r *Repository) ListPreviews(ctx context.Context, userID string) ([]chatstore.Preview, error) {
	query := `
SELECT chat_id, user_id, title, created_at
FROM chat_previews
WHERE user_id = $1
ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat previews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	previews := make([]chatstore.Preview, 0)
	for rows.Next() {
		var preview chatstore.Preview
		if err := rows.Scan(&preview.ChatID, &preview.UserID, &preview.Title, &preview.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat preview row: %w", err)
		}
		previews = append(previews, preview)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat preview rows: %w", err)
	}
	return previews, nil
}

func (r *Repository) UserOwnsChat(ctx context.Context, userID, chatID string) (bool, error) {
	query := `
SELECT EXISTS (
    SELECT 1
    FROM chat_previews
    WHERE user_id = $1 AND chat_id = $2
)`

	var owns bool
	if err := r.db.QueryRowContext(ctx, query, userID, chatID).Scan(&owns); err != nil {
		return false, fmt.Errorf("check chat ownership: %w", err)
	}
	return owns, nil
}

// DeleteChat removes the preview entry and the chat's messages in one
// transaction. Deleting a chat the user does not own is ErrNotFound.
func (r *Repository) DeleteChat(ctx context.Context, userID, chatID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete chat tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
DELETE FROM chat_previews
WHERE user_id = $1 AND chat_id = $2`, userID, chatID)
	if err != nil {
		return fmt.Errorf("delete chat preview: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat preview rows affected: %w", err)
	}
	if affected == 0 {
		return chatstore.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM chat_messages
WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete chat tx: %w", err)
	}
	return nil
}
