// Package chatstore persists chat transcripts and the per-user chat
// preview list. A chat is an ordered sequence of messages keyed by
// (chat_id, message_no); previews carry the sidebar title per user.
package chatstore

import (
	"context"
	"errors"
	"time"
)

// Message roles. RoleUser is what the person typed, RoleSystem is
// model-facing text (the seed prompt and model replies), RoleSQL is
// the generated query kept as an artifact and never replayed to the
// model.
const (
	RoleUser   = "USER"
	RoleSystem = "SYSTEM"
	RoleSQL    = "SQL"
)

var ErrNotFound = errors.New("chat not found")

// Message is one persisted transcript entry. MessageNo orders entries
// within a chat starting at 0 and is never reused.
type Message struct {
	ChatID    string
	MessageNo int
	Role      string
	Content   string
	CreatedAt time.Time
}

// Preview is one sidebar entry in a user's chat list.
type Preview struct {
	ChatID    string
	UserID    string
	Title     string
	CreatedAt time.Time
}

// Turn is the trio of messages appended after a successful exchange.
type Turn struct {
	UserMessage      string
	AssistantMessage string
	SQLArtifact      string
}

// Store is the durable chat transcript and preview repository.
type Store interface {
	// ListMessages returns a chat's messages ordered by message_no.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	// NextMessageNo returns one past the highest message_no, or 0
	// for a chat with no messages.
	NextMessageNo(ctx context.Context, chatID string) (int, error)
	// AppendTurn writes the user message, assistant reply and SQL
	// artifact as one transaction. A failure leaves no partial turn.
	AppendTurn(ctx context.Context, chatID string, startNo int, turn Turn) error
	// LastSQLArtifact returns the most recent SQL message for a
	// chat; found is false when the chat has none.
	LastSQLArtifact(ctx context.Context, chatID string) (sql string, found bool, err error)
	// InsertPreview records a chat in the user's sidebar list.
	InsertPreview(ctx context.Context, preview Preview) error
	ListPreviews(ctx context.Context, userID string) ([]Preview, error)
	// UserOwnsChat reports whether the chat appears in the user's
	// preview list.
	UserOwnsChat(ctx context.Context, userID, chatID string) (bool, error)
	// DeleteChat removes a chat's messages and its preview entry.
	DeleteChat(ctx context.Context, userID, chatID string) error
}
