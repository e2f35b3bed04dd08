package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chatstore"
)

// HistoryEntry is one display row of a chat transcript. A sql-artifact
// row carries the SQL text plus its re-executed records instead of
// natural language.
type HistoryEntry struct {
	MessageNo int              `json:"message_no"`
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	SQLQuery  string           `json:"sql_query,omitempty"`
	Results   []map[string]any `json:"results_df,omitempty"`
}

// LoadChatHistory returns the frontend view of a chat and seeds the
// in-memory session from the same rows. SQL artifacts are re-executed
// so the display carries current data; stored rows never contain
// result records.
func (s *Service) LoadChatHistory(ctx context.Context, userID, chatID string) ([]HistoryEntry, error) {
	owns, err := s.store.UserOwnsChat(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("check chat ownership: %w", err)
	}
	if !owns {
		return nil, ErrChatNotFound
	}

	messages, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrChatNotFound
	}

	entries := make([]HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		entry := HistoryEntry{MessageNo: msg.MessageNo, Role: msg.Role}
		if msg.Role == chatstore.RoleSQL {
			entry.SQLQuery = msg.Content
			result, err := s.executor.ExecuteQuery(ctx, msg.Content)
			if err != nil {
				// A schema drift can invalidate an old artifact;
				// the transcript still renders without its rows.
				s.logger.Warn("sql artifact re-execution failed",
					"chat_id", chatID,
					"message_no", msg.MessageNo,
					"error", err,
				)
			} else {
				entry.Results = result.Records()
			}
		} else {
			entry.Content = msg.Content
		}
		entries = append(entries, entry)
	}

	s.sessions.Lock(chatID)
	s.sessions.Put(s.buildSession(userID, chatID, messages))
	s.sessions.Activate(userID, chatID)
	s.sessions.Unlock(chatID)

	return entries, nil
}

// ListChatPreviews returns the user's sidebar entries, newest first.
func (s *Service) ListChatPreviews(ctx context.Context, userID string) ([]chatstore.Preview, error) {
	previews, err := s.store.ListPreviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat previews: %w", err)
	}
	return previews, nil
}

// DeleteChats removes the given chats durably and evicts their
// runtime state. Chats the user does not own report ErrChatNotFound;
// remaining deletions still proceed.
func (s *Service) DeleteChats(ctx context.Context, userID string, chatIDs []string) error {
	var errs []error
	for _, chatID := range chatIDs {
		err := s.store.DeleteChat(ctx, userID, chatID)
		if errors.Is(err, chatstore.ErrNotFound) {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, ErrChatNotFound))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("delete chat %s: %w", chatID, err))
			continue
		}
		s.sessions.Evict(chatID)
	}
	return errors.Join(errs...)
}

// SignOut drops the user's runtime chat state. Durable history stays.
func (s *Service) SignOut(userID string) {
	s.sessions.SignOut(userID)
}
