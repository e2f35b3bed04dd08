// Package session keeps the in-memory working state of active chats:
// the hydrated conversation log, the last generated SQL and the chat
// each user currently has open. Durable state lives in the chat
// store; a session can always be rebuilt from it.
package session

import (
	"sync"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chatstore"
)

// Session is the working state of one chat. History starts with
// exactly one system-init message and mirrors the persisted
// transcript plus any in-flight draft entries.
type Session struct {
	ChatID  string
	UserID  string
	History []chatstore.Message
	LastSQL string
	HasSQL  bool
}

// Clone returns a copy whose history the caller may mutate freely.
func (s *Session) Clone() *Session {
	history := make([]chatstore.Message, len(s.History))
	copy(history, s.History)
	return &Session{
		ChatID:  s.ChatID,
		UserID:  s.UserID,
		History: history,
		LastSQL: s.LastSQL,
		HasSQL:  s.HasSQL,
	}
}

// Manager caches sessions and serializes turn processing per chat.
// The per-chat lock guards the read-reconcile-persist window so two
// concurrent turns on one chat cannot interleave message numbers.
type Manager struct {
	mu         sync.Mutex
	locks      map[string]*sync.Mutex
	sessions   map[string]*Session
	activeChat map[string]string
}

func NewManager() *Manager {
	return &Manager{
		locks:      make(map[string]*sync.Mutex),
		sessions:   make(map[string]*Session),
		activeChat: make(map[string]string),
	}
}

// Lock acquires the chat's turn lock, creating it on first use.
func (m *Manager) Lock(chatID string) {
	m.mu.Lock()
	lock, ok := m.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[chatID] = lock
	}
	m.mu.Unlock()
	lock.Lock()
}

func (m *Manager) Unlock(chatID string) {
	m.mu.Lock()
	lock, ok := m.locks[chatID]
	m.mu.Unlock()
	if ok {
		lock.Unlock()
	}
}

// Get returns the cached session for a chat, if any. The caller gets
// a clone; Put stores updates back.
func (m *Manager) Get(chatID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[chatID]
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

func (m *Manager) Put(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ChatID] = session.Clone()
}

// Activate records the chat a user is working in. Switching chats
// evicts the previously active session so stale history cannot leak
// into the new chat.
func (m *Manager) Activate(userID, chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.activeChat[userID]
	if ok && previous != chatID {
		delete(m.sessions, previous)
	}
	m.activeChat[userID] = chatID
}

// ActiveChat returns the chat the user currently has open.
func (m *Manager) ActiveChat(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chatID, ok := m.activeChat[userID]
	return chatID, ok
}

func (m *Manager) Evict(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

// SignOut drops the user's active-chat mapping and its cached
// session. Durable transcripts are untouched.
func (m *Manager) SignOut(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chatID, ok := m.activeChat[userID]; ok {
		delete(m.sessions, chatID)
		delete(m.activeChat, userID)
	}
}
