package services

import (
	"context"
	"sync"
	"time"

	"github.com/pagemate/pagemate/internal/models"
)

// MemoryStore implements the conversation store on a plain map. It is the degraded
// mode of the durable BoltStore: conversations do not survive a coordinator restart.
// Callers choosing this backend must surface that limitation, not hide it.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
}

// NewMemoryStore creates an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]models.Conversation),
	}
}

// CreateConversation stores a new conversation record. Last write wins.
func (m *MemoryStore) CreateConversation(_ context.Context, conv models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy the message slice so later appends don't alias the caller's history mirror.
	conv.Messages = append([]models.Message(nil), conv.Messages...)
	m.conversations[conv.ID] = conv
	return nil
}

// Conversation retrieves the conversation stored under id, or
// models.ErrConversationNotFound.
func (m *MemoryStore) Conversation(_ context.Context, id string) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return models.Conversation{}, models.ErrConversationNotFound
	}
	conv.Messages = append([]models.Message(nil), conv.Messages...)
	return conv, nil
}

// AppendMessage appends msg to the conversation stored under id, or returns
// models.ErrConversationNotFound.
func (m *MemoryStore) AppendMessage(_ context.Context, id string, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return models.ErrConversationNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	m.conversations[id] = conv
	return nil
}

// DeleteConversation removes the conversation stored under id. Unknown IDs are a no-op.
func (m *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conversations, id)
	return nil
}

// ExpireOlderThan removes every conversation created strictly before threshold and
// returns the number removed. Conversations created exactly at the threshold are
// retained.
func (m *MemoryStore) ExpireOlderThan(_ context.Context, threshold time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, conv := range m.conversations {
		if conv.CreatedAt.Before(threshold) {
			delete(m.conversations, id)
			removed++
		}
	}
	return removed, nil
}
