package models

import (
	"errors"
	"time"
)

// ErrConversationNotFound is returned by stores when a conversation ID has no entry.
// The coordinator converts it to the user-facing "Conversation not found." message.
var ErrConversationNotFound = errors.New("conversation not found")

// Role represents the role of a message participant.
type Role string

const (
	// RoleSystem represents a system instruction. At most the first message of a
	// conversation carries this role.
	RoleSystem Role = "system"
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message. During streaming the assistant
	// message only exists as an accumulating buffer; it is appended to the conversation
	// once the stream ends.
	RoleAssistant Role = "assistant"
)

// Message is an individual entry within a conversation. Messages are immutable once
// appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is a multi-turn exchange keyed by an opaque ID. SourceText holds the
// originally selected page text or video transcript the conversation started from.
type Conversation struct {
	ID         string    `json:"id"`
	SourceText string    `json:"sourceText,omitempty"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"createdAt"`
}
