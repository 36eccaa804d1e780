// Package storage defines the durable conversation store consumed by the
// relay. Implementations live in the inmemory and sqlite subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a conversation or message does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is a named, ordered thread of messages owned by a single user.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one persisted turn within a conversation. Messages are append
// only; the relay writes each one exactly once and never mutates it.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"` // chat.RoleUser or chat.RoleAssistant
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationSummary is a conversation plus its message count, as returned
// by ListConversations.
type ConversationSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
}

// Store is the durable conversation log. Implementations must serialize
// concurrent appends to the same conversation and must treat conversation
// creation as idempotent on id: two racing CreateConversation calls for the
// same id may both succeed, but only one conversation row exists afterwards.
type Store interface {
	// FindConversation returns the conversation with the given id, or
	// ErrNotFound if it does not exist.
	FindConversation(ctx context.Context, id string) (*Conversation, error)

	// CreateConversation creates a conversation together with its first
	// message. Creation is upsert-safe on the conversation id; the first
	// message is always appended.
	CreateConversation(ctx context.Context, id, ownerID string, first Message) (*Conversation, error)

	// AppendMessage appends a message to an existing conversation and
	// returns the stored message with its id and timestamp filled in.
	AppendMessage(ctx context.Context, conversationID, role, content string) (*Message, error)

	// ListMessages returns all messages of a conversation ordered by
	// creation time ascending.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// ListConversations returns summaries of all conversations, newest
	// first.
	ListConversations(ctx context.Context) ([]*ConversationSummary, error)

	// Close releases any resources held by the store.
	Close() error
}
