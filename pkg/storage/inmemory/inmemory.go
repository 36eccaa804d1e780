// Package inmemory provides a map-backed storage.Store used in tests and
// when the relay runs without a database path.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easelhq/easel/pkg/storage"
)

// Driver is an in-memory storage.Store. Safe for concurrent use.
type Driver struct {
	mu            sync.Mutex
	conversations map[string]*storage.Conversation
	messages      map[string][]*storage.Message // keyed by conversation id
	seq           int64
}

var _ storage.Store = (*Driver)(nil)

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[string]*storage.Conversation),
		messages:      make(map[string][]*storage.Message),
	}
}

func (d *Driver) FindConversation(_ context.Context, id string) (*storage.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv, ok := d.conversations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (d *Driver) CreateConversation(_ context.Context, id, ownerID string, first storage.Message) (*storage.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Creation is idempotent on id so racing creators cannot duplicate the
	// conversation.
	conv, ok := d.conversations[id]
	if !ok {
		conv = &storage.Conversation{
			ID:        id,
			OwnerID:   ownerID,
			CreatedAt: time.Now().UTC(),
		}
		d.conversations[id] = conv
	}

	d.appendLocked(id, first.Role, first.Content)

	c := *conv
	return &c, nil
}

func (d *Driver) AppendMessage(_ context.Context, conversationID, role, content string) (*storage.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return nil, storage.ErrNotFound
	}

	msg := d.appendLocked(conversationID, role, content)
	m := *msg
	return &m, nil
}

// appendLocked stores a message. The sequence counter breaks ties between
// messages created within the same clock tick.
func (d *Driver) appendLocked(conversationID, role, content string) *storage.Message {
	d.seq++
	msg := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC().Add(time.Duration(d.seq) * time.Nanosecond),
	}
	d.messages[conversationID] = append(d.messages[conversationID], msg)
	return msg
}

func (d *Driver) ListMessages(_ context.Context, conversationID string) ([]*storage.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return nil, storage.ErrNotFound
	}

	msgs := d.messages[conversationID]
	out := make([]*storage.Message, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, nil
}

func (d *Driver) ListConversations(_ context.Context) ([]*storage.ConversationSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*storage.ConversationSummary, 0, len(d.conversations))
	for id, conv := range d.conversations {
		out = append(out, &storage.ConversationSummary{
			ID:           id,
			CreatedAt:    conv.CreatedAt,
			MessageCount: len(d.messages[id]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (d *Driver) Close() error {
	return nil
}
