// Package sqlite provides the SQLite-backed storage.Store used by the relay
// server and the easel CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/easelhq/easel/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, seq);
`

// Driver is a SQLite-backed storage.Store. Timestamps are stored as Unix
// milliseconds; the autoincrementing seq column keeps arrival order for
// messages created within the same millisecond.
type Driver struct {
	db *sql.DB
}

var _ storage.Store = (*Driver)(nil)

// NewDriver opens (or creates) the database at path and ensures the schema
// exists. Parent directories are created as needed. Use ":memory:" for an
// in-memory database.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer at a time keeps message appends serialized; sqlite would
	// otherwise return SQLITE_BUSY under concurrent relay calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) FindConversation(ctx context.Context, id string) (*storage.Conversation, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, owner_id, created_at FROM conversations WHERE id = ?`, id)

	var conv storage.Conversation
	var createdAt int64
	if err := row.Scan(&conv.ID, &conv.OwnerID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("finding conversation: %w", err)
	}
	conv.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &conv, nil
}

func (d *Driver) CreateConversation(ctx context.Context, id, ownerID string, first storage.Message) (*storage.Conversation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// INSERT OR IGNORE makes creation idempotent on id: a racing creator
	// loses the insert but still appends its first message.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, owner_id, created_at) VALUES (?, ?, ?)`,
		id, ownerID, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), id, first.Role, first.Content, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("storing first message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing conversation: %w", err)
	}

	return d.FindConversation(ctx, id)
}

func (d *Driver) AppendMessage(ctx context.Context, conversationID, role, content string) (*storage.Message, error) {
	if _, err := d.FindConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	msg := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	return msg, nil
}

func (d *Driver) ListMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	if _, err := d.FindConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []*storage.Message
	for rows.Next() {
		var msg storage.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return out, nil
}

func (d *Driver) ListConversations(ctx context.Context) ([]*storage.ConversationSummary, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT c.id, c.created_at, COUNT(m.seq)
		 FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id
		 GROUP BY c.id ORDER BY c.created_at DESC, c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []*storage.ConversationSummary
	for rows.Next() {
		var s storage.ConversationSummary
		var createdAt int64
		if err := rows.Scan(&s.ID, &createdAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		s.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return out, nil
}

// ImportConversation inserts a conversation row keeping its original id and
// timestamp. Returns true if the row was new. Used by the merge command.
func (d *Driver) ImportConversation(ctx context.Context, conv *storage.Conversation) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, owner_id, created_at) VALUES (?, ?, ?)`,
		conv.ID, conv.OwnerID, conv.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("importing conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("importing conversation: %w", err)
	}
	return n > 0, nil
}

// ImportMessage inserts a message keeping its original id and timestamp,
// skipping messages whose id already exists. Returns true if the row was new.
func (d *Driver) ImportMessage(ctx context.Context, msg *storage.Message) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("importing message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("importing message: %w", err)
	}
	return n > 0, nil
}

func (d *Driver) Close() error {
	return d.db.Close()
}
