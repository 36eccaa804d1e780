// Package relay implements the streaming conversation relay: it persists the
// user's turn, proxies the full history to the upstream generator, streams
// the response back to the caller while accumulating it, and persists the
// accumulated assistant message once the stream ends.
package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/easelhq/easel/pkg/chat"
	"github.com/easelhq/easel/pkg/storage"
	"github.com/easelhq/easel/pkg/upstream"
)

// Relay is the conversation relay server. The store and the generator are
// injected; Relay itself holds no global state.
type Relay struct {
	config    Config
	store     storage.Store
	generator *upstream.Client
	logger    *zap.Logger
	server    *fiber.App
}

// New creates a Relay serving the chat, history and conversation-listing
// endpoints.
func New(config Config, store storage.Store, generator *upstream.Client, logger *zap.Logger) (*Relay, error) {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	r := &Relay{
		config:    config,
		store:     store,
		generator: generator,
		logger:    logger,
		server:    app,
	}

	app.Post("/api/chat", r.handleChat)
	app.Post("/api/chat/history", r.handleHistory)
	app.Get("/api/conversations", r.handleListConversations)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.UpstreamURL),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server on an existing listener. Used by
// tests that need an ephemeral port.
func (r *Relay) RunWithListener(ln net.Listener) error {
	return r.server.Listener(ln)
}

// Shutdown gracefully stops the HTTP server.
func (r *Relay) Shutdown() error {
	return r.server.Shutdown()
}

// Close releases the store.
func (r *Relay) Close() error {
	return r.store.Close()
}

// ownerID returns the identity recorded on newly created conversations.
func (r *Relay) ownerID() string {
	if r.config.OwnerID != "" {
		return r.config.OwnerID
	}
	return DefaultOwnerID
}

// handleChat relays one user turn. The user message is persisted before the
// upstream call; the assistant message is persisted exactly once, after the
// stream ends cleanly. On upstream or forwarding failure the accumulated
// partial text is discarded.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	start := time.Now()

	var req chat.RelayRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Error("failed to parse relay request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.ConversationID) == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: "conversationId and message are required"})
	}

	// The fasthttp request context is canceled when the client connection
	// closes, which releases the upstream request mid-stream.
	ctx := c.Context()

	if err := r.storeUserTurn(ctx, req.ConversationID, req.Message); err != nil {
		r.logger.Error("failed to store user message",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to store message"})
	}

	history, err := r.loadHistory(ctx, req.ConversationID)
	if err != nil {
		r.logger.Error("failed to load history",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to load history"})
	}

	r.logger.Debug("opening upstream stream",
		zap.String("conversation_id", req.ConversationID),
		zap.Int("history_len", len(history)),
	)

	stream, err := r.generator.Stream(ctx, history)
	if err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			r.logger.Error("upstream returned error status",
				zap.String("conversation_id", req.ConversationID),
				zap.Int("status", statusErr.StatusCode),
			)
		} else {
			r.logger.Error("upstream connect failed",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err),
			)
		}
		return c.Status(fiber.StatusBadGateway).JSON(chat.ErrorResponse{Error: "upstream request failed"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	sess := newSession(stream)
	conversationID := req.ConversationID

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		r.streamAndPersist(sess, w, conversationID, start)
	}))

	return nil
}

// streamAndPersist drains the session into the client stream and, on clean
// termination, writes the accumulated assistant message to the store.
func (r *Relay) streamAndPersist(sess *session, w *bufio.Writer, conversationID string, start time.Time) {
	defer sess.upstream.Close()

	if err := sess.run(w); err != nil {
		var fwdErr *forwardError
		if errors.As(err, &fwdErr) {
			// Client went away; not a server fault. The upstream
			// connection is released by the deferred Close.
			r.logger.Debug("client disconnected mid-stream",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		} else {
			r.logger.Error("upstream stream failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
		// Partial assistant text is discarded, not persisted.
		return
	}

	content := sess.text()

	// The request context ends with the response; persistence must not be
	// tied to it.
	if _, err := r.store.AppendMessage(context.Background(), conversationID, chat.RoleAssistant, content); err != nil {
		r.logger.Error("failed to store assistant message",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return
	}

	r.logger.Info("assistant message stored",
		zap.String("conversation_id", conversationID),
		zap.Int("bytes", len(content)),
		zap.String("content_preview", truncate(content, 100)),
		zap.Duration("duration", time.Since(start)),
	)
}

// storeUserTurn records the inbound user message, creating the conversation
// lazily on first contact. "Conversation exists" is the fast path; creation
// is upsert-safe in the store, so racing creators cannot duplicate the
// conversation.
func (r *Relay) storeUserTurn(ctx context.Context, conversationID, message string) error {
	_, err := r.store.FindConversation(ctx, conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		_, err = r.store.CreateConversation(ctx, conversationID, r.ownerID(), storage.Message{
			Role:    chat.RoleUser,
			Content: message,
		})
		return err
	}
	if err != nil {
		return err
	}

	_, err = r.store.AppendMessage(ctx, conversationID, chat.RoleUser, message)
	return err
}

// loadHistory returns the conversation's messages as role/content pairs in
// creation order. This is the only context the generator receives.
func (r *Relay) loadHistory(ctx context.Context, conversationID string) ([]chat.Message, error) {
	msgs, err := r.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	history := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		history[i] = chat.Message{Role: m.Role, Content: m.Content}
	}
	return history, nil
}

// handleHistory returns a conversation's stored messages, oldest first. An
// unknown conversation yields an empty list so a fresh page load works
// before the first turn.
func (r *Relay) handleHistory(c *fiber.Ctx) error {
	var req chat.HistoryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: "invalid request body"})
	}

	msgs, err := r.store.ListMessages(c.Context(), req.ConversationID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Error("failed to fetch history",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to fetch history"})
	}

	out := make([]chat.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chat.HistoryMessage{ID: m.ID, Role: m.Role, Content: m.Content})
	}
	return c.JSON(out)
}

// handleListConversations returns summaries of all stored conversations,
// newest first.
func (r *Relay) handleListConversations(c *fiber.Ctx) error {
	summaries, err := r.store.ListConversations(c.Context())
	if err != nil {
		r.logger.Error("failed to list conversations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to list conversations"})
	}
	if summaries == nil {
		summaries = []*storage.ConversationSummary{}
	}
	return c.JSON(summaries)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
