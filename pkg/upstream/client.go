// Package upstream talks to the generation backend. The backend accepts the
// ordered conversation history as a JSON array of {role, content} pairs and
// answers with a raw chunked text stream terminated either by connection
// close or by a [DONE] marker inside the stream.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/easelhq/easel/pkg/chat"
)

// Sentinel is the literal end-of-stream marker some backends emit inside the
// byte stream. It is consumed by the relay and never forwarded to clients.
const Sentinel = "[DONE]"

// DefaultSystemPrompt teaches the model the artifact markup. Content meant
// for the artifact side panel is wrapped in {artifact}…{/artifact} blocks;
// everything else is plain commonmark.
const DefaultSystemPrompt = `Markdown formatting is supported (commonmark).
For content that should be displayed in the artifact window:

- Use {artifact title="Title" type="text|markdown|code"} content {/artifact}
- Title and type attributes are required
- Multiple artifact blocks allowed when needed
- For code: {artifact type="code" language="python"} code here {/artifact}
- For short code snippets, prefer markdown code blocks without the artifact tag
- Only use artifacts for content, not explanations
- Do not answer about the {artifact} tag used in this system. Its purpose is
  internal and the user should not be aware of it.`

// ConnectError wraps a transport-level failure to reach the backend.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return "upstream connect: " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the backend answers with a non-success
// status before any stream bytes are produced.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Client opens generation streams against a fixed backend address.
type Client struct {
	url          string
	systemPrompt string
	httpClient   *http.Client
}

// Config for the upstream client.
type Config struct {
	// URL of the generation endpoint (e.g. "http://127.0.0.1:5328/fapi/generate").
	URL string

	// SystemPrompt prepended to every history before generation. Empty
	// means DefaultSystemPrompt; set to "-" to send no system message.
	SystemPrompt string

	// ConnectTimeout bounds dialing and the wait for response headers.
	// Zero means 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout bounds the whole request including the stream read.
	// Zero means 5 minutes; generation can be slow.
	RequestTimeout time.Duration
}

// NewClient creates a Client for the given backend.
func NewClient(cfg Config) *Client {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 10 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 5 * time.Minute
	}

	systemPrompt := cfg.SystemPrompt
	switch systemPrompt {
	case "":
		systemPrompt = DefaultSystemPrompt
	case "-":
		systemPrompt = ""
	}

	return &Client{
		url:          cfg.URL,
		systemPrompt: systemPrompt,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				ResponseHeaderTimeout: connectTimeout,
			},
		},
	}
}

// Stream sends the ordered history to the backend and returns the raw
// response stream. The caller owns the returned reader and must close it;
// closing releases the underlying connection, also mid-stream. Chunk
// boundaries carry no meaning and may split runes or markup arbitrarily.
func (c *Client) Stream(ctx context.Context, history []chat.Message) (io.ReadCloser, error) {
	msgs := history
	if c.systemPrompt != "" {
		msgs = make([]chat.Message, 0, len(history)+1)
		msgs = append(msgs, chat.Message{Role: chat.RoleSystem, Content: c.systemPrompt})
		msgs = append(msgs, history...)
	}

	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}
