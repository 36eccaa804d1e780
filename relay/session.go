package relay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/easelhq/easel/pkg/upstream"
)

// forwardError marks a failure to write to the caller's stream, i.e. the
// client went away. Treated as cancellation rather than a server fault.
type forwardError struct {
	err error
}

func (e *forwardError) Error() string {
	return "forwarding to client: " + e.err.Error()
}

func (e *forwardError) Unwrap() error {
	return e.err
}

// session is the ephemeral state of one in-flight relay call: the open
// upstream stream, the accumulator for the assistant's text, and a flag
// recording whether the stream reached a clean end. It is owned by the
// handler invocation that created it and never shared across requests.
type session struct {
	upstream io.ReadCloser
	acc      strings.Builder
	done     bool
}

func newSession(rc io.ReadCloser) *session {
	return &session{upstream: rc}
}

// run tees the upstream stream into w: every chunk is forwarded to the
// client and appended to the accumulator, in lockstep. The flush after each
// chunk blocks while the client is slow, which backpressures the upstream
// read; nothing is buffered beyond one chunk.
//
// A chunk containing the [DONE] sentinel ends the stream: bytes before the
// sentinel are still forwarded and accumulated, the sentinel and anything
// after it are dropped, and no further chunks are read.
//
// Returns nil on clean termination (EOF or sentinel), a *forwardError when
// the client write fails, and the upstream read error otherwise.
func (s *session) run(w *bufio.Writer) error {
	sentinel := []byte(upstream.Sentinel)
	buf := make([]byte, 4096)

	for {
		n, readErr := s.upstream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if i := bytes.Index(chunk, sentinel); i >= 0 {
				chunk = chunk[:i]
				s.done = true
			}
			if len(chunk) > 0 {
				if _, err := w.Write(chunk); err != nil {
					return &forwardError{err: err}
				}
				if err := w.Flush(); err != nil {
					return &forwardError{err: err}
				}
				s.acc.Write(chunk)
			}
			if s.done {
				return nil
			}
		}
		if readErr == io.EOF {
			s.done = true
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading upstream stream: %w", readErr)
		}
	}
}

// text returns the accumulated assistant message so far.
func (s *session) text() string {
	return s.acc.String()
}
