// Package historycmder implements `easel history`, which prints a stored
// conversation with assistant messages segmented into prose and artifacts.
package historycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/easelhq/easel/cmd/easel/sqlitepath"
	"github.com/easelhq/easel/pkg/artifact"
	"github.com/easelhq/easel/pkg/chat"
	"github.com/easelhq/easel/pkg/storage"
	"github.com/easelhq/easel/pkg/storage/sqlite"
)

const historyLongDesc string = `Print a conversation from the local database.

Assistant messages are split into prose and artifact blocks; prose is
rendered as markdown and artifacts are framed with their title. Use
--raw to print the stored text without any rendering.

Examples:
  easel history my-conversation
  easel history --sqlite /tmp/easel.db --raw my-conversation`

const historyShortDesc string = "Print a stored conversation"

type historyCommander struct {
	sqlitePath string
	raw        bool
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print stored text without rendering")

	return cmd
}

func (c *historyCommander) run(ctx context.Context, cmd *cobra.Command, conversationID string) error {
	dbPath, err := sqlitepath.Resolve(c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not resolve database path: %w", err)
	}

	store, err := sqlite.NewDriver(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("could not open database %s: %w", dbPath, err)
	}
	defer store.Close()

	msgs, err := store.ListMessages(ctx, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("conversation %s not found", conversationID)
		}
		return fmt.Errorf("could not list messages: %w", err)
	}

	out := cmd.OutOrStdout()

	var renderer *glamour.TermRenderer
	if !c.raw {
		renderer, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			// Fall back to raw output rather than failing the command.
			renderer = nil
		}
	}

	for _, msg := range msgs {
		fmt.Fprintf(out, "--- %s (%s)\n", msg.Role, msg.CreatedAt.Format("2006-01-02 15:04:05"))
		if msg.Role == chat.RoleAssistant {
			printAssistant(out, renderer, msg.Content)
		} else {
			fmt.Fprintln(out, msg.Content)
		}
		fmt.Fprintln(out)
	}

	return nil
}

// printAssistant writes an assistant message as alternating prose and
// artifact panels.
func printAssistant(out io.Writer, renderer *glamour.TermRenderer, content string) {
	for _, seg := range artifact.Segment(content) {
		switch seg.Type {
		case artifact.Block:
			fmt.Fprintf(out, "┌─ %s\n", seg.Title)
			fmt.Fprintln(out, indent(renderMarkdown(renderer, seg.Text)))
			fmt.Fprintln(out, "└─")
		default:
			fmt.Fprintln(out, renderMarkdown(renderer, seg.Text))
		}
	}
}

func renderMarkdown(renderer *glamour.TermRenderer, text string) string {
	if renderer == nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "│ " + line
	}
	return strings.Join(lines, "\n")
}
