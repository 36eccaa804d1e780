// Package conversationscmder implements `easel conversations`.
package conversationscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/cmd/easel/sqlitepath"
	"github.com/easelhq/easel/pkg/storage/sqlite"
)

const conversationsLongDesc string = `List the conversations in the local database, newest first.

Examples:
  easel conversations
  easel conversations --sqlite /tmp/easel.db`

const conversationsShortDesc string = "List stored conversations"

type conversationsCommander struct {
	sqlitePath string
}

func NewConversationsCmd() *cobra.Command {
	cmder := &conversationsCommander{}

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: conversationsShortDesc,
		Long:  conversationsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database")

	return cmd
}

func (c *conversationsCommander) run(ctx context.Context, cmd *cobra.Command) error {
	dbPath, err := sqlitepath.Resolve(c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not resolve database path: %w", err)
	}

	store, err := sqlite.NewDriver(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("could not open database %s: %w", dbPath, err)
	}
	defer store.Close()

	summaries, err := store.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("could not list conversations: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no conversations")
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d messages\n",
			s.CreatedAt.Format("2006-01-02 15:04"), s.ID, s.MessageCount)
	}

	return nil
}
