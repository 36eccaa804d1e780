// Package mergecmder implements `easel merge`.
package mergecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/cmd/easel/sqlitepath"
	"github.com/easelhq/easel/pkg/storage/sqlite"
)

const mergeLongDesc string = `Merge one or more source SQLite databases into a target.

Conversations are merged by id and messages by message id, so merging
is a simple union: rows that already exist in the target are skipped.

Examples:
  easel merge source1.sqlite source2.sqlite
  easel merge --sqlite /tmp/merged.sqlite ~/alice/easel.db ~/bob/easel.db`

const mergeShortDesc string = "Merge SQLite databases"

type mergeCommander struct {
	sqlitePath string
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to target SQLite database")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	targetPath, err := sqlitepath.Resolve(c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not resolve target database: %w", err)
	}

	target, err := sqlite.NewDriver(ctx, targetPath)
	if err != nil {
		return fmt.Errorf("could not open target database %s: %w", targetPath, err)
	}
	defer target.Close()

	var totalNew, totalDuped int

	for _, srcPath := range sources {
		srcNew, srcDuped, err := mergeSource(ctx, target, srcPath)
		if err != nil {
			return err
		}

		totalNew += srcNew
		totalDuped += srcDuped

		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d new, %d already existed\n", srcPath, srcNew, srcDuped)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "merged %d new messages into %s (%d duplicates skipped)\n",
		totalNew, targetPath, totalDuped)

	return nil
}

// mergeSource copies every conversation and message from the source database
// into the target, skipping messages whose id already exists.
func mergeSource(ctx context.Context, target *sqlite.Driver, srcPath string) (newCount, dupedCount int, err error) {
	source, err := sqlite.NewDriver(ctx, srcPath)
	if err != nil {
		return 0, 0, fmt.Errorf("could not open source database %s: %w", srcPath, err)
	}
	defer source.Close()

	summaries, err := source.ListConversations(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("could not list conversations from %s: %w", srcPath, err)
	}

	for _, summary := range summaries {
		conv, err := source.FindConversation(ctx, summary.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("could not read conversation %s: %w", summary.ID, err)
		}
		if _, err := target.ImportConversation(ctx, conv); err != nil {
			return 0, 0, fmt.Errorf("could not import conversation %s: %w", conv.ID, err)
		}

		msgs, err := source.ListMessages(ctx, conv.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("could not list messages of %s: %w", conv.ID, err)
		}

		for _, msg := range msgs {
			isNew, err := target.ImportMessage(ctx, msg)
			if err != nil {
				return 0, 0, fmt.Errorf("could not import message %s: %w", msg.ID, err)
			}
			if isNew {
				newCount++
			} else {
				dupedCount++
			}
		}
	}

	return newCount, dupedCount, nil
}
