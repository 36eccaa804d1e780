package main

import (
	"os"

	"github.com/spf13/cobra"

	conversationscmder "github.com/easelhq/easel/cmd/easel/conversations"
	historycmder "github.com/easelhq/easel/cmd/easel/history"
	mergecmder "github.com/easelhq/easel/cmd/easel/merge"
)

func main() {
	root := &cobra.Command{
		Use:   "easel",
		Short: "Inspect and manage easel conversation databases",
		Long: `easel works with the conversation databases written by the relay
server: print conversations with their artifacts, list what is stored,
and merge databases together.`,
		SilenceUsage: true,
	}

	root.AddCommand(historycmder.NewHistoryCmd())
	root.AddCommand(conversationscmder.NewConversationsCmd())
	root.AddCommand(mergecmder.NewMergeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
