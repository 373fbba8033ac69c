package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the wagerledger command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wagerledger",
		Short:         "Wagering ledger and provably-fair outcome engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newVerifyCommand(),
		newAnalyzeCommand(),
	)
	return root
}

// Execute runs the command tree with ctx, which is cancelled on shutdown signals
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
