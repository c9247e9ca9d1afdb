// Package main provides the entry point for the replywatch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for replywatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replywatch",
		Short: "Monitor a tweet's replies for new activity and open questions",
		Long: `replywatch monitors the reply thread of an X/Twitter post through Nitter
mirrors. It remembers which replies it has already seen, reports the ones
that are new, and flags replies that read as technical questions.

By default each check renders the mirror page through a local Camofox
browser. When no browser is reachable, the mirror page is fetched
directly instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
