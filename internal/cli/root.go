package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relink",
		Short: "Rewrite legacy note links after an import",
		Long: `relink finds links that still point into the legacy note system
(evernote://...) inside imported destination notes, resolves each one to the
imported copy of the linked note by title and creation time, and rewrites the
link in place.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ~/.config/relink/config.yaml)")
	flags.String("journal", "", "Path to run journal (overrides RELINK_JOURNAL_PATH)")
	flags.StringP("output", "o", "", "Output format: table, json, yaml, tsv")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newRunCmd(),
		newNotebooksCmd(),
		newExportCmd(),
		newPingCmd(),
		newLogCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command. An interrupt cancels the run between notes.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
