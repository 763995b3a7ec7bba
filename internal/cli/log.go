package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/relink/internal/cli/appctx"
	"github.com/lherron/relink/internal/journal"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show journaled runs and rewrites",
		Long: `Without --run, lists recent runs with their counters. With --run, lists
every link rewritten by that run.`,
		Args: cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{NeedsJournal: true}, runLog),
	}
	cmd.Flags().String("run", "", "Run id to show rewrites for")
	cmd.Flags().Int("limit", 20, "Maximum runs to list")
	return cmd
}

func runLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	limit, _ := cmd.Flags().GetInt("limit")

	r, err := newRenderer(app, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if runID != "" {
		entries, err := app.Journal.ListRewrites(cmd.Context(), runID)
		if err != nil {
			return err
		}
		return r.Render(journal.Entries(entries))
	}

	runs, err := app.Journal.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return r.Render(journal.Runs(runs))
}
