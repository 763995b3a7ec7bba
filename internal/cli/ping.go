package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/relink/internal/cli/appctx"
	"github.com/lherron/relink/internal/config"
	"github.com/lherron/relink/internal/joplin"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the destination data API is reachable",
		Args:  cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{
			Sections: []config.Section{config.SectionDestination},
		}, runPing),
	}
}

func runPing(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := newDestination(app).Ping(cmd.Context()); err != nil {
		return err
	}
	dest := app.Config.Destination
	fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", joplin.BaseURL(dest.URL, dest.Port))
	return nil
}
