package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/relink/internal/cli/appctx"
	"github.com/lherron/relink/internal/config"
)

func newNotebooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notebooks",
		Short: "List source notebooks",
		Args:  cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{
			Sections: []config.Section{config.SectionSource},
		}, runNotebooks),
	}
	cmd.Flags().String("source-csv", "", "Read source notes from an export instead of the API")
	return cmd
}

func runNotebooks(app *appctx.App, cmd *cobra.Command, args []string) error {
	store, err := newSource(app)
	if err != nil {
		return err
	}
	notebooks, err := store.ListNotebooks(cmd.Context())
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return r.Render(notebookList(notebooks))
}
