package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/relink/internal/cli/appctx"
	"github.com/lherron/relink/internal/config"
	"github.com/lherron/relink/internal/source"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write source note metadata to CSV",
		Long: `Writes title, legacy id and creation time (epoch milliseconds) of every
source note in scope as CSV. The file can be passed to 'relink run --source-csv'
to relink without source API access.`,
		Args: cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{
			Sections: []config.Section{config.SectionSource},
		}, runExport),
	}
	cmd.Flags().String("out", "-", "Output file, - for stdout")
	cmd.Flags().String("notebook", "", "Only export this source notebook")
	cmd.Flags().Int("page-size", 0, "Source page size, at most 250")
	return cmd
}

func runExport(app *appctx.App, cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	store, err := newSource(app)
	if err != nil {
		return err
	}
	notes, err := collectLegacy(cmd.Context(), app, store)
	if err != nil {
		return err
	}

	if out == "-" {
		return source.WriteCSV(cmd.OutOrStdout(), notes)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := source.WriteCSV(f, notes); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	app.Logger.Info("exported source notes", zap.String("path", out), zap.Int("notes", len(notes)))
	return nil
}
