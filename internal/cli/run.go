package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/relink/internal/cli/appctx"
	"github.com/lherron/relink/internal/config"
	"github.com/lherron/relink/internal/extract"
	"github.com/lherron/relink/internal/joplin"
	"github.com/lherron/relink/internal/legacy"
	"github.com/lherron/relink/internal/resolve"
	"github.com/lherron/relink/internal/rewrite"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rewrite legacy links in destination notes",
		Long: `Lists the source notes, searches the destination for notes that still
contain legacy links, and rewrites every link that resolves to exactly one
destination note. Unresolved and ambiguous links are left untouched and
reported.

Exit codes: 0 when every note was processed, 5 when some notes could not be
read or written, 1 when none could.`,
		Args: cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{
			NeedsJournal: true,
			Sections:     []config.Section{config.SectionSource, config.SectionDestination},
		}, runRelink),
	}

	cmd.Flags().String("notebook", "", "Only resolve against this source notebook")
	cmd.Flags().String("source-csv", "", "Read source notes from an export instead of the API")
	cmd.Flags().String("scheme", "", "Legacy link scheme (default evernote)")
	cmd.Flags().Int("page-size", 0, "Source page size, at most 250")
	cmd.Flags().IntP("jobs", "j", 1, "Notes processed concurrently")
	cmd.Flags().Bool("dry-run", false, "Compute rewrites without writing or journaling them")
	cmd.Flags().Bool("diff", false, "Print a unified diff of every changed note body")
	return cmd
}

func runRelink(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.Config
	log := app.Logger
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showDiff, _ := cmd.Flags().GetBool("diff")

	dest := newDestination(app)
	if err := dest.Ping(ctx); err != nil {
		return err
	}

	store, err := newSource(app)
	if err != nil {
		return err
	}
	legacyNotes, err := collectLegacy(ctx, app, store)
	if err != nil {
		return err
	}
	index, err := legacy.Build(legacyNotes)
	if err != nil {
		return err
	}
	for _, rerr := range index.Rejected() {
		log.Warn("skipping invalid source note", zap.Error(rerr))
	}
	log.Info("indexed source notes", zap.Int("notes", index.Len()))

	stubs, err := dest.Search(ctx, cfg.SearchQuery(), joplin.NoteFields)
	if err != nil {
		return err
	}
	log.Info("found destination notes with legacy links", zap.Int("notes", len(stubs)))

	catalog, err := dest.ListNotes(ctx, joplin.NoteFields)
	if err != nil {
		return err
	}
	log.Debug("listed destination catalog", zap.Int("notes", len(catalog)))

	runID, err := app.Journal.StartRun(ctx, cfg.Source.Notebook, dryRun)
	if err != nil {
		return err
	}
	log = log.With(zap.String("run_id", runID))

	var diffOut io.Writer
	if showDiff {
		diffOut = cmd.OutOrStdout()
	}
	proc := rewrite.NewProcessor(dest, rewrite.Options{
		Extractor: extract.New(extract.Options{Scheme: cfg.Source.Scheme, Segment: cfg.Source.IDSegment}),
		Resolver:  resolve.New(index, catalog),
		Format: rewrite.Format{
			LightweightPrefix: cfg.Destination.MarkdownPrefix,
			TaggedPrefix:      cfg.Destination.HTMLPrefix,
		},
		Logger:   log,
		Recorder: app.Journal,
		RunID:    runID,
		DryRun:   dryRun,
		DiffOut:  diffOut,
		Jobs:     cfg.Jobs,
	})

	result := proc.Run(ctx, stubs)
	summary := proc.Reporter().Summary()

	// The run row is finished even when interrupted so `relink log` shows partial counts
	if err := app.Journal.FinishRun(context.WithoutCancel(ctx), runID, summary); err != nil {
		log.Warn("failed to finish journal run", zap.Error(err))
	}
	log.Info("run complete",
		zap.Int("notes_updated", summary.NotesUpdated),
		zap.Int("links_updated", summary.LinksUpdated),
		zap.Int("links_failed", summary.LinksFailed))

	r, err := newRenderer(app, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := r.Render(summary); err != nil {
		return err
	}
	result.PrintSummary(cmd.ErrOrStderr())

	if err := ctx.Err(); err != nil {
		return &ExitError{Code: 130, Err: errors.New("interrupted, remaining notes were not processed")}
	}
	if code := result.ExitCode(); code != 0 {
		return &ExitError{Code: code, Err: errors.New(summary.String())}
	}
	return nil
}
