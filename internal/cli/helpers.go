package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/lherron/relink/internal/cli/appctx"
	"github.com/lherron/relink/internal/domain"
	"github.com/lherron/relink/internal/joplin"
	"github.com/lherron/relink/internal/render"
	"github.com/lherron/relink/internal/source"
)

// ExitError carries a process exit code for main
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func newDestination(app *appctx.App) *joplin.Client {
	dest := app.Config.Destination
	return joplin.NewClient(joplin.BaseURL(dest.URL, dest.Port), dest.Token, app.Logger.Named("destination"))
}

func newSource(app *appctx.App) (source.Store, error) {
	src := app.Config.Source
	if src.CSV != "" {
		store, err := source.OpenCSV(src.CSV)
		if err != nil {
			return nil, err
		}
		app.Logger.Info("reading source notes from export", zap.String("path", src.CSV))
		return store, nil
	}
	return source.NewClient(src.URL, src.Token, app.Logger.Named("source")), nil
}

// collectLegacy lists every source note in the configured notebook scope.
// An unknown notebook name falls back to all notebooks.
func collectLegacy(ctx context.Context, app *appctx.App, store source.Store) ([]domain.LegacyNote, error) {
	name := app.Config.Source.Notebook
	notebooks, found, err := source.Scope(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if !found {
		app.Logger.Warn("source notebook not found, using all notebooks", zap.String("notebook", name))
	} else if name == "" {
		app.Logger.Debug("no notebook set, using all notebooks", zap.Int("notebooks", len(notebooks)))
	}
	return source.CollectAll(ctx, store, notebooks, app.Config.Source.PageSize, app.Logger.Named("source"))
}

func newRenderer(app *appctx.App, out io.Writer) (*render.Renderer, error) {
	format, err := render.ParseFormat(app.Config.Output)
	if err != nil {
		return nil, fmt.Errorf("invalid output: %w", err)
	}
	return render.NewRenderer(out, format), nil
}

// notebookList renders source notebooks
type notebookList []domain.Notebook

func (l notebookList) Headers() []string {
	return []string{"guid", "name"}
}

func (l notebookList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, nb := range l {
		rows = append(rows, []string{nb.GUID, nb.Name})
	}
	return rows
}
