// Package source reads note metadata from the legacy system.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lherron/relink/internal/domain"
)

// MaxPageSize is the largest page the source API serves
const MaxPageSize = 250

// collectConcurrency bounds how many notebooks are paged at once
const collectConcurrency = 4

// Page is one slice of a notebook listing. Total is the notebook's note count
// regardless of offset and limit.
type Page struct {
	Notes []domain.LegacyNote
	Total int
}

// Store is a read-only source of legacy note metadata
type Store interface {
	ListNotebooks(ctx context.Context) ([]domain.Notebook, error)
	ListNotes(ctx context.Context, notebookGUID string, offset, limit int) (Page, error)
}

// ConnectivityError reports that the source could not be reached or listed
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// ClampPageSize bounds n to (0, MaxPageSize]
func ClampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// Collect pages through one notebook. A zero-size request reads the total,
// then ceil(total/pageSize) sequential requests exhaust the notebook.
func Collect(ctx context.Context, store Store, notebookGUID string, pageSize int) ([]domain.LegacyNote, error) {
	pageSize = ClampPageSize(pageSize)

	head, err := store.ListNotes(ctx, notebookGUID, 0, 0)
	if err != nil {
		return nil, err
	}

	pages := (head.Total + pageSize - 1) / pageSize
	notes := make([]domain.LegacyNote, 0, head.Total)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := store.ListNotes(ctx, notebookGUID, i*pageSize, pageSize)
		if err != nil {
			return nil, err
		}
		notes = append(notes, page.Notes...)
	}
	return notes, nil
}

// CollectAll collects every notebook in scope. Notebooks are paged
// concurrently; the result keeps notebook order.
func CollectAll(ctx context.Context, store Store, notebooks []domain.Notebook, pageSize int, logger *zap.Logger) ([]domain.LegacyNote, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([][]domain.LegacyNote, len(notebooks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)

	for i, nb := range notebooks {
		g.Go(func() error {
			notes, err := Collect(gctx, store, nb.GUID, pageSize)
			if err != nil {
				return fmt.Errorf("failed to list notebook %q: %w", nb.Name, err)
			}
			results[i] = notes
			logger.Info("retrieved notes from notebook",
				zap.String("notebook", nb.Name),
				zap.Int("notes", len(notes)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.LegacyNote
	for _, notes := range results {
		all = append(all, notes...)
	}
	return all, nil
}

// Scope picks the notebooks to collect. An empty name selects every notebook;
// an unknown name is reported with found=false and also selects every notebook.
func Scope(ctx context.Context, store Store, name string) (notebooks []domain.Notebook, found bool, err error) {
	all, err := store.ListNotebooks(ctx)
	if err != nil {
		return nil, false, err
	}
	if name == "" {
		return all, true, nil
	}
	for _, nb := range all {
		if nb.Name == name {
			return []domain.Notebook{nb}, true, nil
		}
	}
	return all, false, nil
}
