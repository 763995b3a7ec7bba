package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/lherron/relink/internal/domain"
)

// csvNotebookGUID names the single notebook a CSV export is served as
const csvNotebookGUID = "csv"

// CSVStore serves a metadata export written by WriteCSV. Rows are
// title,guid,created with created in epoch milliseconds.
type CSVStore struct {
	name  string
	notes []domain.LegacyNote
}

// OpenCSV loads an export from path
func OpenCSV(path string) (*CSVStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConnectivityError{Op: "open csv", Err: err}
	}
	defer f.Close()

	notes, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &CSVStore{name: path, notes: notes}, nil
}

// ListNotebooks returns one notebook holding the whole export
func (s *CSVStore) ListNotebooks(ctx context.Context) ([]domain.Notebook, error) {
	return []domain.Notebook{{GUID: csvNotebookGUID, Name: s.name}}, nil
}

// ListNotes pages through the export
func (s *CSVStore) ListNotes(ctx context.Context, notebookGUID string, offset, limit int) (Page, error) {
	if notebookGUID != csvNotebookGUID {
		return Page{}, fmt.Errorf("unknown notebook %q", notebookGUID)
	}
	total := len(s.notes)
	if offset < 0 || offset > total {
		offset = total
	}
	end := min(offset+max(limit, 0), total)
	return Page{Notes: s.notes[offset:end], Total: total}, nil
}

// ReadCSV parses title,guid,created rows
func ReadCSV(r io.Reader) ([]domain.LegacyNote, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	var notes []domain.LegacyNote
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		created, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid created time %q", line, rec[2])
		}
		notes = append(notes, domain.LegacyNote{Title: rec[0], GUID: rec[1], CreatedAt: created})
	}
	return notes, nil
}

// WriteCSV writes notes as title,guid,created rows
func WriteCSV(w io.Writer, notes []domain.LegacyNote) error {
	cw := csv.NewWriter(w)
	for _, n := range notes {
		if err := cw.Write([]string{n.Title, n.GUID, strconv.FormatInt(n.CreatedAt, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
