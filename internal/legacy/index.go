// Package legacy holds the in-memory index of notes fetched from the source system.
// An Index is immutable after Build and safe for concurrent lookups.
package legacy

import (
	"fmt"

	"github.com/lherron/relink/internal/domain"
)

// DuplicateIdentifierError is returned by Build when two records share a guid
type DuplicateIdentifierError struct {
	GUID   string
	First  domain.LegacyNote
	Second domain.LegacyNote
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate legacy guid %s (titles %q and %q)", e.GUID, e.First.Title, e.Second.Title)
}

// Index maps legacy guids and (title, created) pairs to source notes
type Index struct {
	byID     map[string]domain.LegacyNote
	byKey    map[domain.TitleKey][]domain.LegacyNote
	rejected []error
}

// Build indexes records. It fails on the first duplicate guid rather than
// overwriting. Records that do not validate are left out and reported by
// Rejected.
func Build(records []domain.LegacyNote) (*Index, error) {
	idx := &Index{
		byID:  make(map[string]domain.LegacyNote, len(records)),
		byKey: make(map[domain.TitleKey][]domain.LegacyNote, len(records)),
	}

	for _, rec := range records {
		if err := domain.ValidateLegacyNote(rec); err != nil {
			idx.rejected = append(idx.rejected, err)
			continue
		}
		if existing, ok := idx.byID[rec.GUID]; ok {
			return nil, &DuplicateIdentifierError{GUID: rec.GUID, First: existing, Second: rec}
		}
		idx.byID[rec.GUID] = rec
		idx.byKey[rec.Key()] = append(idx.byKey[rec.Key()], rec)
	}

	return idx, nil
}

// Len returns the number of indexed notes
func (idx *Index) Len() int {
	return len(idx.byID)
}

// Rejected returns the validation errors of records Build left out
func (idx *Index) Rejected() []error {
	return idx.rejected
}

// LookupByID returns the note with the given guid
func (idx *Index) LookupByID(guid string) (domain.LegacyNote, bool) {
	n, ok := idx.byID[guid]
	return n, ok
}

// LookupByTitleAndTime returns every note sharing the pair. The result may
// hold zero, one or several notes; callers own the returned slice.
func (idx *Index) LookupByTitleAndTime(title string, createdAt int64) []domain.LegacyNote {
	matches := idx.byKey[domain.TitleKey{Title: title, CreatedAt: createdAt}]
	if len(matches) == 0 {
		return nil
	}
	out := make([]domain.LegacyNote, len(matches))
	copy(out, matches)
	return out
}
