package domain

import (
	"fmt"
	"strconv"
)

// Dialect represents the markup format a destination note body is stored in.
// Values match the destination's markup_language field.
type Dialect int

const (
	DialectLightweight Dialect = 1
	DialectTagged      Dialect = 2
)

// String returns the dialect name used in logs and output
func (d Dialect) String() string {
	switch d {
	case DialectLightweight:
		return "markdown"
	case DialectTagged:
		return "html"
	default:
		return "unknown(" + strconv.Itoa(int(d)) + ")"
	}
}

// Known reports whether d is one of the two supported dialects
func (d Dialect) Known() bool {
	return d == DialectLightweight || d == DialectTagged
}

// Notebook represents a notebook in the source system
type Notebook struct {
	GUID string `json:"guid" yaml:"guid"`
	Name string `json:"name" yaml:"name"`
}

// LegacyNote is a note record fetched from the source system.
// CreatedAt is epoch milliseconds.
type LegacyNote struct {
	GUID      string `json:"guid" yaml:"guid"`
	Title     string `json:"title" yaml:"title"`
	CreatedAt int64  `json:"created" yaml:"created"`
}

// DestinationNote is a note record listed from the destination store
type DestinationNote struct {
	ID        string  `json:"id" yaml:"id"`
	Title     string  `json:"title" yaml:"title"`
	CreatedAt int64   `json:"created_time" yaml:"created_time"`
	Dialect   Dialect `json:"markup_language" yaml:"markup_language"`
}

// NoteStub is a destination search hit. Body is fetched separately.
type NoteStub = DestinationNote

// TitleKey is the (title, created) pair shared by both systems after import
type TitleKey struct {
	Title     string
	CreatedAt int64
}

// Key returns the secondary join key of a legacy note
func (n LegacyNote) Key() TitleKey {
	return TitleKey{Title: n.Title, CreatedAt: n.CreatedAt}
}

// Key returns the secondary join key of a destination note
func (n DestinationNote) Key() TitleKey {
	return TitleKey{Title: n.Title, CreatedAt: n.CreatedAt}
}

func (k TitleKey) String() string {
	return fmt.Sprintf("%q@%d", k.Title, k.CreatedAt)
}
