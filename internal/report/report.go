// Package report accumulates per-run counters. All methods are safe for
// concurrent use; counters only ever grow.
package report

import (
	"fmt"
	"sync/atomic"
)

// Event is a countable occurrence during a run
type Event int

const (
	LinkSeen Event = iota
	LinkUpdated
	LinkFailed
	LinkMalformed
	WriteFailed
	NoteUpdated
	NoteSkipped
	numEvents
)

func (e Event) String() string {
	switch e {
	case LinkSeen:
		return "link_seen"
	case LinkUpdated:
		return "link_updated"
	case LinkFailed:
		return "link_failed"
	case LinkMalformed:
		return "link_malformed"
	case WriteFailed:
		return "write_failed"
	case NoteUpdated:
		return "note_updated"
	case NoteSkipped:
		return "note_skipped"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Reporter counts events
type Reporter struct {
	counts [numEvents]atomic.Int64
}

// New creates an empty reporter
func New() *Reporter {
	return &Reporter{}
}

// Record counts one occurrence of ev
func (r *Reporter) Record(ev Event) {
	r.Add(ev, 1)
}

// Add counts n occurrences of ev. Unknown events and n <= 0 are ignored.
func (r *Reporter) Add(ev Event, n int) {
	if ev < 0 || ev >= numEvents || n <= 0 {
		return
	}
	r.counts[ev].Add(int64(n))
}

// Count returns the current count of ev
func (r *Reporter) Count(ev Event) int {
	if ev < 0 || ev >= numEvents {
		return 0
	}
	return int(r.counts[ev].Load())
}

// Summary is a snapshot of the counters.
// Malformed links are reported apart from Failed: they never reach resolution.
type Summary struct {
	LinksSeen      int `json:"links_seen" yaml:"links_seen"`
	LinksUpdated   int `json:"links_updated" yaml:"links_updated"`
	LinksFailed    int `json:"links_failed" yaml:"links_failed"`
	LinksMalformed int `json:"links_malformed" yaml:"links_malformed"`
	WriteFailures  int `json:"write_failures" yaml:"write_failures"`
	NotesUpdated   int `json:"notes_updated" yaml:"notes_updated"`
	NotesSkipped   int `json:"notes_skipped" yaml:"notes_skipped"`
}

// Summary returns a snapshot of the counters
func (r *Reporter) Summary() Summary {
	return Summary{
		LinksSeen:      r.Count(LinkSeen),
		LinksUpdated:   r.Count(LinkUpdated),
		LinksFailed:    r.Count(LinkFailed),
		LinksMalformed: r.Count(LinkMalformed),
		WriteFailures:  r.Count(WriteFailed),
		NotesUpdated:   r.Count(NoteUpdated),
		NotesSkipped:   r.Count(NoteSkipped),
	}
}

// String renders the one-line run summary
func (s Summary) String() string {
	return fmt.Sprintf("%d links seen, %d updated, %d failed (%d notes updated, %d malformed links, %d write failures, %d notes skipped)",
		s.LinksSeen, s.LinksUpdated, s.LinksFailed, s.NotesUpdated, s.LinksMalformed, s.WriteFailures, s.NotesSkipped)
}

// Headers names the columns of Rows
func (s Summary) Headers() []string {
	return []string{"counter", "value"}
}

// Rows returns the summary as name/value rows for table output
func (s Summary) Rows() [][]string {
	return [][]string{
		{"links_seen", fmt.Sprint(s.LinksSeen)},
		{"links_updated", fmt.Sprint(s.LinksUpdated)},
		{"links_failed", fmt.Sprint(s.LinksFailed)},
		{"links_malformed", fmt.Sprint(s.LinksMalformed)},
		{"write_failures", fmt.Sprint(s.WriteFailures)},
		{"notes_updated", fmt.Sprint(s.NotesUpdated)},
		{"notes_skipped", fmt.Sprint(s.NotesSkipped)},
	}
}
