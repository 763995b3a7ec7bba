package journal

import (
	"strconv"
)

// Runs is a run listing
type Runs []Run

func (rs Runs) Headers() []string {
	return []string{"run", "started", "finished", "notebook", "dry_run", "seen", "updated", "failed"}
}

func (rs Runs) Rows() [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = *r.FinishedAt
		}
		notebook := r.Notebook
		if notebook == "" {
			notebook = "(all)"
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt,
			finished,
			notebook,
			strconv.FormatBool(r.DryRun),
			strconv.Itoa(r.Summary.LinksSeen),
			strconv.Itoa(r.Summary.LinksUpdated),
			strconv.Itoa(r.Summary.LinksFailed),
		})
	}
	return rows
}

// Entries is a rewrite listing
type Entries []Entry

func (es Entries) Headers() []string {
	return []string{"note_id", "note_title", "legacy_guid", "dest_id", "new_uri", "recorded_at"}
}

func (es Entries) Rows() [][]string {
	rows := make([][]string, 0, len(es))
	for _, e := range es {
		rows = append(rows, []string{e.NoteID, e.NoteTitle, e.GUID, e.DestID, e.NewURI, e.RecordedAt})
	}
	return rows
}
