package rewrite

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/lherron/relink/internal/bulk"
	"github.com/lherron/relink/internal/domain"
	"github.com/lherron/relink/internal/extract"
	"github.com/lherron/relink/internal/journal"
	"github.com/lherron/relink/internal/report"
	"github.com/lherron/relink/internal/resolve"
)

// Destination is the part of the destination store a processor needs
type Destination interface {
	GetNoteBody(ctx context.Context, id string) (string, error)
	UpdateNoteBody(ctx context.Context, id, body string) error
}

// Recorder journals rewrites that reached the destination
type Recorder interface {
	RecordRewrites(ctx context.Context, entries []journal.Entry) error
}

// WriteFailure is returned when the rewritten body could not be persisted.
// None of the note's links count as updated.
type WriteFailure struct {
	NoteID string
	Title  string
	Links  int
	Err    error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("failed to write note %s (%q, %d links): %v", e.NoteID, e.Title, e.Links, e.Err)
}

func (e *WriteFailure) Unwrap() error {
	return e.Err
}

// Outcome summarizes the processing of one note
type Outcome struct {
	NoteID         string
	Title          string
	LinksSeen      int
	LinksUpdated   int
	LinksFailed    int
	LinksMalformed int
	Written        bool
}

// Options configures a Processor
type Options struct {
	Extractor *extract.Extractor
	Resolver  *resolve.Resolver
	Format    Format
	Reporter  *report.Reporter
	Logger    *zap.Logger

	// Recorder and RunID enable journaling; Recorder may be nil
	Recorder Recorder
	RunID    string

	// DryRun computes rewrites without writing them
	DryRun bool

	// DiffOut receives a unified diff of every changed body; may be nil
	DiffOut io.Writer

	// Jobs is the number of notes processed concurrently
	Jobs int
}

// Processor rewrites the legacy links of destination notes
type Processor struct {
	dest      Destination
	extractor *extract.Extractor
	resolver  *resolve.Resolver
	format    Format
	reporter  *report.Reporter
	logger    *zap.Logger
	recorder  Recorder
	runID     string
	dryRun    bool
	jobs      int

	diffMu  sync.Mutex
	diffOut io.Writer
}

// NewProcessor creates a processor writing through dest.
// The resolver must already hold a frozen legacy index and catalog.
func NewProcessor(dest Destination, opts Options) *Processor {
	if opts.Extractor == nil {
		opts.Extractor = extract.New(extract.Options{})
	}
	if opts.Format == (Format{}) {
		opts.Format = DefaultFormat()
	}
	if opts.Reporter == nil {
		opts.Reporter = report.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return &Processor{
		dest:      dest,
		extractor: opts.Extractor,
		resolver:  opts.Resolver,
		format:    opts.Format,
		reporter:  opts.Reporter,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		runID:     opts.RunID,
		dryRun:    opts.DryRun,
		jobs:      opts.Jobs,
		diffOut:   opts.DiffOut,
	}
}

// Reporter returns the processor's counters
func (p *Processor) Reporter() *report.Reporter {
	return p.reporter
}

// Run processes every note once. Per-note errors are counted and logged and
// never stop the run; cancelling ctx stops it between notes.
func (p *Processor) Run(ctx context.Context, notes []domain.NoteStub) *bulk.Result {
	op := &bulk.Operation{
		Jobs:            p.jobs,
		ContinueOnError: true,
		Logger:          p.logger,
	}
	key := func(n domain.NoteStub) string { return n.ID }
	return bulk.Execute(ctx, op, dedupe(notes), key, func(ctx context.Context, n domain.NoteStub) error {
		_, err := p.ProcessNote(ctx, n)
		return err
	})
}

// ProcessNote reads a note body, rewrites every uniquely resolved legacy
// link and writes the body back with a single update. Once started, a note
// runs to completion even if ctx is cancelled.
func (p *Processor) ProcessNote(ctx context.Context, note domain.NoteStub) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	out := Outcome{NoteID: note.ID, Title: note.Title}
	log := p.logger.With(zap.String("note_id", note.ID), zap.String("note_title", note.Title))

	if err := extract.CheckDialect(note.Dialect); err != nil {
		p.reporter.Record(report.NoteSkipped)
		log.Warn("skipping note", zap.Error(err))
		return out, err
	}

	body, err := p.dest.GetNoteBody(ctx, note.ID)
	if err != nil {
		p.reporter.Record(report.NoteSkipped)
		log.Warn("failed to fetch note body", zap.Error(err))
		return out, fmt.Errorf("failed to fetch note %s: %w", note.ID, err)
	}

	if note.Dialect == domain.DialectTagged && !extract.HasEnvelope(body) {
		log.Warn("html note does not start with <en-note>, processing anyway")
	}

	seq, err := p.extractor.Extract(body, note.Dialect)
	if err != nil {
		p.reporter.Record(report.NoteSkipped)
		log.Warn("skipping note", zap.Error(err))
		return out, err
	}

	var edits []Edit
	for c, err := range seq {
		if err != nil {
			out.LinksMalformed++
			log.Warn("skipping malformed link", zap.Error(err))
			continue
		}

		out.LinksSeen++
		res := p.resolver.Resolve(c)
		if res.Kind != resolve.KindUnique {
			out.LinksFailed++
			log.Warn("could not resolve link",
				zap.String("guid", c.GUID),
				zap.Stringer("resolution", res.Kind),
				zap.String("reason", res.Reason()))
			continue
		}

		log.Debug("resolved link",
			zap.String("guid", c.GUID),
			zap.String("dest_id", res.DestID),
			zap.String("dest_title", res.Title))
		edits = append(edits, Edit{Candidate: c, Resolution: res})
	}

	p.reporter.Add(report.LinkSeen, out.LinksSeen)
	p.reporter.Add(report.LinkFailed, out.LinksFailed)
	p.reporter.Add(report.LinkMalformed, out.LinksMalformed)

	if len(edits) == 0 {
		return out, nil
	}

	newBody, applied, err := Apply(body, note.Dialect, edits, p.format)
	if err != nil {
		p.reporter.Record(report.NoteSkipped)
		log.Warn("failed to rewrite note body", zap.Error(err))
		return out, err
	}
	if applied == 0 || newBody == body {
		return out, nil
	}

	p.writeDiff(note, body, newBody)

	if p.dryRun {
		out.LinksUpdated = applied
		p.reporter.Add(report.LinkUpdated, applied)
		p.reporter.Record(report.NoteUpdated)
		log.Info("would update note", zap.Int("links", applied))
		return out, nil
	}

	if err := p.dest.UpdateNoteBody(ctx, note.ID, newBody); err != nil {
		p.reporter.Record(report.WriteFailed)
		log.Warn("failed to write note body", zap.Int("links", applied), zap.Error(err))
		return out, &WriteFailure{NoteID: note.ID, Title: note.Title, Links: applied, Err: err}
	}

	out.Written = true
	out.LinksUpdated = applied
	p.reporter.Add(report.LinkUpdated, applied)
	p.reporter.Record(report.NoteUpdated)
	log.Info("updated note", zap.Int("links", applied))

	p.recordJournal(ctx, note, edits, log)
	return out, nil
}

func (p *Processor) recordJournal(ctx context.Context, note domain.NoteStub, edits []Edit, log *zap.Logger) {
	if p.recorder == nil || p.runID == "" {
		return
	}
	entries := make([]journal.Entry, 0, len(edits))
	for _, e := range edits {
		entries = append(entries, journal.Entry{
			RunID:     p.runID,
			NoteID:    note.ID,
			NoteTitle: note.Title,
			GUID:      e.Candidate.GUID,
			DestID:    e.Resolution.DestID,
			OldURI:    e.Candidate.URI,
			NewURI:    p.format.Link(note.Dialect, e.Resolution.DestID),
		})
	}
	// The note is already written; a journal failure only loses the audit row
	if err := p.recorder.RecordRewrites(ctx, entries); err != nil {
		log.Warn("failed to journal rewrites", zap.Error(err))
	}
}

func (p *Processor) writeDiff(note domain.NoteStub, before, after string) {
	if p.diffOut == nil {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: note.ID + " (" + note.Title + ")",
		ToFile:   note.ID + " (rewritten)",
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		p.logger.Warn("failed to diff note body", zap.String("note_id", note.ID), zap.Error(err))
		return
	}

	p.diffMu.Lock()
	defer p.diffMu.Unlock()
	fmt.Fprint(p.diffOut, text)
}

func dedupe(notes []domain.NoteStub) []domain.NoteStub {
	seen := make(map[string]struct{}, len(notes))
	out := make([]domain.NoteStub, 0, len(notes))
	for _, n := range notes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}
