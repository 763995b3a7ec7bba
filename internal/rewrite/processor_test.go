package rewrite

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lherron/relink/internal/domain"
	"github.com/lherron/relink/internal/extract"
	"github.com/lherron/relink/internal/journal"
	"github.com/lherron/relink/internal/legacy"
	"github.com/lherron/relink/internal/report"
	"github.com/lherron/relink/internal/resolve"
	"github.com/lherron/relink/internal/testutil"
)

type fakeDest struct {
	mu      sync.Mutex
	bodies  map[string]string
	updates map[string]int
	failGet map[string]bool
	failPut map[string]bool
}

func newFakeDest(bodies map[string]string) *fakeDest {
	return &fakeDest{
		bodies:  bodies,
		updates: map[string]int{},
		failGet: map[string]bool{},
		failPut: map[string]bool{},
	}
}

func (f *fakeDest) GetNoteBody(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet[id] {
		return "", errors.New("connection refused")
	}
	body, ok := f.bodies[id]
	if !ok {
		return "", errors.New("not found")
	}
	return body, nil
}

func (f *fakeDest) UpdateNoteBody(_ context.Context, id, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut[id] {
		return errors.New("500 internal server error")
	}
	f.bodies[id] = body
	f.updates[id]++
	return nil
}

type fakeRecorder struct {
	entries []journal.Entry
}

func (r *fakeRecorder) RecordRewrites(_ context.Context, entries []journal.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func newResolver(t *testing.T, src []domain.LegacyNote, catalog []domain.DestinationNote) *resolve.Resolver {
	t.Helper()
	idx, err := legacy.Build(src)
	require.NoError(t, err)
	return resolve.New(idx, catalog)
}

func TestProcessNote_EndToEnd(t *testing.T) {
	dest := newFakeDest(map[string]string{"n1": "See [here](myscheme://s/nb/nb/g1/g1)"})
	rec := &fakeRecorder{}
	p := NewProcessor(dest, Options{
		Extractor: extract.New(extract.Options{Scheme: "myscheme"}),
		Resolver: newResolver(t,
			[]domain.LegacyNote{{GUID: "g1", Title: "Trip", CreatedAt: 1000}},
			[]domain.DestinationNote{{ID: "d1", Title: "Trip", CreatedAt: 1000, Dialect: domain.DialectLightweight}}),
		Format:   testFormat,
		Logger:   zaptest.NewLogger(t),
		Recorder: rec,
		RunID:    "run-1",
	})

	out, err := p.ProcessNote(context.Background(), domain.NoteStub{ID: "n1", Title: "Index", Dialect: domain.DialectLightweight})
	require.NoError(t, err)
	assert.True(t, out.Written)
	assert.Equal(t, "See [here](newscheme://d1)", dest.bodies["n1"])

	s := p.Reporter().Summary()
	assert.Equal(t, 1, s.LinksSeen)
	assert.Equal(t, 1, s.LinksUpdated)
	assert.Equal(t, 0, s.LinksFailed)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.Entry{
		RunID: "run-1", NoteID: "n1", NoteTitle: "Index", GUID: "g1", DestID: "d1",
		OldURI: "myscheme://s/nb/nb/g1/g1", NewURI: "newscheme://d1",
	}, rec.entries[0])
}

func TestProcessNote_OneWritePerNote(t *testing.T) {
	body := `<en-note><a href="evernote://s/n/n/g1/g1">a</a><a href="evernote://s/n/n/g2/g2">b</a>` +
		`<a href="evernote://s/n/n/g3/g3">c</a><a href="evernote://s/n/n/g4/g4">d</a></en-note>`
	dest := newFakeDest(map[string]string{"n1": body})
	p := NewProcessor(dest, Options{
		Resolver: newResolver(t,
			[]domain.LegacyNote{
				{GUID: "g1", Title: "A", CreatedAt: 1},
				{GUID: "g2", Title: "B", CreatedAt: 2},
				{GUID: "g3", Title: "C", CreatedAt: 3},
			},
			[]domain.DestinationNote{
				{ID: "d1", Title: "A", CreatedAt: 1},
				{ID: "d2", Title: "B", CreatedAt: 2},
				{ID: "d3a", Title: "C", CreatedAt: 3},
				{ID: "d3b", Title: "C", CreatedAt: 3},
			}),
		Logger: zaptest.NewLogger(t),
	})

	out, err := p.ProcessNote(context.Background(), domain.NoteStub{ID: "n1", Title: "Index", Dialect: domain.DialectTagged})
	require.NoError(t, err)
	assert.Equal(t, 1, dest.updates["n1"])
	assert.Equal(t, Outcome{NoteID: "n1", Title: "Index", LinksSeen: 4, LinksUpdated: 2, LinksFailed: 2, Written: true}, out)

	updated := dest.bodies["n1"]
	assert.Contains(t, updated, `<a href="joplin://d1" title="A">a</a>`)
	assert.Contains(t, updated, `<a href="joplin://d2" title="B">b</a>`)
	assert.Contains(t, updated, `<a href="evernote://s/n/n/g3/g3">c</a>`)
	assert.Contains(t, updated, `<a href="evernote://s/n/n/g4/g4">d</a>`)
}

func TestProcessNote_RerunIsNoop(t *testing.T) {
	dest := newFakeDest(map[string]string{"n1": "[x](evernote://s/n/n/g1/g1)"})
	p := NewProcessor(dest, Options{
		Resolver: newResolver(t,
			[]domain.LegacyNote{{GUID: "g1", Title: "X", CreatedAt: 1}},
			[]domain.DestinationNote{{ID: "d1", Title: "X", CreatedAt: 1}}),
	})
	note := domain.NoteStub{ID: "n1", Dialect: domain.DialectLightweight}

	_, err := p.ProcessNote(context.Background(), note)
	require.NoError(t, err)
	first := dest.bodies["n1"]

	out, err := p.ProcessNote(context.Background(), note)
	require.NoError(t, err)
	assert.False(t, out.Written)
	assert.Equal(t, 0, out.LinksSeen)
	assert.Equal(t, first, dest.bodies["n1"])
	assert.Equal(t, 1, dest.updates["n1"])
}

func TestProcessNote_UnknownGUIDLeavesBody(t *testing.T) {
	body := "[x](evernote://s/n/n/zz/zz)"
	dest := newFakeDest(map[string]string{"n1": body})
	p := NewProcessor(dest, Options{
		Resolver: newResolver(t, nil, nil),
	})

	out, err := p.ProcessNote(context.Background(), domain.NoteStub{ID: "n1", Dialect: domain.DialectLightweight})
	require.NoError(t, err)
	assert.Equal(t, 1, out.LinksFailed)
	assert.Equal(t, body, dest.bodies["n1"])
	assert.Zero(t, dest.updates["n1"])
}

func TestProcessNote_MalformedNotCountedAsFailure(t *testing.T) {
	dest := newFakeDest(map[string]string{"n1": "[x](evernote://s/n/g1)"})
	p := NewProcessor(dest, Options{Resolver: newResolver(t, nil, nil)})

	out, err := p.ProcessNote(context.Background(), domain.NoteStub{ID: "n1", Dialect: domain.DialectLightweight})
	require.NoError(t, err)
	assert.Equal(t, 1, out.LinksMalformed)

	s := p.Reporter().Summary()
	assert.Equal(t, 0, s.LinksFailed)
	assert.Equal(t, 0, s.LinksSeen)
	assert.Equal(t, 1, s.LinksMalformed)
}

func TestProcessNote_UnknownDialect(t *testing.T) {
	dest := newFakeDest(map[string]string{"n1": "[x](evernote://s/n/n/g1/g1)"})
	p := NewProcessor(dest, Options{Resolver: newResolver(t, nil, nil)})

	_, err := p.ProcessNote(context.Background(), domain.NoteStub{ID: "n1", Dialect: 3})
	var uerr *extract.UnknownDialectError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, domain.Dialect(3), uerr.Dialect)
	assert.ErrorContains(t, uerr.Unwrap(), "must be one of")
	assert.Equal(t, 1, p.Reporter().Count(report.NoteSkipped))
	assert.Empty(t, dest.updates)
}

func TestProcessNote_WriteFailureRollsBackCounts(t *testing.T) {
	dest := newFakeDest(map[string]string{"n1": "[x](evernote://s/n/n/g1/g1)"})
	dest.failPut["n1"] = true
	rec := &fakeRecorder{}
	p := NewProcessor(dest, Options{
		Resolver: newResolver(t,
			[]domain.LegacyNote{{GUID: "g1", Title: "X", CreatedAt: 1}},
			[]domain.DestinationNote{{ID: "d1", Title: "X", CreatedAt: 1}}),
		Recorder: rec,
		RunID:    "run",
	})

	out, err := p.ProcessNote(context.Background(), domain.NoteStub{ID: "n1", Title: "Idx", Dialect: domain.DialectLightweight})
	var wf *WriteFailure
	require.ErrorAs(t, err, &wf)
	assert.Equal(t, 1, wf.Links)
	assert.False(t, out.Written)
	assert.Equal(t, 0, out.LinksUpdated)

	s := p.Reporter().Summary()
	assert.Equal(t, 1, s.LinksSeen)
	assert.Equal(t, 0, s.LinksUpdated)
	assert.Equal(t, 0, s.LinksFailed)
	assert.Equal(t, 1, s.WriteFailures)
	assert.Empty(t, rec.entries)
}

func TestProcessNote_DryRunWritesNothing(t *testing.T) {
	body := "line one\n[x](evernote://s/n/n/g1/g1)\nline three\n"
	dest := newFakeDest(map[string]string{"n1": body})
	rec := &fakeRecorder{}
	var diff bytes.Buffer
	p := NewProcessor(dest, Options{
		Resolver: newResolver(t,
			[]domain.LegacyNote{{GUID: "g1", Title: "X", CreatedAt: 1}},
			[]domain.DestinationNote{{ID: "d1", Title: "X", CreatedAt: 1}}),
		Recorder: rec,
		RunID:    "run",
		DryRun:   true,
		DiffOut:  &diff,
	})

	out, err := p.ProcessNote(context.Background(), domain.NoteStub{ID: "n1", Title: "Idx", Dialect: domain.DialectLightweight})
	require.NoError(t, err)
	assert.False(t, out.Written)
	assert.Equal(t, 1, out.LinksUpdated)
	assert.Equal(t, body, dest.bodies["n1"])
	assert.Empty(t, rec.entries)
	assert.Contains(t, diff.String(), "-[x](evernote://s/n/n/g1/g1)")
	assert.Contains(t, diff.String(), "+[x](:/d1)")
}

func TestRun_IsolatesNoteErrors(t *testing.T) {
	dest := newFakeDest(map[string]string{
		"n1": "[a](evernote://s/n/n/g1/g1)",
		"n2": "[b](evernote://s/n/n/g1/g1)",
		"n3": "[c](evernote://s/n/n/g1/g1)",
		"n4": "[d](evernote://s/n/n/g1/g1)",
	})
	dest.failGet["n2"] = true
	dest.failPut["n3"] = true

	for _, jobs := range []int{1, 4} {
		p := NewProcessor(dest, Options{
			Resolver: newResolver(t,
				[]domain.LegacyNote{{GUID: "g1", Title: "X", CreatedAt: 1}},
				[]domain.DestinationNote{{ID: "d1", Title: "X", CreatedAt: 1}}),
			Jobs: jobs,
		})
		notes := []domain.NoteStub{
			{ID: "n1", Dialect: domain.DialectLightweight},
			{ID: "n2", Dialect: domain.DialectLightweight},
			{ID: "n3", Dialect: domain.DialectLightweight},
			{ID: "n4", Dialect: domain.DialectTagged + 5},
			{ID: "n1", Dialect: domain.DialectLightweight},
		}

		result := p.Run(context.Background(), notes)
		assert.Equal(t, 4, result.TotalItems, "jobs=%d", jobs)
		assert.Equal(t, 3, result.Failed, "jobs=%d", jobs)

		s := p.Reporter().Summary()
		assert.Equal(t, 1, s.WriteFailures, "jobs=%d", jobs)
		assert.Equal(t, 2, s.NotesSkipped, "jobs=%d", jobs)
	}
	assert.Equal(t, "[a](:/d1)", dest.bodies["n1"])
	assert.Equal(t, 1, dest.updates["n1"])
}

func TestProcessNote_JournalsToSQLite(t *testing.T) {
	database, _ := testutil.TempJournal(t)
	j := journal.New(database)
	ctx := context.Background()
	runID, err := j.StartRun(ctx, "", false)
	require.NoError(t, err)

	dest := newFakeDest(map[string]string{"n1": `<en-note><a href="evernote://s/n/n/g1/g1">x</a></en-note>`})
	p := NewProcessor(dest, Options{
		Resolver: newResolver(t,
			[]domain.LegacyNote{{GUID: "g1", Title: "X", CreatedAt: 1}},
			[]domain.DestinationNote{{ID: "d1", Title: "X", CreatedAt: 1}}),
		Recorder: j,
		RunID:    runID,
	})

	_, err = p.ProcessNote(ctx, domain.NoteStub{ID: "n1", Title: "Idx", Dialect: domain.DialectTagged})
	require.NoError(t, err)

	entries, err := j.ListRewrites(ctx, runID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evernote://s/n/n/g1/g1", entries[0].OldURI)
	assert.Equal(t, "joplin://d1", entries[0].NewURI)
}
