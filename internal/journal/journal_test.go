package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/relink/internal/report"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	_, err = database.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database)
}

func TestMigrate_Idempotent(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	defer database.Close()

	_, pending, err := database.MigrationStatus()
	require.NoError(t, err)
	assert.NotEmpty(t, pending)

	applied, err := database.Migrate()
	require.NoError(t, err)
	assert.Equal(t, pending, applied)

	applied, err = database.Migrate()
	require.NoError(t, err)
	assert.Empty(t, applied)

	_, pending, err = database.MigrationStatus()
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.True(t, strings.HasSuffix(database.Path(), "journal.db"))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	j := setupTestJournal(t)

	runID, err := j.StartRun(ctx, "Travel", false)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	err = j.RecordRewrites(ctx, []Entry{
		{RunID: runID, NoteID: "n1", NoteTitle: "Index", GUID: "g1", DestID: "d1", OldURI: "evernote://s/nb/nb/g1/g1", NewURI: ":/d1"},
		{RunID: runID, NoteID: "n1", NoteTitle: "Index", GUID: "g2", DestID: "d2", OldURI: "evernote://s/nb/nb/g2/g2", NewURI: ":/d2"},
	})
	require.NoError(t, err)

	summary := report.Summary{LinksSeen: 3, LinksUpdated: 2, LinksFailed: 1, NotesUpdated: 1}
	require.NoError(t, j.FinishRun(ctx, runID, summary))

	runs, err := j.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "Travel", runs[0].Notebook)
	assert.False(t, runs[0].DryRun)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, summary, runs[0].Summary)

	entries, err := j.ListRewrites(ctx, runID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "g1", entries[0].GUID)
	assert.Equal(t, ":/d2", entries[1].NewURI)

	all, err := j.ListRewrites(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFinishRun_Unknown(t *testing.T) {
	j := setupTestJournal(t)
	err := j.FinishRun(context.Background(), "missing", report.Summary{})
	assert.Error(t, err)
}

func TestRecordRewrites_UnknownRunRejected(t *testing.T) {
	j := setupTestJournal(t)
	err := j.RecordRewrites(context.Background(), []Entry{{RunID: "missing", NoteID: "n1"}})
	assert.Error(t, err)

	entries, err := j.ListRewrites(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
