// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/relink/internal/journal"
)

// TempJournal creates a migrated journal in a temp directory
func TempJournal(t *testing.T) (*journal.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	database, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Failed to create test journal: %v", err)
	}
	if _, err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	return database, path
}

// WriteFile writes content to a file in dir and returns its path
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}
