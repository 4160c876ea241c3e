//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "notes/fts/note.md",
		Title:     "FTS Note",
		Checksum:  "f1",
		Tags:      []string{"search"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, "The export provides powerful full-text search capabilities."); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "notes/fts/note.md" {
		t.Errorf("path = %q", results[0].Path)
	}
	// FTS5 snippet should contain bold markers.
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "gone/note.md", Checksum: "g", UpdatedAt: time.Now()}, "vanishing content")
	_ = db.DeleteNote("gone/note.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone/note.md" {
			t.Error("deleted note still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "evo/note.md", Title: "Old", Checksum: "1", UpdatedAt: now}, "original text")
	_ = db.UpsertNote(NoteRow{Path: "evo/note.md", Title: "New", Checksum: "2", UpdatedAt: now}, "replacement text")

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_CJKSubstring(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "cjk/note.md", Title: "读书", Checksum: "c", UpdatedAt: time.Now()}, "今天讨论了季度计划的安排")

	results, err := db.Search("季度计划", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "cjk/note.md" {
		t.Errorf("results = %+v, want 1 hit", results)
	}
}

func TestFTS5_QuotesAreLiteral(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "q/note.md", Checksum: "q", UpdatedAt: time.Now()}, `he said "hello world" twice`)

	if _, err := db.Search(`"hello`, 10); err != nil {
		t.Errorf("unbalanced quote should not be a syntax error: %v", err)
	}
}
