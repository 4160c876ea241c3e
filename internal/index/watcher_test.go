package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/getnotes/internal/storage"
)

// watcherTestEnv sets up an export dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	exportDir := t.TempDir()
	store, err := storage.NewFS(exportDir)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "getnotes-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return exportDir, store, db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	exportDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	_ = os.MkdirAll(filepath.Join(exportDir, "notes", "a"), 0o755)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, exportDir, logger, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = store.Write("notes/a/note.md", []byte("# New"))
	_ = os.WriteFile(filepath.Join(exportDir, "notes", "a", "other.md"), []byte("# Ignored"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("notes/a/note.md")
		return cs != ""
	}, "new note not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:notes/a/note.md" {
				return true
			}
		}
		return false
	}, "expected created:notes/a/note.md callback")

	if cs, _ := db.GetChecksum("notes/a/other.md"); cs != "" {
		t.Error("only note.md documents should be indexed")
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	exportDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, exportDir, logger, nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(exportDir, "notes", "deep")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "note.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("notes/deep/note.md")
		return cs != ""
	}, "note in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	exportDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_ = store.Write("notes/del/note.md", []byte("# Delete Me"))
	_ = Sync(db, store, logger)

	cs, _ := db.GetChecksum("notes/del/note.md")
	if cs == "" {
		t.Fatal("precondition: note should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, exportDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(exportDir, "notes", "del", "note.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("notes/del/note.md")
		return cs == ""
	}, "deleted note still in index")
}

func TestWatcher_FolderRenameReconciles(t *testing.T) {
	exportDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_ = store.Write("notes/old/note.md", []byte("# Rename"))
	_ = Sync(db, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, exportDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(exportDir, "notes", "old"), filepath.Join(exportDir, "notes", "renamed"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("notes/old/note.md")
		newCS, _ := db.GetChecksum("notes/renamed/note.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestWatcher_BurstReportsOnce(t *testing.T) {
	exportDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	_ = os.MkdirAll(filepath.Join(exportDir, "notes", "b"), 0o755)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), events...)
	}

	go Watch(ctx, db, store, exportDir, logger, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	for _, body := range []string{"# Draft", "# Draft 2", "# Final"} {
		_ = store.Write("notes/b/note.md", []byte(body))
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return len(snapshot()) > 0
	}, "no callback after burst")
	time.Sleep(3 * settleDelay)
	if got := snapshot(); len(got) != 1 || got[0] != "created:notes/b/note.md" {
		t.Fatalf("events = %v, want one created", got)
	}

	// Same bytes again changes nothing.
	_ = store.Write("notes/b/note.md", []byte("# Final"))
	time.Sleep(4 * settleDelay)
	if got := snapshot(); len(got) != 1 {
		t.Fatalf("unchanged rewrite reported: %v", got)
	}

	_ = store.Write("notes/b/note.md", []byte("# Final, edited"))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got := snapshot()
		return len(got) == 2 && got[1] == "updated:notes/b/note.md"
	}, "edit not reported as updated")
}
