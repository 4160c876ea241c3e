package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/getnotes/internal/checksum"
	"github.com/starford/getnotes/internal/storage"
)

// Kinds passed to an EventCallback.
const (
	NoteCreated = "created"
	NoteUpdated = "updated"
	NoteDeleted = "deleted"
)

// EventCallback is called after the watcher changes the index. path is the
// note document relative to the export root.
type EventCallback func(kind string, path string)

// settleDelay is how long the tree must stay quiet before queued notes are
// re-indexed. One exported note is several writes in a row.
const settleDelay = 150 * time.Millisecond

// Watch keeps db in step with the note documents under exportRoot until ctx
// is cancelled. cb, if non-nil, hears about every entry that actually
// changed; rewriting a note with the same bytes reports nothing.
func Watch(ctx context.Context, db *DB, store storage.Provider, exportRoot string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	w := &exportWatcher{
		fs:      fw,
		db:      db,
		store:   store,
		root:    exportRoot,
		logger:  logger,
		notify:  cb,
		pending: make(map[string]struct{}),
		settle:  time.NewTimer(settleDelay),
	}
	w.settle.Stop()
	defer w.settle.Stop()

	if err := w.watchTree(exportRoot); err != nil {
		return err
	}
	// Notes present at startup are the caller's to sync.
	clear(w.pending)
	logger.Info("watcher: started", slog.String("root", exportRoot))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil
		case <-w.settle.C:
			w.flush()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.queue(ev) {
				w.settle.Reset(settleDelay)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// exportWatcher batches file events into index updates. pending holds note
// paths touched since the last flush. rescan is set when something other
// than a note vanished, typically a whole note folder moved or deleted, and
// only a full comparison of index and tree sorts that out.
type exportWatcher struct {
	fs     *fsnotify.Watcher
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	notify EventCallback

	pending map[string]struct{}
	rescan  bool
	settle  *time.Timer
}

// queue records what ev means for the index and reports whether a flush is
// needed.
func (w *exportWatcher) queue(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	switch {
	case name == DocumentName:
		return w.enqueue(ev.Name)
	case strings.HasPrefix(name, "."):
		// Staging files of atomic writes and downloads.
		return false
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil || !info.IsDir() {
			return false
		}
		if err := w.watchTree(ev.Name); err != nil {
			w.logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
		}
		return len(w.pending) > 0
	case ev.Has(fsnotify.Rename), ev.Has(fsnotify.Remove):
		w.rescan = true
		return true
	}
	return false
}

func (w *exportWatcher) enqueue(abs string) bool {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	w.pending[filepath.ToSlash(rel)] = struct{}{}
	return true
}

// watchTree adds dir and every directory below it to the watch list and
// queues the note documents already there, as when a folder is moved in.
func (w *exportWatcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			return w.fs.Add(p)
		case d.Name() == DocumentName:
			w.enqueue(p)
		}
		return nil
	})
}

func (w *exportWatcher) flush() {
	if w.rescan {
		w.reconcile()
	} else {
		for rel := range w.pending {
			w.refresh(rel)
		}
	}
	w.rescan = false
	clear(w.pending)
}

// reconcile compares every indexed checksum with the tree.
func (w *exportWatcher) reconcile() {
	indexed, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	docs, err := w.store.Documents("", DocumentName)
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	onDisk := make(map[string]bool, len(docs))
	for _, d := range docs {
		onDisk[d.Path] = true
		if indexed[d.Path] != d.Checksum {
			w.refresh(d.Path)
		}
	}
	for p := range indexed {
		if !onDisk[p] {
			w.drop(p)
		}
	}
}

// refresh brings the entry for one note document in line with the file.
func (w *exportWatcher) refresh(rel string) {
	known, _ := w.db.GetChecksum(rel)
	data, err := w.store.Read(rel)
	if errors.Is(err, fs.ErrNotExist) {
		if known != "" {
			w.drop(rel)
		}
		return
	}
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if checksum.Sum(data) == known {
		return
	}

	if err := indexFile(w.db, rel, data, time.Now()); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if known == "" {
		w.emit(NoteCreated, rel)
	} else {
		w.emit(NoteUpdated, rel)
	}
}

func (w *exportWatcher) drop(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.emit(NoteDeleted, rel)
}

func (w *exportWatcher) emit(kind, rel string) {
	w.logger.Debug("watcher: "+kind, slog.String("path", rel))
	if w.notify != nil {
		w.notify(kind, rel)
	}
}
