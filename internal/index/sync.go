package index

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/getnotes/internal/checksum"
	"github.com/starford/getnotes/internal/parser"
	"github.com/starford/getnotes/internal/storage"
)

// DocumentName is the rendered note file tracked by the index.
const DocumentName = "note.md"

// Sync walks the export tree and brings the index up to date:
//   - new/changed note documents are parsed and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.Documents("", DocumentName)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexDocument upserts a freshly written note document. path is relative to
// the export root.
func (db *DB) IndexDocument(path string, data []byte) error {
	return indexFile(db, filepath.ToSlash(path), data, time.Now())
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, path string, data []byte, updated time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}

	row := NoteRow{
		Path:      path,
		NoteID:    res.NoteID,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		UpdatedAt: updated,
	}
	return db.UpsertNote(row, res.Body)
}
