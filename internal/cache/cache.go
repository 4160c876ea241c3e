// Package cache tracks which notes have been exported and at which version.
//
// The manifest is a single JSON object keyed by note ID. An entry is current
// only when both its version and its updated_at equal the remote note's; the
// comparison is equality, not ordering, so any change forces a re-export.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"

	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/storage"
)

// FileName is the manifest file name. It lives at the root of the export
// tree it describes.
const FileName = "cache_manifest.json"

// Entry is the bookkeeping for one exported note.
type Entry struct {
	Version    json.RawMessage `json:"version"`
	UpdatedAt  string          `json:"updated_at"`
	FolderName string          `json:"folder_name"`
	Title      string          `json:"title"`
	CreatedAt  string          `json:"created_at"`
}

// EntryFor builds the entry recording n as exported into folder.
func EntryFor(n models.Note, folder string) Entry {
	return Entry{
		Version:    n.Version(),
		UpdatedAt:  n.UpdatedAt(),
		FolderName: folder,
		Title:      n.Title(),
		CreatedAt:  n.CreatedAt(),
	}
}

// Manifest is the in-memory cache plus its backing file. It is not safe for
// concurrent use; a sync run owns it.
type Manifest struct {
	path    string
	entries map[string]Entry
	logger  *slog.Logger
}

// New returns an empty manifest backed by path. Call Load to read it.
func New(path string, logger *slog.Logger) *Manifest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manifest{path: path, entries: map[string]Entry{}, logger: logger}
}

// Path returns the backing file path.
func (m *Manifest) Path() string { return m.path }

// Load replaces the in-memory state with the file contents. A missing file
// leaves the cache empty; an unreadable or corrupt one is logged and treated
// as empty. It returns the number of entries loaded.
func (m *Manifest) Load() int {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.entries = map[string]Entry{}
		return 0
	}
	if err != nil {
		m.logger.Warn("cache manifest unreadable, starting empty", slog.String("path", m.path), slog.Any("err", err))
		m.entries = map[string]Entry{}
		return 0
	}
	entries := map[string]Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		m.logger.Warn("cache manifest corrupt, starting empty", slog.String("path", m.path), slog.Any("err", err))
		entries = map[string]Entry{}
	}
	m.entries = entries
	return len(entries)
}

// Save writes the manifest atomically, creating the parent directory.
func (m *Manifest) Save() error {
	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := storage.WriteFileAtomic(m.path, data, 0o644); err != nil {
		return fmt.Errorf("cache: save: %w", err)
	}
	return nil
}

// IsCached reports whether n has an entry whose version and updated_at both
// match the remote values.
func (m *Manifest) IsCached(n models.Note) bool {
	e, ok := m.entries[n.ID()]
	if !ok {
		return false
	}
	return sameJSON(e.Version, n.Version()) && e.UpdatedAt == n.UpdatedAt()
}

// Update overwrites the entry for id.
func (m *Manifest) Update(id string, e Entry) { m.entries[id] = e }

// Get returns the entry for id.
func (m *Manifest) Get(id string) (Entry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Count returns the number of entries.
func (m *Manifest) Count() int { return len(m.entries) }

// Entries returns a copy of all entries.
func (m *Manifest) Entries() map[string]Entry { return maps.Clone(m.entries) }

// Summary is the display form of one entry.
type Summary struct {
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	Folder    string `json:"folder"`
}

// Status describes the manifest file for `cache check`.
type Status struct {
	Exists bool               `json:"exists"`
	Count  int                `json:"count"`
	Path   string             `json:"path"`
	Notes  map[string]Summary `json:"notes,omitempty"`
}

// Check reloads the manifest and summarizes it.
func (m *Manifest) Check() Status {
	st := Status{Path: m.path}
	if _, err := os.Stat(m.path); err != nil {
		return st
	}
	st.Exists = true
	st.Count = m.Load()
	st.Notes = make(map[string]Summary, st.Count)
	for id, e := range m.entries {
		title := e.Title
		if title == "" {
			title = "(无标题)"
		}
		st.Notes[id] = Summary{Title: title, CreatedAt: e.CreatedAt, Folder: e.FolderName}
	}
	return st
}

// RebuildFromDisk scans the immediate sub-folders of dir for note.json
// sidecars and adds an entry for every note not already present. Existing
// entries always win. The manifest is saved when anything was added; the
// count of added entries is returned.
func (m *Manifest) RebuildFromDisk(dir string) int {
	folders, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("cache rebuild: cannot list folders", slog.String("dir", dir), slog.Any("err", err))
		}
		return 0
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name() < folders[j].Name() })

	added := 0
	for _, f := range folders {
		if !f.IsDir() {
			continue
		}
		sidecar := filepath.Join(dir, f.Name(), "note.json")
		n, err := ReadSidecar(sidecar)
		if err != nil {
			// Sidecars are optional; only a present but unreadable one is news.
			if !errors.Is(err, os.ErrNotExist) {
				m.logger.Warn("cache rebuild: sidecar skipped", slog.String("file", sidecar), slog.Any("err", err))
			}
			continue
		}
		id := n.ID()
		if id == "" {
			continue
		}
		if _, exists := m.entries[id]; exists {
			continue
		}
		m.entries[id] = EntryFor(n, f.Name())
		added++
	}

	if added > 0 {
		if err := m.Save(); err != nil {
			m.logger.Warn("cache rebuild not persisted", slog.Any("err", err))
		}
		m.logger.Info("cache rebuilt from disk", slog.Int("recovered", added))
	}
	return added
}

// Clear deletes the manifest file and empties memory. It returns the number
// of entries the file held.
func (m *Manifest) Clear() (int, error) {
	count := 0
	if _, err := os.Stat(m.path); err == nil {
		count = m.Load()
		if err := os.Remove(m.path); err != nil {
			return 0, fmt.Errorf("cache: clear: %w", err)
		}
	}
	m.entries = map[string]Entry{}
	return count, nil
}

// ReadSidecar decodes a note.json file into a note view.
func ReadSidecar(path string) (models.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Note{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return models.Note{}, fmt.Errorf("cache: decode %s: %w", path, err)
	}
	return models.NoteFromSidecar(raw), nil
}

// sameJSON compares two JSON values ignoring insignificant whitespace. Absent
// values compare as null.
func sameJSON(a, b json.RawMessage) bool {
	return bytes.Equal(canonical(a), canonical(b))
}

func canonical(raw json.RawMessage) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
