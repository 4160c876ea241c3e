package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/getnotes/internal/cache"
	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/storage"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func noteOf(t *testing.T, s string) models.Note {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return models.NewNote(raw)
}

type fakeLister struct {
	pages   []*getnotes.NotesPage
	err     error
	cursors []string
	// before runs ahead of serving page index i.
	before func(i int)
}

func (f *fakeLister) ListNotes(_ context.Context, cursor string, _ int) (*getnotes.NotesPage, error) {
	i := len(f.cursors)
	f.cursors = append(f.cursors, cursor)
	if f.before != nil {
		f.before(i)
	}
	if i >= len(f.pages) {
		if f.err != nil {
			return nil, f.err
		}
		return &getnotes.NotesPage{Total: "?"}, nil
	}
	return f.pages[i], nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	urls  []string
	fails map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dest string, force bool) bool {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if f.fails[url] {
		return false
	}
	if _, err := os.Stat(dest); err == nil && !force {
		return true
	}
	_ = os.MkdirAll(filepath.Dir(dest), 0o755)
	return os.WriteFile(dest, []byte(url), 0o644) == nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

// countingStore records writes of note documents. Writes to paths under
// failDir fail.
type countingStore struct {
	storage.Provider
	docWrites int
	failDir   string
}

func (c *countingStore) Write(path string, content []byte) error {
	if c.failDir != "" && strings.HasPrefix(path, c.failDir+"/") {
		return errors.New("disk full")
	}
	if strings.HasSuffix(path, "/note.md") {
		c.docWrites++
	}
	return c.Provider.Write(path, content)
}

type env struct {
	store    *countingStore
	manifest string
	fetcher  *fakeFetcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	return &env{
		store:    &countingStore{Provider: fs},
		manifest: filepath.Join(t.TempDir(), "cfg", cache.FileName),
		fetcher:  &fakeFetcher{fails: map[string]bool{}},
	}
}

func (e *env) run(t *testing.T, l NotesLister, opts Options) Stats {
	t.Helper()
	s := NewNoteSync(l, e.store, cache.New(e.manifest, quiet()), e.fetcher, quiet(), opts)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	return stats
}

func threeNotes(t *testing.T, versions ...int) []models.Note {
	t.Helper()
	if len(versions) == 0 {
		versions = []int{1, 1, 1}
	}
	var out []models.Note
	for i := 0; i < 3; i++ {
		out = append(out, noteOf(t, fmt.Sprintf(`{
			"id": "c%[1]d", "note_id": "n%[1]d", "title": "笔记%[1]d", "version": %[2]d,
			"updated_at": "2024-01-0%[1]d 00:00:00", "created_at": "2024-01-0%[1]d 08:00:00",
			"content": "正文%[1]d",
			"attachments": [{"url": "https://cdn/a%[1]d.mp3", "type": "audio"}]
		}`, i+1, versions[i])))
	}
	return out
}

func onePage(notes []models.Note) *fakeLister {
	return &fakeLister{pages: []*getnotes.NotesPage{{Notes: notes, Total: "3", Body: []byte(`{"c":{}}`)}}}
}

func TestFirstSyncCreatesEverything(t *testing.T) {
	e := newEnv(t)
	stats := e.run(t, onePage(threeNotes(t)), Options{})

	assert.Equal(t, 3, stats.New)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 3, e.fetcher.calls())

	m := cache.New(e.manifest, quiet())
	assert.Equal(t, 3, m.Load())

	idx, err := e.store.Read("INDEX.md")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(idx), "](notes/"))
	assert.Contains(t, string(idx), "| 1 | `n1` | [笔记1](notes/20240101_080000_笔记1/note.md) |")

	md, err := e.store.Read("notes/20240101_080000_笔记1/note.md")
	require.NoError(t, err)
	assert.Contains(t, string(md), "[attachment_1.mp3](attachments/attachment_1.mp3)")
	assert.True(t, e.store.Exists("notes/20240101_080000_笔记1/attachments/attachment_1.mp3"))
}

func TestSecondSyncIsCached(t *testing.T) {
	e := newEnv(t)
	e.run(t, onePage(threeNotes(t)), Options{})
	e.fetcher.urls = nil
	e.store.docWrites = 0

	stats := e.run(t, onePage(threeNotes(t)), Options{})
	assert.Equal(t, 3, stats.Cached)
	assert.Zero(t, stats.New+stats.Updated)
	assert.Zero(t, e.fetcher.calls(), "no downloads attempted")
	assert.Zero(t, e.store.docWrites, "no documents rewritten")
}

func TestChangedVersionUpdatesInPlace(t *testing.T) {
	e := newEnv(t)
	e.run(t, onePage(threeNotes(t)), Options{})

	changed := threeNotes(t, 1, 2, 1)
	changed[1] = noteOf(t, `{"id": "c2", "note_id": "n2", "title": "新标题", "version": 2,
		"updated_at": "2024-01-02 00:00:00", "created_at": "2024-01-02 08:00:00"}`)
	stats := e.run(t, onePage(changed), Options{})

	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 2, stats.Cached)

	dirs, err := e.store.Dirs("notes")
	require.NoError(t, err)
	assert.Len(t, dirs, 3, "update keeps the original folder")

	m := cache.New(e.manifest, quiet())
	m.Load()
	entry, ok := m.Get("n2")
	require.True(t, ok)
	assert.Equal(t, "20240102_080000_笔记2", entry.FolderName)
	assert.Equal(t, "新标题", entry.Title)

	md, _ := e.store.Read("notes/20240102_080000_笔记2/note.md")
	assert.Contains(t, string(md), "# 新标题")
}

func TestFailingAttachmentDoesNotStopRun(t *testing.T) {
	e := newEnv(t)
	e.fetcher.fails["https://cdn/a2.mp3"] = true

	stats := e.run(t, onePage(threeNotes(t)), Options{})
	assert.Equal(t, 3, stats.New)
	assert.Equal(t, 1, stats.DownloadErrors)
	assert.Equal(t, 2, stats.Downloads)
	assert.True(t, e.store.Exists("notes/20240102_080000_笔记2/note.md"))
	assert.False(t, e.store.Exists("notes/20240102_080000_笔记2/attachments/attachment_1.mp3"))
	assert.True(t, e.store.Exists("notes/20240103_080000_笔记3/note.md"))
}

func TestFailedWriteIsCountedAndRetried(t *testing.T) {
	e := newEnv(t)
	e.store.failDir = "notes/20240102_080000_笔记2"

	stats := e.run(t, onePage(threeNotes(t)), Options{})
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 3, stats.Processed)
	assert.True(t, e.store.Exists("notes/20240103_080000_笔记3/note.md"), "run continues past the failure")

	m := cache.New(e.manifest, quiet())
	assert.Equal(t, 2, m.Load())
	_, ok := m.Get("n2")
	assert.False(t, ok, "failed note must not be cached")

	e.store.failDir = ""
	stats = e.run(t, onePage(threeNotes(t)), Options{})
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 2, stats.Cached)
	m = cache.New(e.manifest, quiet())
	m.Load()
	entry, ok := m.Get("n2")
	require.True(t, ok)
	assert.True(t, e.store.Exists("notes/"+entry.FolderName+"/note.md"))
}

func TestCeilingStopsMidPage(t *testing.T) {
	e := newEnv(t)
	l := &fakeLister{pages: []*getnotes.NotesPage{
		{Notes: threeNotes(t), HasMore: true, Total: "6"},
		{Notes: threeNotes(t), Total: "6"},
	}}
	stats := e.run(t, l, Options{Limit: 2})

	assert.Equal(t, 2, stats.Processed)
	assert.Len(t, l.cursors, 1)
	assert.False(t, e.store.Exists("notes/20240103_080000_笔记3"))
}

func TestCursorIsLastNoteID(t *testing.T) {
	e := newEnv(t)
	first := threeNotes(t)
	l := &fakeLister{pages: []*getnotes.NotesPage{
		{Notes: first, HasMore: true, Total: "4"},
		{Notes: []models.Note{noteOf(t, `{"id": "c9", "note_id": "n9", "title": "最后"}`)}, Total: "4"},
	}}
	stats := e.run(t, l, Options{})

	assert.Equal(t, []string{"", "c3"}, l.cursors)
	assert.Equal(t, 4, stats.New)
	assert.Equal(t, "4", stats.Total)
}

func TestEmptyPageEndsRunEvenWithHasMore(t *testing.T) {
	e := newEnv(t)
	l := &fakeLister{pages: []*getnotes.NotesPage{
		{Notes: threeNotes(t), HasMore: true, Total: "9"},
		{HasMore: true, Total: "9"},
	}}
	stats := e.run(t, l, Options{})
	assert.Equal(t, 3, stats.Processed)
	assert.Len(t, l.cursors, 2)
}

func TestPageErrorStillFlushes(t *testing.T) {
	e := newEnv(t)
	boom := errors.New("502 bad gateway")
	l := &fakeLister{
		pages: []*getnotes.NotesPage{{Notes: threeNotes(t), HasMore: true, Total: "9"}},
		err:   boom,
	}
	s := NewNoteSync(l, e.store, cache.New(e.manifest, quiet()), e.fetcher, quiet(), Options{})
	stats, err := s.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, stats.New)

	m := cache.New(e.manifest, quiet())
	assert.Equal(t, 3, m.Load(), "partial progress persisted")
	assert.True(t, e.store.Exists("INDEX.md"))
}

func TestPeriodicFlush(t *testing.T) {
	e := newEnv(t)
	var notes []models.Note
	for i := 0; i < 55; i++ {
		notes = append(notes, noteOf(t, fmt.Sprintf(`{"id": "c%d", "note_id": "n%d", "title": "t%d"}`, i, i, i)))
	}
	onDisk := -1
	l := &fakeLister{
		pages: []*getnotes.NotesPage{{Notes: notes, HasMore: true, Total: "55"}},
		before: func(i int) {
			if i == 1 {
				onDisk = cache.New(e.manifest, quiet()).Load()
			}
		},
	}
	e.run(t, l, Options{})
	assert.Equal(t, 50, onDisk)
}

func TestCancelledRunIsInterrupted(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewNoteSync(onePage(threeNotes(t)), e.store, cache.New(e.manifest, quiet()), e.fetcher, quiet(), Options{})
	stats, err := s.Run(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Interrupted)
	assert.Zero(t, stats.Processed)
	assert.True(t, e.store.Exists("INDEX.md"))
}

func TestFreshNameCollision(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Write("notes/20240101_080000_笔记1/note.md", []byte("other")))

	notes := threeNotes(t)[:1]
	e.run(t, onePage(notes), Options{})

	assert.True(t, e.store.Exists("notes/20240101_080000_笔记1_n1/note.md"))
	other, _ := e.store.Read("notes/20240101_080000_笔记1/note.md")
	assert.Equal(t, "other", string(other))
}

func TestCacheRebuiltFromSidecars(t *testing.T) {
	e := newEnv(t)
	e.run(t, onePage(threeNotes(t)), Options{SaveJSON: true})
	require.NoError(t, os.Remove(e.manifest))
	e.fetcher.urls = nil

	stats := e.run(t, onePage(threeNotes(t)), Options{})
	assert.Equal(t, 3, stats.Cached, "lost manifest recovered from note.json files")
	assert.Zero(t, e.fetcher.calls())
}

func TestSaveJSONWritesSidecarsAndDumps(t *testing.T) {
	e := newEnv(t)
	e.run(t, onePage(threeNotes(t)), Options{SaveJSON: true})

	assert.True(t, e.store.Exists("api_responses/page_0001.json"))
	data, err := e.store.Read("notes/20240101_080000_笔记1/note.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "笔记1"`)
}

type recordingIndexer struct{ paths []string }

func (r *recordingIndexer) IndexDocument(path string, _ []byte) error {
	r.paths = append(r.paths, path)
	return nil
}

func TestIndexerReceivesDocuments(t *testing.T) {
	e := newEnv(t)
	ix := &recordingIndexer{}
	e.run(t, onePage(threeNotes(t)), Options{Indexer: ix})
	assert.Equal(t, []string{
		"notes/20240101_080000_笔记1/note.md",
		"notes/20240102_080000_笔记2/note.md",
		"notes/20240103_080000_笔记3/note.md",
	}, ix.paths)
}

func TestForceRedownloadsKeepingFolders(t *testing.T) {
	e := newEnv(t)
	e.run(t, onePage(threeNotes(t)), Options{})
	e.fetcher.urls = nil

	stats := e.run(t, onePage(threeNotes(t)), Options{Force: true})
	assert.Equal(t, 3, stats.Updated)
	assert.Equal(t, 3, e.fetcher.calls())
	dirs, _ := e.store.Dirs("notes")
	assert.Len(t, dirs, 3)
}
