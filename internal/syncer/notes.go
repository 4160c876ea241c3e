package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/starford/getnotes/internal/cache"
	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/render"
	"github.com/starford/getnotes/internal/storage"
)

const (
	notesDir     = "notes"
	responsesDir = "api_responses"
	indexFile    = "INDEX.md"
	noteDocument = "note.md"
	noteSidecar  = "note.json"
)

// NotesLister is the slice of the API client a note sync needs.
type NotesLister interface {
	ListNotes(ctx context.Context, cursor string, limit int) (*getnotes.NotesPage, error)
}

var _ NotesLister = (*getnotes.Client)(nil)

// Outcome classifies one processed note.
type Outcome string

const (
	OutcomeNew     Outcome = "new"
	OutcomeUpdated Outcome = "updated"
	OutcomeCached  Outcome = "cached"
	OutcomeFailed  Outcome = "failed"
)

// Stats are the counters of one note sync run.
type Stats struct {
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
	Processed int `json:"processed"`
	// Downloads counts assets fetched or already present; DownloadErrors
	// counts assets that could not be fetched.
	Downloads      int    `json:"downloads"`
	DownloadErrors int    `json:"download_errors"`
	Total          string `json:"total"`
	Interrupted    bool   `json:"interrupted"`
}

// NoteSync exports the personal note list into <root>/notes.
type NoteSync struct {
	client  NotesLister
	store   storage.Provider
	cache   *cache.Manifest
	fetcher Fetcher
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

// NewNoteSync wires a note sync. The manifest is loaded by Run.
func NewNoteSync(client NotesLister, store storage.Provider, manifest *cache.Manifest, fetcher Fetcher, logger *slog.Logger, opts Options) *NoteSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteSync{
		client:  client,
		store:   store,
		cache:   manifest,
		fetcher: fetcher,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Run pages through the note list until the server runs out of notes, the
// ceiling is reached, or ctx is cancelled. The cache is saved and INDEX.md
// written on every exit path. A cancelled run returns its stats with
// Interrupted set and a nil error; a page fetch failure is returned.
func (s *NoteSync) Run(ctx context.Context) (stats Stats, err error) {
	log := s.logger.With(slog.String("run_id", uuid.NewString()))

	if err := s.store.MkdirAll(notesDir); err != nil {
		return stats, err
	}
	if s.opts.SaveJSON {
		if err := s.store.MkdirAll(responsesDir); err != nil {
			return stats, err
		}
	}

	// The manifest is loaded even when forcing so that updated notes keep
	// their folders; the force flag only bypasses the freshness check.
	s.cache.Load()
	if s.cache.Count() == 0 {
		if dirs, _ := s.store.Dirs(notesDir); len(dirs) > 0 {
			abs, _ := s.store.Abs(notesDir)
			s.cache.RebuildFromDisk(abs)
		}
	}

	log.Info("note sync started",
		slog.String("output", s.store.Root()),
		slog.Int("limit", s.opts.Limit),
		slog.Int("page_size", s.opts.pageSize()),
		slog.Duration("delay", s.opts.Delay),
		slog.Bool("force", s.opts.Force),
		slog.Bool("save_json", s.opts.SaveJSON),
		slog.Int("cached_notes", s.cache.Count()),
	)

	defer func() {
		if saveErr := s.cache.Save(); saveErr != nil {
			log.Error("cache save failed", slog.String("error", saveErr.Error()))
			if err == nil {
				err = saveErr
			}
		}
		if idxErr := s.writeIndex(stats); idxErr != nil {
			log.Error("index write failed", slog.String("error", idxErr.Error()))
		}
		log.Info("note sync finished",
			slog.Int("processed", stats.Processed),
			slog.Int("new", stats.New),
			slog.Int("updated", stats.Updated),
			slog.Int("cached", stats.Cached),
			slog.Int("failed", stats.Failed),
			slog.Int("download_errors", stats.DownloadErrors),
			slog.Int("cache_entries", s.cache.Count()),
			slog.Bool("interrupted", stats.Interrupted),
		)
	}()

	err = s.pages(ctx, log, &stats)
	if IsInterrupted(err) {
		log.Warn("note sync interrupted", slog.Int("processed", stats.Processed))
		stats.Interrupted = true
		err = nil
	}
	return stats, err
}

func (s *NoteSync) pages(ctx context.Context, log *slog.Logger, stats *Stats) error {
	cursor := ""
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("fetching page", slog.Int("page", page), slog.String("since_id", cursor))

		p, err := s.client.ListNotes(ctx, cursor, s.opts.pageSize())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("page fetch failed", slog.Int("page", page), slog.String("error", err.Error()),
				slog.String("hint", "credentials may have expired, run: getnotes login"))
			return fmt.Errorf("syncer: page %d: %w", page, err)
		}

		if s.opts.SaveJSON {
			name := path.Join(responsesDir, fmt.Sprintf("page_%04d.json", page))
			if err := s.store.Write(name, indentRaw(p.Body)); err != nil {
				log.Warn("page dump failed", slog.String("file", name), slog.String("error", err.Error()))
			}
		}
		if stats.Total == "" {
			stats.Total = p.Total
			log.Info("server note count", slog.String("total", p.Total))
		}

		if len(p.Notes) == 0 {
			if p.HasMore {
				log.Warn("empty page while more data was announced, stopping", slog.Int("page", page))
			} else {
				log.Info("empty page, stopping", slog.Int("page", page))
			}
			return nil
		}
		log.Info("page received", slog.Int("page", page), slog.Int("notes", len(p.Notes)))

		for _, n := range p.Notes {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := s.process(ctx, n, stats)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error("note failed", slog.String("note_id", n.ID()), slog.String("error", err.Error()))
				outcome = OutcomeFailed
			}
			s.count(outcome, stats)
			stats.Processed++
			log.Info("note", slog.Int("seq", stats.Processed), slog.String("note_id", n.ID()),
				slog.String("title", shorten(n.Title(), 40)), slog.String("outcome", string(outcome)))

			if stats.Processed%flushEvery == 0 {
				if err := s.cache.Save(); err != nil {
					log.Warn("periodic cache save failed", slog.String("error", err.Error()))
				}
			}
			if s.opts.Limit > 0 && stats.Processed >= s.opts.Limit {
				log.Info("ceiling reached, stopping", slog.Int("limit", s.opts.Limit),
					slog.String("hint", "use --all to export every note"))
				return nil
			}
		}

		if !p.HasMore {
			log.Info("all notes exported")
			return nil
		}
		cursor = p.LastCursor()
		if err := sleep(ctx, s.opts.Delay); err != nil {
			return err
		}
	}
}

func (s *NoteSync) count(o Outcome, stats *Stats) {
	switch o {
	case OutcomeNew:
		stats.New++
	case OutcomeUpdated:
		stats.Updated++
	case OutcomeCached:
		stats.Cached++
	case OutcomeFailed:
		stats.Failed++
	}
}

// process exports one note. A cancelled context aborts before the document
// and cache entry are written, so the note is picked up again next run.
func (s *NoteSync) process(ctx context.Context, n models.Note, stats *Stats) (Outcome, error) {
	id := n.ID()
	if !s.opts.Force && s.cache.IsCached(n) {
		return OutcomeCached, nil
	}

	entry, isUpdate := s.cache.Get(id)
	folder := render.FolderName(n.CreatedAt(), n.Title(), id)
	switch {
	case isUpdate && entry.FolderName != "":
		folder = entry.FolderName
	case !isUpdate && s.store.Exists(path.Join(notesDir, folder)):
		folder = render.CollisionName(folder, id)
	}
	dir := path.Join(notesDir, folder)
	if err := s.store.MkdirAll(dir); err != nil {
		return "", err
	}

	for _, asset := range render.StyleNote.Plan(n).Files() {
		dest, err := s.store.Abs(path.Join(dir, asset.RelPath()))
		if err != nil {
			return "", err
		}
		if s.fetcher.Fetch(ctx, asset.URL, dest, s.opts.Force) {
			stats.Downloads++
		} else {
			stats.DownloadErrors++
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc := []byte(render.Markdown(n, render.StyleNote))
	docPath := path.Join(dir, noteDocument)
	if err := s.store.Write(docPath, doc); err != nil {
		return "", err
	}
	if s.opts.SaveJSON {
		data, err := prettyJSON(n.Raw())
		if err != nil {
			return "", fmt.Errorf("encode sidecar: %w", err)
		}
		if err := s.store.Write(path.Join(dir, noteSidecar), data); err != nil {
			return "", err
		}
	}
	if s.opts.Indexer != nil {
		if err := s.opts.Indexer.IndexDocument(docPath, doc); err != nil {
			s.logger.Warn("local index update failed", slog.String("path", docPath), slog.String("error", err.Error()))
		}
	}

	s.cache.Update(id, cache.EntryFor(n, folder))
	if isUpdate {
		return OutcomeUpdated, nil
	}
	return OutcomeNew, nil
}

// writeIndex lists every folder under notes/ in INDEX.md. Titles and IDs come
// from note.json when present, else from the cache entry owning the folder.
func (s *NoteSync) writeIndex(stats Stats) error {
	folders, err := s.store.Dirs(notesDir)
	if err != nil {
		return err
	}
	owners := make(map[string]string)
	entries := s.cache.Entries()
	for id, e := range entries {
		owners[e.FolderName] = id
	}

	x := render.ExportIndex{
		At:        s.now(),
		Processed: stats.Processed,
		Total:     stats.Total,
		Counts: render.Counts{
			New:     stats.New,
			Updated: stats.Updated,
			Cached:  stats.Cached,
			Failed:  stats.Failed,
		},
	}
	if x.Total == "" {
		x.Total = "?"
	}
	for _, folder := range folders {
		dir := path.Join(notesDir, folder)
		sidecar := path.Join(dir, noteSidecar)
		switch {
		case s.store.Exists(sidecar):
			row := render.IndexRow{Folder: folder}
			if abs, err := s.store.Abs(sidecar); err == nil {
				if n, err := cache.ReadSidecar(abs); err == nil {
					row.NoteID = n.Document().String("note_id")
					row.Title = n.Title()
				}
			}
			x.Rows = append(x.Rows, row)
		case s.store.Exists(path.Join(dir, noteDocument)):
			row := render.IndexRow{Folder: folder}
			if id, ok := owners[folder]; ok {
				row.NoteID = id
				row.Title = entries[id].Title
			}
			x.Rows = append(x.Rows, row)
		}
	}
	return s.store.Write(indexFile, []byte(x.Markdown()))
}
