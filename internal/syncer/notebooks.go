package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/starford/getnotes/internal/cache"
	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/render"
	"github.com/starford/getnotes/internal/storage"
)

const (
	notebooksDir = "notebooks"
	filesDir     = "files"
	// untitledNote names folders of knowledge-base notes without a title.
	untitledNote = "无标题"
)

// ResourceLister is the slice of the API client a knowledge-base sync needs.
type ResourceLister interface {
	ListResources(ctx context.Context, alias string, dirID int64, page int) (*models.ResourcePage, error)
}

var _ ResourceLister = (*getnotes.Client)(nil)

// NotebookStats are the counters of a knowledge-base export. Notes and Files
// count every resource of that type seen, including ones already on disk.
type NotebookStats struct {
	Notes   int `json:"notes"`
	Files   int `json:"files"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *NotebookStats) add(o NotebookStats) {
	s.Notes += o.Notes
	s.Files += o.Files
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// NotebookSync exports knowledge bases into <root>/notebooks.
type NotebookSync struct {
	client  ResourceLister
	store   storage.Provider
	fetcher Fetcher
	logger  *slog.Logger
	opts    Options
	now     func() time.Time

	// existing maps note IDs to folders already exported in the current
	// knowledge base.
	existing map[string]string
}

// NewNotebookSync wires a knowledge-base sync. Limit and PageSize are unused.
func NewNotebookSync(client ResourceLister, store storage.Provider, fetcher Fetcher, logger *slog.Logger, opts Options) *NotebookSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotebookSync{
		client:  client,
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// NotebookDir returns the export folder of nb relative to the root.
func NotebookDir(nb models.Notebook) string {
	return path.Join(notebooksDir, render.SanitizeFilename(nb.Name, render.MaxFolderName))
}

// DownloadNotebook exports every directory of nb recursively and writes its
// INDEX.md.
func (s *NotebookSync) DownloadNotebook(ctx context.Context, nb models.Notebook) (NotebookStats, error) {
	var stats NotebookStats
	root := NotebookDir(nb)
	if err := s.store.MkdirAll(root); err != nil {
		return stats, err
	}
	log := s.logger.With(slog.String("notebook", nb.Name), slog.String("alias", nb.Alias))

	s.existing = s.scanExisting(root)
	if len(s.existing) > 0 {
		log.Info("existing notes found", slog.Int("count", len(s.existing)))
	}
	log.Info("notebook sync started", slog.Int64("resources", nb.ResourceCount), slog.String("output", root))

	err := s.downloadDir(ctx, log, nb.Alias, nb.RootDirID, root, &stats, 0)
	if idxErr := s.writeIndex(nb, root, stats); idxErr != nil {
		log.Error("notebook index write failed", slog.String("error", idxErr.Error()))
	}
	if err != nil {
		return stats, err
	}
	log.Info("notebook sync finished", slog.Int("notes", stats.Notes), slog.Int("files", stats.Files),
		slog.Int("skipped", stats.Skipped), slog.Int("failed", stats.Failed))
	return stats, nil
}

// DownloadAll exports each notebook in turn. A failing notebook is logged and
// the rest still run; all failures are returned together.
func (s *NotebookSync) DownloadAll(ctx context.Context, notebooks []models.Notebook) (NotebookStats, error) {
	var (
		total NotebookStats
		errs  error
	)
	s.logger.Info("exporting notebooks", slog.Int("count", len(notebooks)))
	for i, nb := range notebooks {
		s.logger.Info("notebook", slog.Int("seq", i+1), slog.Int("of", len(notebooks)), slog.String("name", nb.Name))
		st, err := s.DownloadNotebook(ctx, nb)
		total.add(st)
		if err != nil {
			if ctx.Err() != nil {
				return total, multierr.Append(errs, ctx.Err())
			}
			s.logger.Error("notebook failed", slog.String("name", nb.Name), slog.String("error", err.Error()))
			errs = multierr.Append(errs, fmt.Errorf("notebook %s: %w", nb.Name, err))
		}
		if err := sleep(ctx, s.opts.Delay); err != nil {
			return total, multierr.Append(errs, err)
		}
	}
	s.logger.Info("notebooks exported", slog.Int("notebooks", len(notebooks)), slog.Int("notes", total.Notes),
		slog.Int("files", total.Files), slog.Int("skipped", total.Skipped), slog.Int("failed", total.Failed))
	return total, errs
}

// scanExisting maps note IDs found in note.json sidecars anywhere under root
// to their folders.
func (s *NotebookSync) scanExisting(root string) map[string]string {
	out := make(map[string]string)
	docs, err := s.store.Documents(root, noteSidecar)
	if err != nil {
		return out
	}
	for _, d := range docs {
		abs, err := s.store.Abs(d.Path)
		if err != nil {
			continue
		}
		n, err := cache.ReadSidecar(abs)
		if err != nil {
			continue
		}
		if id := n.ID(); id != "" {
			out[id] = path.Dir(d.Path)
		}
	}
	return out
}

func (s *NotebookSync) downloadDir(ctx context.Context, log *slog.Logger, alias string, dirID int64, target string, stats *NotebookStats, depth int) error {
	log = log.With(slog.Int64("dir", dirID), slog.Int("depth", depth))
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("fetching resources", slog.Int("page", page))
		p, err := s.client.ListResources(ctx, alias, dirID, page)
		if err != nil {
			return fmt.Errorf("syncer: list resources dir %d page %d: %w", dirID, page, err)
		}

		// Sub-directories are listed in full on the first page only.
		if page == 1 {
			if len(p.Directories) > 0 {
				log.Info("sub-directories found", slog.Int("count", len(p.Directories)))
			}
			for _, d := range p.Directories {
				sub := path.Join(target, render.SanitizeFilename(d.Name, render.MaxFolderName))
				if err := s.store.MkdirAll(sub); err != nil {
					return err
				}
				log.Info("entering directory", slog.String("name", d.Name))
				if err := s.downloadDir(ctx, log, alias, d.ID, sub, stats, depth+1); err != nil {
					return err
				}
				if err := sleep(ctx, s.opts.Delay); err != nil {
					return err
				}
			}
			if len(p.Resources) == 0 && len(p.Directories) == 0 {
				log.Info("directory is empty")
				return nil
			}
		}

		for _, res := range p.Resources {
			switch res.Type() {
			case models.ResourceNote:
				stats.Notes++
				if err := s.noteResource(ctx, res, path.Join(target, notesDir)); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					log.Error("note resource failed", slog.String("error", err.Error()))
					stats.Failed++
				}
			case models.ResourceFile:
				stats.Files++
				if !s.fileResource(ctx, log, res, path.Join(target, filesDir)) {
					stats.Failed++
				}
			default:
				log.Info("unknown resource type skipped", slog.String("type", res.Type()))
				stats.Skipped++
			}
		}

		if !p.HasNext {
			return nil
		}
		if err := sleep(ctx, s.opts.Delay); err != nil {
			return err
		}
	}
}

func (s *NotebookSync) noteResource(ctx context.Context, res models.Resource, notes string) error {
	n, ok := res.Note()
	if !ok {
		return nil
	}
	id := n.ID()
	title := n.Title()
	if title == "" {
		title = untitledNote
	}

	dir, found := s.existing[id]
	if !found {
		dir = path.Join(notes, render.FolderName(n.CreatedAt(), title, id))
	}
	docPath := path.Join(dir, noteDocument)
	if !s.opts.Force && s.store.Exists(docPath) {
		s.logger.Debug("note exists, skipped", slog.String("title", shorten(title, 40)))
		return nil
	}
	if err := s.store.MkdirAll(dir); err != nil {
		return err
	}

	for _, asset := range render.StyleResource.Plan(n).Files() {
		dest, err := s.store.Abs(path.Join(dir, asset.RelPath()))
		if err != nil {
			return err
		}
		s.fetcher.Fetch(ctx, asset.URL, dest, s.opts.Force)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := []byte(render.Markdown(n, render.StyleResource))
	if err := s.store.Write(docPath, doc); err != nil {
		return err
	}
	if s.opts.SaveJSON {
		data, err := prettyJSON(res.Raw())
		if err != nil {
			return fmt.Errorf("encode sidecar: %w", err)
		}
		if err := s.store.Write(path.Join(dir, noteSidecar), data); err != nil {
			return err
		}
	}
	if s.opts.Indexer != nil {
		if err := s.opts.Indexer.IndexDocument(docPath, doc); err != nil {
			s.logger.Warn("local index update failed", slog.String("path", docPath), slog.String("error", err.Error()))
		}
	}
	if id != "" {
		s.existing[id] = dir
	}
	s.logger.Info("note exported", slog.String("title", shorten(title, 40)))
	return nil
}

// fileResource downloads a FILE resource; false means it could not be saved.
func (s *NotebookSync) fileResource(ctx context.Context, log *slog.Logger, res models.Resource, files string) bool {
	meta, ok := res.File()
	if !ok {
		return true
	}
	if meta.URL == "" {
		log.Warn("file has no download link", slog.String("name", meta.Name))
		return true
	}
	dest, err := s.store.Abs(path.Join(files, render.SanitizeFilename(meta.Name, render.MaxFileName)))
	if err != nil {
		log.Error("file path rejected", slog.String("name", meta.Name), slog.String("error", err.Error()))
		return false
	}
	return s.fetcher.Fetch(ctx, meta.URL, dest, s.opts.Force)
}

func (s *NotebookSync) writeIndex(nb models.Notebook, root string, stats NotebookStats) error {
	x := render.NotebookIndex{
		Name:  nb.Name,
		At:    s.now(),
		Notes: stats.Notes,
		Files: stats.Files,
	}
	notes := path.Join(root, notesDir)
	folders, err := s.store.Dirs(notes)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if s.store.Exists(path.Join(notes, f, noteDocument)) {
			x.NoteFolders = append(x.NoteFolders, f)
		}
	}
	files, err := s.store.Files(path.Join(root, filesDir))
	if err != nil {
		return err
	}
	for _, f := range files {
		if strings.HasPrefix(f.Name, ".") {
			continue
		}
		x.FileRows = append(x.FileRows, render.FileRow{Name: f.Name, Size: f.Size})
	}
	return s.store.Write(path.Join(root, indexFile), []byte(x.Markdown()))
}

// IsInterrupted reports whether err stems from a cancelled run.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
