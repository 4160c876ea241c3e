package internal

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/getnotes/internal/cache"
	"github.com/starford/getnotes/internal/credential"
	"github.com/starford/getnotes/internal/download"
	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/index"
	"github.com/starford/getnotes/internal/settings"
	"github.com/starford/getnotes/internal/storage"
	"github.com/starford/getnotes/internal/syncer"
)

// App builds the components every command shares from one configuration.
type App struct {
	cfg        *Config
	logger     *slog.Logger
	httpClient *http.Client
	// assets is nil unless a client was injected; the fetcher then builds
	// its own without a total deadline.
	assets   *http.Client
	creds    *credential.Store
	settings *settings.Store

	stdin  io.Reader
	stdout io.Writer
}

// New validates the configuration and wires the shared stores.
func New(opts ...Option) (*App, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger := a.logger
	if logger == nil {
		logger = NewLogger(cfg.App, os.Stderr)
	}
	hc, assets := a.httpClient, a.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.API.Timeout}
	}
	in, out := a.stdin, a.stdout
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		httpClient: hc,
		assets:     assets,
		creds:      credential.NewStore(cfg.CredentialPath(), cfg.Auth.MaxAge),
		settings:   settings.NewStore(cfg.SettingsPath()),
		stdin:      in,
		stdout:     out,
	}, nil
}

// NewLogger returns a text or JSON slog logger writing to w.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *App) Config() *Config { return a.cfg }

func (a *App) Logger() *slog.Logger { return a.logger }

func (a *App) Credentials() *credential.Store { return a.creds }

func (a *App) Settings() *settings.Store { return a.settings }

// Authenticate returns the stored credential, or logs in with token first
// when one is given.
func (a *App) Authenticate(token string) (*credential.Credential, error) {
	if token != "" {
		return a.creds.Login(token)
	}
	return a.creds.Current()
}

// Client returns an API client authenticated as Authenticate does.
func (a *App) Client(token string) (*getnotes.Client, error) {
	cred, err := a.Authenticate(token)
	if err != nil {
		return nil, err
	}
	return getnotes.New(cred,
		getnotes.WithHTTPClient(a.httpClient),
		getnotes.WithBaseURLs(a.cfg.API.NotesBaseURL, a.cfg.API.KnowledgeBaseURL),
		getnotes.WithLogger(a.logger),
	), nil
}

// Fetcher returns the attachment downloader. Asset hosts only need the
// browser user agent. The API timeout does not apply: recordings can take
// longer than that to stream.
func (a *App) Fetcher() *download.Fetcher {
	opts := []download.Option{
		download.WithLogger(a.logger),
		download.WithHeaders(map[string]string{
			"User-Agent": credential.DefaultHeaders["User-Agent"],
		}),
	}
	if a.assets != nil {
		opts = append(opts, download.WithHTTPClient(a.assets))
	}
	return download.New(opts...)
}

// Overrides are the command-line values that beat persisted settings.
// Nil fields are unset.
type Overrides struct {
	Output   *string
	Delay    *float64
	PageSize *int
}

// RunSettings is a resolved download run configuration.
type RunSettings struct {
	Output   string
	Delay    time.Duration
	PageSize int
}

// Resolve applies flag, then persisted setting, then configuration default.
func (a *App) Resolve(o Overrides) RunSettings {
	saved := a.settings.Load()
	output := settings.Resolve(o.Output, saved.Output, a.cfg.Paths.OutputDir())
	delay := settings.Resolve(o.Delay, saved.Delay, a.cfg.Sync.Delay.Seconds())
	return RunSettings{
		Output:   ExpandHome(output),
		Delay:    time.Duration(delay * float64(time.Second)),
		PageSize: settings.Resolve(o.PageSize, saved.PageSize, a.cfg.Sync.PageSize),
	}
}

// SyncOptions turns resolved settings into syncer options.
func (a *App) SyncOptions(rs RunSettings) syncer.Options {
	return syncer.Options{
		PageSize: rs.PageSize,
		Delay:    rs.Delay,
		SaveJSON: a.cfg.Sync.SaveJSON,
	}
}

// Export opens the export tree at root and its cache manifest. The manifest
// is not loaded.
func (a *App) Export(root string) (*storage.FS, *cache.Manifest, error) {
	store, err := storage.NewFS(root)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	manifest := cache.New(filepath.Join(store.Root(), cache.FileName), a.logger)
	return store, manifest, nil
}

// OpenIndex opens the local search index. It returns nil without error when
// the index is disabled.
func (a *App) OpenIndex() (*index.DB, error) {
	if !a.cfg.Index.Enabled {
		return nil, nil
	}
	db, err := index.Open(a.cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return db, nil
}
