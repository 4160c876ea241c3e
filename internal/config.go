package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/getnotes/internal/credential"
	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/syncer"
)

// Auth modes of the MCP SSE endpoint.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// File names under the home directory. The sync manifest is kept in the
// export tree instead, see cache.FileName.
const (
	CredentialFile = "auth.json"
	SettingsFile   = "config.json"
	IndexFile      = "index.db"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	API   APIConfig         `yaml:"api"`
	Paths PathsConfig       `yaml:"paths"`
	Sync  SyncConfig        `yaml:"sync"`
	Auth  AuthConfig        `yaml:"auth"`
	Index IndexConfig       `yaml:"index"`
	MCP   MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.API, &c.Paths, &c.Sync, &c.Auth, &c.MCP} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CredentialPath is the file holding the captured bearer token.
func (c *Config) CredentialPath() string {
	return filepath.Join(c.Paths.HomeDir(), CredentialFile)
}

// SettingsPath is the file written by `getnotes config`.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Paths.HomeDir(), SettingsFile)
}

// IndexPath is the SQLite index file; an empty index.path selects
// <home>/index.db.
func (c *Config) IndexPath() string {
	if c.Index.Path != "" {
		return ExpandHome(c.Index.Path)
	}
	return filepath.Join(c.Paths.HomeDir(), IndexFile)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// APIConfig holds the service endpoints.
type APIConfig struct {
	NotesBaseURL     string        `yaml:"notes_base_url"`
	KnowledgeBaseURL string        `yaml:"knowledge_base_url"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NotesBaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.KnowledgeBaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// PathsConfig holds the local directories. A leading "~" is expanded.
type PathsConfig struct {
	// Home holds the credential, the settings file and the index.
	Home string `yaml:"home"`
	// Output is the default export root.
	Output string `yaml:"output"`
}

// HomeDir returns Home with "~" expanded.
func (c *PathsConfig) HomeDir() string { return ExpandHome(c.Home) }

// OutputDir returns Output with "~" expanded.
func (c *PathsConfig) OutputDir() string { return ExpandHome(c.Output) }

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Home, validation.Required),
		validation.Field(&c.Output, validation.Required),
	)
}

// SyncConfig holds the defaults of a download run. Persisted user settings
// and command flags override them.
type SyncConfig struct {
	Delay    time.Duration `yaml:"delay"`
	PageSize int           `yaml:"page_size"`
	Limit    int           `yaml:"limit"`
	SaveJSON bool          `yaml:"save_json"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Delay, validation.Min(time.Duration(0))),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.Limit, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// MaxAge is the lifetime of a captured service credential.
//
// Mode controls how the MCP SSE endpoint is protected:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	MaxAge time.Duration `yaml:"max_age"`
	Mode   string        `yaml:"mode"`
	Token  string        `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxAge, validation.Min(time.Duration(0))),
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when the SSE endpoint requires a token.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// IndexConfig holds the local search index configuration.
type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MCPConfig holds the MCP server configuration.
type MCPConfig struct {
	Transport string     `yaml:"transport"`
	HTTP      HTTPConfig `yaml:"http"`
	// BaseURL is the address advertised to SSE clients; empty derives it
	// from the listen address.
	BaseURL string `yaml:"base_url"`
	// EventThrottle coalesces index.updated events on /events.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Transport, validation.In(TransportStdio, TransportSSE)),
		validation.Field(&c.BaseURL, validation.When(c.BaseURL != "", validation.By(absoluteURL))),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// PublicURL returns BaseURL, or http://<address> when it is unset.
func (c *MCPConfig) PublicURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "http://" + c.HTTP.Address()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		API: APIConfig{
			NotesBaseURL:     getnotes.DefaultNotesBaseURL,
			KnowledgeBaseURL: getnotes.DefaultKnowledgeBaseURL,
			Timeout:          getnotes.DefaultTimeout,
		},
		Paths: PathsConfig{
			Home:   "~/.getnotes-cli",
			Output: "~/Downloads/getnotes_export",
		},
		Sync: SyncConfig{
			Delay:    syncer.DefaultDelay,
			PageSize: syncer.DefaultPageSize,
			Limit:    100,
		},
		Auth: AuthConfig{
			MaxAge: credential.DefaultMaxAge,
			Mode:   AuthModeDisabled,
		},
		Index: IndexConfig{
			Enabled: true,
		},
		MCP: MCPConfig{
			Transport:     TransportStdio,
			HTTP:          HTTPConfig{Host: "127.0.0.1", Port: 8000},
			EventThrottle: 2 * time.Second,
		},
	}
}
