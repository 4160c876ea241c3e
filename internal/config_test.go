package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/getnotes/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestAuthConfig_NegativeMaxAge(t *testing.T) {
	cfg := AuthConfig{MaxAge: -time.Minute}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative max_age should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Sync.Delay != 500*time.Millisecond {
		t.Errorf("delay = %v, want 500ms", cfg.Sync.Delay)
	}
	if cfg.Sync.PageSize != 20 {
		t.Errorf("page size = %d, want 20", cfg.Sync.PageSize)
	}
	if cfg.MCP.Transport != TransportStdio {
		t.Errorf("transport = %q, want stdio", cfg.MCP.Transport)
	}
	if got := cfg.MCP.PublicURL(); got != "http://127.0.0.1:8000" {
		t.Errorf("public url = %q", got)
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Paths.Home = "/srv/getnotes"

	if got := cfg.CredentialPath(); got != filepath.Join("/srv/getnotes", "auth.json") {
		t.Errorf("credential path = %q", got)
	}
	if got := cfg.SettingsPath(); got != filepath.Join("/srv/getnotes", "config.json") {
		t.Errorf("settings path = %q", got)
	}
	if got := cfg.IndexPath(); got != filepath.Join("/srv/getnotes", "index.db") {
		t.Errorf("index path = %q", got)
	}
	cfg.Index.Path = "/tmp/other.db"
	if got := cfg.IndexPath(); got != "/tmp/other.db" {
		t.Errorf("explicit index path = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/Downloads/x"); got != filepath.Join(home, "Downloads/x") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/~/x"); got != "/abs/~/x" {
		t.Errorf("non-leading tilde changed: %q", got)
	}
	if got := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("~user changed: %q", got)
	}
}

func TestMCPConfig_InvalidTransport(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.MCP.Transport = "websocket"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown transport should fail validation")
	}
}

func TestSyncConfig_PageSizeBounds(t *testing.T) {
	for _, n := range []int{0, 101} {
		cfg := SyncConfig{PageSize: n}
		if err := cfg.Validate(); err == nil {
			t.Errorf("page size %d should fail validation", n)
		}
	}
}

func TestAPIConfig_RelativeURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.API.NotesBaseURL = "/voicenotes/web"
	if err := cfg.Validate(); err == nil {
		t.Fatal("relative base url should fail validation")
	}
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("GETNOTES_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
sync:
  delay: 1500ms
  page_size: 50
auth:
  mode: token
  token: ${GETNOTES_TEST_TOKEN}
mcp:
  transport: sse
  http:
    port: 9000
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Sync.Delay != 1500*time.Millisecond || cfg.Sync.PageSize != 50 {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.MCP.Transport != TransportSSE || cfg.MCP.HTTP.Address() != "127.0.0.1:9000" {
		t.Errorf("mcp = %+v", cfg.MCP)
	}
	if cfg.API.NotesBaseURL == "" {
		t.Error("defaults should survive a partial file")
	}
}
