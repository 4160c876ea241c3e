// Package download streams attachment URLs to local files.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultTimeout bounds each step of a transfer: connecting, the TLS
// handshake and waiting for response headers. The body may take as long as
// the context allows.
const DefaultTimeout = 60 * time.Second

const chunkSize = 32 * 1024

// Fetcher downloads files with skip-if-exists semantics. Failures are logged
// and reported as false; they never escape as errors.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
	// Headers are sent with every download, e.g. User-Agent.
	headers map[string]string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithHeaders sets headers sent with every request.
func WithHeaders(h map[string]string) Option { return func(f *Fetcher) { f.headers = h } }

// NewClient returns a client whose connection setup and response headers are
// bounded by timeout. It has no total deadline, so large recordings are not
// cut off mid-body.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   4,
		},
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: NewClient(DefaultTimeout),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch saves url to dest. When dest exists and force is false nothing is
// transferred and true is returned.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, force bool) bool {
	name := filepath.Base(dest)
	if !force {
		if info, err := os.Stat(dest); err == nil {
			f.logger.Debug("file exists, skipped", slog.String("file", name), slog.String("size", humanize.Bytes(uint64(info.Size()))))
			return true
		}
	}

	n, err := f.fetch(ctx, url, dest)
	if err != nil {
		f.logger.Error("download failed", slog.String("file", name), slog.Any("err", err))
		return false
	}
	f.logger.Info("downloaded", slog.String("file", name), slog.String("size", humanize.Bytes(uint64(n))))
	return true
}

func (f *Fetcher) fetch(ctx context.Context, url, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.CopyBuffer(tmp, resp.Body, make([]byte, chunkSize))
	if err != nil {
		return 0, fmt.Errorf("copy body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	ok = true
	return n, nil
}
