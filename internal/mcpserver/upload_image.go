package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/getnotes/internal/getnotes"
)

const (
	maxImageSize      = 10 << 20
	maxImageRedirects = 5
)

// imageMIMEs maps the media types the upload endpoint takes to the extension
// the stored file gets.
var imageMIMEs = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

var errPrivateHost = errors.New("refusing non-public address")

// lookupImageHost resolves URL hosts before the request is made.
var lookupImageHost = net.DefaultResolver.LookupNetIP

// imageClient only ever connects to public addresses. The check runs on the
// address actually dialed, so redirects and re-resolution are covered too.
var imageClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
			Control: dialPublicOnly,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	CheckRedirect: func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxImageRedirects {
			return fmt.Errorf("too many redirects (max %d)", maxImageRedirects)
		}
		return nil
	},
}

type uploadResult struct {
	URL           string `json:"url"`
	MarkdownImage string `json:"markdownImage"`
}

// imageBlob is image content plus the extension its source declared through
// a data URI media type or a Content-Type header. ext is empty when the
// source named nothing usable.
type imageBlob struct {
	data []byte
	ext  string
}

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	blob, err := loadImage(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := imageName(req.GetString("filename", ""), raw, blob.ext)
	if err := blob.accepts(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}

	// The upload endpoint takes a file on disk.
	dir, err := os.MkdirTemp("", "getnotes-upload-*")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create temp dir: %v", err)), nil
	}
	defer os.RemoveAll(dir)
	staged := filepath.Join(dir, name)
	if err := os.WriteFile(staged, blob.data, 0o600); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stage image: %v", err)), nil
	}

	tok, err := api.UploadImage(ctx, staged)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("upload image: %v", err)), nil
	}
	out, _ := json.Marshal(uploadResult{
		URL:           tok.AccessURL,
		MarkdownImage: fmt.Sprintf("![%s](%s)", name, tok.AccessURL),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// loadImage reads a base64 data URI inline and downloads anything else.
func loadImage(ctx context.Context, raw string) (imageBlob, error) {
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		return parseDataURI(rest)
	}
	return downloadImage(ctx, raw)
}

// parseDataURI takes the part after "data:", i.e. <mediatype>[;params],<data>.
func parseDataURI(rest string) (imageBlob, error) {
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return imageBlob{}, errors.New("invalid data URI: missing comma separator")
	}
	params := strings.Split(meta, ";")
	if !slices.Contains(params[1:], "base64") {
		return imageBlob{}, errors.New("only base64 data URIs are supported")
	}
	ext, ok := imageMIMEs[params[0]]
	if !ok {
		return imageBlob{}, fmt.Errorf("unsupported MIME type in data URI: %s", params[0])
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return imageBlob{}, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return imageBlob{data: data, ext: ext}, nil
}

func downloadImage(ctx context.Context, raw string) (imageBlob, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return imageBlob{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return imageBlob{}, fmt.Errorf("unsupported scheme: %s (only http/https)", u.Scheme)
	}
	if err := checkImageHost(ctx, u.Hostname()); err != nil {
		return imageBlob{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return imageBlob{}, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := imageClient.Do(req)
	if err != nil {
		return imageBlob{}, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return imageBlob{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return imageBlob{}, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImageSize {
		return imageBlob{}, fmt.Errorf("file too large: exceeds %d bytes", maxImageSize)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return imageBlob{data: data, ext: imageMIMEs[mediaType]}, nil
}

// checkImageHost fails when host is, or resolves to, any non-public address.
func checkImageHost(ctx context.Context, host string) error {
	if addr, err := netip.ParseAddr(host); err == nil {
		return checkImageAddr(addr)
	}
	addrs, err := lookupImageHost(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, addr := range addrs {
		if err := checkImageAddr(addr); err != nil {
			return fmt.Errorf("%s: %w", host, err)
		}
	}
	return nil
}

// checkImageAddr admits global unicast addresses outside the private ranges.
// Loopback, link-local (cloud metadata included), unspecified, multicast and
// broadcast are all outside global unicast.
func checkImageAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return fmt.Errorf("%w %s", errPrivateHost, addr)
	}
	return nil
}

func dialPublicOnly(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	return checkImageAddr(ap.Addr())
}

// imageName picks the uploaded file name: the caller's, else the last URL
// path segment when it carries an extension, else a UUID with ext. Any
// character outside [A-Za-z0-9._-] becomes "_".
func imageName(given, raw, ext string) string {
	name := given
	if name == "" && !strings.HasPrefix(raw, "data:") {
		if u, err := url.Parse(raw); err == nil {
			if base := path.Base(u.Path); base != "." && strings.Contains(base, ".") {
				name = base
			}
		}
	}
	if name == "" {
		if ext == "" {
			ext = ".png"
		}
		name = uuid.NewString() + ext
	}

	name = unsafeNameChars.ReplaceAllString(filepath.Base(name), "_")
	if strings.Trim(name, ".") == "" {
		return uuid.NewString()
	}
	return name
}

// accepts checks the size, that name has an upload extension, and that the
// content really is that format.
func (b imageBlob) accepts(name string) error {
	if len(b.data) > maxImageSize {
		return fmt.Errorf("file too large: %d bytes (max %d)", len(b.data), maxImageSize)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(getnotes.ImageExtensions, ext) {
		return fmt.Errorf("unsupported file extension: %q (allowed: %s)",
			ext, strings.Join(getnotes.ImageExtensions, ", "))
	}

	detected := mimetype.Detect(b.data).String()
	want := ext
	if want == ".jpeg" {
		want = ".jpg"
	}
	if imageMIMEs[detected] != want {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
