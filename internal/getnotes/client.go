// Package getnotes is a client for the Get Notes web API and its knowledge
// base service.
package getnotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/getnotes/internal/models"
)

// Production endpoints.
const (
	DefaultNotesBaseURL     = "https://get-notes.luojilab.com/voicenotes/web"
	DefaultKnowledgeBaseURL = "https://knowledge-api.trytalks.com/v1/web"
	DefaultTimeout          = 30 * time.Second
)

// knowledgeHeaders are required by the knowledge base service.
var knowledgeHeaders = map[string]string{
	"X-Appid":        "3",
	"X-Av":           "1.2.2",
	"Sec-Fetch-Dest": "empty",
	"Sec-Fetch-Mode": "cors",
	"Sec-Fetch-Site": "cross-site",
}

// HeaderSource supplies the authenticated header set for every request.
// *credential.Credential satisfies it.
type HeaderSource interface {
	Headers() map[string]string
}

// Client talks to both API hosts with one credential.
type Client struct {
	http          *http.Client
	auth          HeaderSource
	notesBase     string
	knowledgeBase string
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURLs overrides the API hosts. Empty values keep the defaults.
func WithBaseURLs(notes, knowledge string) Option {
	return func(c *Client) {
		if notes != "" {
			c.notesBase = strings.TrimRight(notes, "/")
		}
		if knowledge != "" {
			c.knowledgeBase = strings.TrimRight(knowledge, "/")
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client authenticated by auth.
func New(auth HeaderSource, opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{Timeout: DefaultTimeout},
		auth:          auth,
		notesBase:     DefaultNotesBaseURL,
		knowledgeBase: DefaultKnowledgeBaseURL,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("getnotes: %s %s: HTTP %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// APIError is a 2xx response whose envelope header carries a non-zero code.
type APIError struct {
	Code    int64
	Message string
	Payload json.RawMessage
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("getnotes: api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("getnotes: api error %d: %s", e.Code, excerpt(string(e.Payload), 200))
}

// envelope is the common response shape {h: {c, e}, c}.
type envelope struct {
	H *struct {
		C json.Number     `json:"c"`
		E json.RawMessage `json:"e"`
	} `json:"h"`
	C json.RawMessage `json:"c"`
}

// response is a decoded envelope plus the untouched body.
type response struct {
	payload json.RawMessage
	body    []byte
}

func (c *Client) notesURL(path string) string     { return c.notesBase + "/" + path }
func (c *Client) knowledgeURL(path string) string { return c.knowledgeBase + "/" + path }

// do sends one request and unwraps the envelope.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body any, extra map[string]string) (*response, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("getnotes: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("getnotes: new request: %w", err)
	}
	for k, v := range c.auth.Headers() {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getnotes: %s %s: %w", method, redact(endpoint), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("getnotes: read body: %w", err)
	}
	c.logger.Debug("api request",
		slog.String("method", method),
		slog.String("url", redact(endpoint)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Method: method, URL: redact(endpoint), Status: resp.StatusCode, Body: excerpt(string(data), 200)}
	}
	return unwrap(data)
}

func unwrap(data []byte) (*response, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("getnotes: decode envelope: %w", err)
	}
	if env.H != nil && env.H.C != "" {
		code, err := env.H.C.Int64()
		if err != nil {
			return nil, fmt.Errorf("getnotes: bad envelope code %q", env.H.C)
		}
		if code != 0 {
			return nil, &APIError{Code: code, Message: messageText(env.H.E), Payload: json.RawMessage(data)}
		}
	}
	return &response{payload: env.C, body: data}, nil
}

func messageText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// decodeDocument decodes an object payload keeping numbers exact.
func decodeDocument(raw json.RawMessage) (models.Document, error) {
	doc := models.Document{}
	if len(raw) == 0 || string(raw) == "null" {
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("getnotes: decode payload: %w", err)
	}
	return doc, nil
}

// decodeObjects decodes an array-of-objects payload keeping numbers exact.
func decodeObjects(raw json.RawMessage) ([]models.Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("getnotes: decode list payload: %w", err)
	}
	out := make([]models.Document, 0, len(items))
	for _, it := range items {
		out = append(out, models.Document(it))
	}
	return out, nil
}

// redact drops the query string so tokens in URLs never reach logs.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
