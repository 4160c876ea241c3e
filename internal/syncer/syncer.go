// Package syncer exports notes and knowledge bases into the local tree.
//
// A run is sequential: one page is fetched, each of its items is processed
// completely (assets, document, cache entry), then the next page follows
// after the configured delay.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// DefaultDelay is the pause between page requests and directory descents.
const DefaultDelay = 500 * time.Millisecond

// DefaultPageSize is the number of notes requested per page.
const DefaultPageSize = 20

// flushEvery is the number of processed notes between cache saves.
const flushEvery = 50

// Fetcher downloads one asset; false means the transfer failed and was logged.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, force bool) bool
}

// Indexer receives every note document the sync writes. path is relative to
// the export root.
type Indexer interface {
	IndexDocument(path string, data []byte) error
}

// Options tune a run.
type Options struct {
	// Limit is the ceiling on processed notes; 0 means no ceiling.
	Limit    int
	PageSize int
	Delay    time.Duration
	// Force ignores the cache and re-downloads existing files.
	Force bool
	// SaveJSON writes note.json sidecars and raw page dumps.
	SaveJSON bool
	Indexer  Indexer
}

func (o Options) pageSize() int {
	if o.PageSize <= 0 {
		return DefaultPageSize
	}
	return o.PageSize
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// prettyJSON indents v with two spaces and leaves non-ASCII and HTML
// characters unescaped.
func prettyJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// indentRaw re-indents a raw response body; invalid JSON is kept verbatim.
func indentRaw(body []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return body
	}
	return buf.Bytes()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
