package getnotes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth map[string]string

func (s staticAuth) Headers() map[string]string { return s }

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(staticAuth{"Authorization": "Bearer t", "User-Agent": "ua"},
		WithBaseURLs(srv.URL+"/voicenotes/web", srv.URL+"/v1/web"),
		WithHTTPClient(srv.Client()),
	)
}

func TestListNotes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/voicenotes/web/notes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("since_id"))
		assert.Equal(t, "create_desc", r.URL.Query().Get("sort"))
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":{"list":[{"id":111,"note_id":"n1"},{"id":222,"note_id":"n2"}],"has_more":true,"total_items":42}}`)
	})
	c := newTestClient(t, mux)

	page, err := c.ListNotes(context.Background(), "abc", 20)
	require.NoError(t, err)
	require.Len(t, page.Notes, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "42", page.Total)
	assert.Equal(t, "222", page.LastCursor())
	assert.Equal(t, "n2", page.Notes[1].ID())
	assert.NotEmpty(t, page.Body)
}

func TestListNotesTotalUnknown(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":{"list":[]}}`)
	}))
	page, err := c.ListNotes(context.Background(), "", 20)
	require.NoError(t, err)
	assert.Empty(t, page.Notes)
	assert.False(t, page.HasMore)
	assert.Equal(t, "?", page.Total)
	assert.Equal(t, "", page.LastCursor())
}

func TestHTTPError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	_, err := c.ListNotes(context.Background(), "", 20)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.NotContains(t, httpErr.URL, "since_id")
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"h":{"c":10001,"e":"token invalid"},"c":null}`)
	}))
	_, err := c.Search(context.Background(), "go", 1, 10)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int64(10001), apiErr.Code)
	assert.Equal(t, "token invalid", apiErr.Message)
	assert.Contains(t, string(apiErr.Payload), "10001")
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voicenotes/web/notes/search", r.URL.Path)
		assert.Equal(t, "Go 语言", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":{"items":[{"note_id":"1","title":"<hl>Go</hl>"}],"total":1,"has_more":false}}`)
	}))
	res, err := c.Search(context.Background(), "Go 语言", 2, 5)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Go", res.Items[0].Title)
	assert.Equal(t, int64(1), res.Total)
}

func TestNotebooks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/web/topic/mine/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.Header.Get("X-Appid"))
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":[{"id":1,"id_alias":"a1","name":"读书","root_dir":{"id":10}}]}`)
	})
	mux.HandleFunc("/v1/web/subscribe/topic/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("exclude_mine"))
		assert.Equal(t, "200", r.URL.Query().Get("size"))
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":{"list":[{"id":2,"id_alias":"b2","name":"订阅"}]}}`)
	})
	mux.HandleFunc("/v1/web/topic/resource/list/mix", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "-1", q.Get("topic_id"))
		assert.Equal(t, "a1", q.Get("topic_id_alias"))
		assert.Equal(t, "10", q.Get("directory_id"))
		assert.Equal(t, "create_time_desc", q.Get("sort"))
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":{"directories":[{"id":11,"name":"子目录"}],"resources":[{"resource_type":"FILE","resource_file_meta_data":{"name":"a.pdf","file_url":"u"}}],"has_next":false}}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	mine, err := c.ListNotebooks(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(10), mine[0].RootDirID)

	subs, err := c.ListSubscribedNotebooks(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "订阅", subs[0].Name)

	page, err := c.ListResources(ctx, "a1", 10, 1)
	require.NoError(t, err)
	require.Len(t, page.Directories, 1)
	require.Len(t, page.Resources, 1)
	f, ok := page.Resources[0].File()
	require.True(t, ok)
	assert.Equal(t, "a.pdf", f.Name)
}

func TestAddNoteToNotebook(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/voicenotes/web/topics/import/notes", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "n1", body["ids"])
		assert.EqualValues(t, 7, body["topic_id"])
		assert.EqualValues(t, 70, body["directory_id"])
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":"ok"}`)
	}))
	require.NoError(t, c.AddNoteToNotebook(context.Background(), "n1", 7, 70))
}

func TestCreateNoteWithImage(t *testing.T) {
	var (
		srvURL  string
		created map[string]any
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/voicenotes/web/token/image", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "png", body["type"])
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":[{"accessid":"ak","policy":"p","signature":"s","object_key":"k","callback":"cb","host":"`+srvURL+`/oss","access_url":"https://cdn/x.png"}]}`)
	})
	mux.HandleFunc("/oss", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ak", r.FormValue("OSSAccessKeyId"))
		assert.Equal(t, "201", r.FormValue("success_action_status"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "pic.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"h":{"c":0}}`)
	})
	mux.HandleFunc("/voicenotes/web/notes", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		_, _ = io.WriteString(w, `{"h":{"c":0},"c":{"note_id":"new1"}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	c := New(staticAuth{}, WithBaseURLs(srv.URL+"/voicenotes/web", srv.URL+"/v1/web"))

	img := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG"), 0o644))

	res, err := c.CreateNote(context.Background(), Draft{Text: `第一行\n第二行`, Images: []string{img}})
	require.NoError(t, err)
	assert.Equal(t, "new1", res.ID)

	assert.Equal(t, `第一行\n第二行\n\n![](https://cdn/x.png)`, created["content"])
	assert.Equal(t, "manual", created["entry_type"])
	assert.Equal(t, []any{}, created["tags"])

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(created["json_content"].(string)), &doc))
	nodes := doc["content"].([]any)
	require.Len(t, nodes, 4)
	assert.Equal(t, "image", nodes[2].(map[string]any)["type"])
}

func TestUploadImageRejectsFormat(t *testing.T) {
	c := New(staticAuth{})
	_, err := c.UploadImage(context.Background(), "/tmp/file.bmp")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}

func TestBuildJSONContent(t *testing.T) {
	out := BuildJSONContent("", nil)
	assert.JSONEq(t, `{"type":"doc","content":[{"type":"paragraph","attrs":{"lineHeight":"100%","textAlign":null,"class":"","indent":0}}]}`, out)

	out = BuildJSONContent(`a\n`, nil)
	assert.JSONEq(t, `{"type":"doc","content":[
		{"type":"paragraph","attrs":{"lineHeight":"100%","textAlign":null,"class":"","indent":0},"content":[{"type":"text","text":"a"}]},
		{"type":"paragraph","attrs":{"lineHeight":"100%","textAlign":null,"class":"","indent":0},"content":[]}
	]}`, out)
}

func TestEditorText(t *testing.T) {
	assert.Equal(t, `a\nb\n\nc`, EditorText("a\r\nb\n\nc"))
	assert.Equal(t, `已转义\n`, EditorText(`已转义\n`))
}
