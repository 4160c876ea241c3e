package getnotes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/starford/getnotes/internal/models"
)

// ImageExtensions lists the formats the upload endpoint accepts.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// ImageToken is an OSS post-policy grant for one image upload.
type ImageToken struct {
	AccessID    string `json:"accessid"`
	Policy      string `json:"policy"`
	Signature   string `json:"signature"`
	ObjectKey   string `json:"object_key"`
	Callback    string `json:"callback"`
	Host        string `json:"host"`
	AccessURL   string `json:"access_url"`
	ContentType string `json:"oss_content_type"`
}

// ImageToken requests an upload grant for a file with extension ext.
func (c *Client) ImageToken(ctx context.Context, ext string) (*ImageToken, error) {
	body := map[string]string{"source": "web", "type": strings.TrimPrefix(ext, ".")}
	resp, err := c.do(ctx, http.MethodPost, c.notesURL("token/image"), nil, body, nil)
	if err != nil {
		return nil, err
	}
	var grants []ImageToken
	if err := json.Unmarshal(resp.payload, &grants); err != nil {
		return nil, fmt.Errorf("getnotes: decode image token: %w", err)
	}
	if len(grants) == 0 {
		return nil, &APIError{Message: "empty image token list", Payload: resp.body}
	}
	return &grants[0], nil
}

// UploadImage obtains a grant and posts the file at path to the object store.
// The returned token's AccessURL is the public image location.
func (c *Client) UploadImage(ctx context.Context, path string) (*ImageToken, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedImage(ext) {
		return nil, fmt.Errorf("getnotes: unsupported image format %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("getnotes: read image: %w", err)
	}

	tok, err := c.ImageToken(ctx, ext)
	if err != nil {
		return nil, err
	}

	form, contentType, err := uploadForm(tok, filepath.Base(path), ext, data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tok.Host, form)
	if err != nil {
		return nil, fmt.Errorf("getnotes: new upload request: %w", err)
	}
	headers := c.auth.Headers()
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", contentType)
	for _, k := range []string{"User-Agent", "Origin", "Referer"} {
		req.Header.Set(k, headers[k])
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getnotes: upload %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Method: http.MethodPost, URL: redact(tok.Host), Status: resp.StatusCode, Body: excerpt(string(raw), 200)}
	}
	// The callback answer is usually an envelope but not always JSON.
	if _, err := unwrap(raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
	}
	return tok, nil
}

// uploadForm builds the post-policy form. The object store requires the file
// part to come last.
func uploadForm(tok *ImageToken, name, ext string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"OSSAccessKeyId", tok.AccessID},
		{"policy", tok.Policy},
		{"Signature", tok.Signature},
		{"key", tok.ObjectKey},
		{"callback", tok.Callback},
		{"success_action_status", "201"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("getnotes: form field %s: %w", f[0], err)
		}
	}

	ct := tok.ContentType
	if ct == "" {
		ct = mimetype.Detect(data).String()
	}
	if !strings.HasPrefix(ct, "image/") {
		ct = "image/" + strings.TrimPrefix(ext, ".")
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("getnotes: form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("getnotes: form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("getnotes: close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func supportedImage(ext string) bool {
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Draft is a note to publish.
type Draft struct {
	Title  string
	Text   string
	Tags   []string
	Images []string // local file paths
}

// Created is the server answer to a note creation.
type Created struct {
	ID  string
	Raw models.Document
}

// CreateNote uploads the draft's images, then publishes the note.
func (c *Client) CreateNote(ctx context.Context, d Draft) (*Created, error) {
	var urls []string
	for _, p := range d.Images {
		tok, err := c.UploadImage(ctx, p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, tok.AccessURL)
	}

	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	body := map[string]any{
		"title":        d.Title,
		"content":      PlainContent(d.Text, urls),
		"json_content": BuildJSONContent(d.Text, urls),
		"entry_type":   "manual",
		"note_type":    "plain_text",
		"source":       "web",
		"tags":         tags,
	}
	resp, err := c.do(ctx, http.MethodPost, c.notesURL("notes"), nil, body, nil)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(resp.payload)
	if err != nil {
		// Some deployments answer with a scalar payload.
		return &Created{Raw: models.Document{}}, nil
	}
	return &Created{ID: models.NewNote(doc).ID(), Raw: doc}, nil
}

// EditorText converts real line breaks to the literal `\n` sequence the web
// editor uses as its paragraph separator.
func EditorText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", `\n`)
}

// PlainContent is the text body with image Markdown lines appended. Line
// breaks use the literal `\n` sequence the web editor sends.
func PlainContent(text string, imageURLs []string) string {
	if len(imageURLs) == 0 {
		return text
	}
	lines := make([]string, len(imageURLs))
	for i, u := range imageURLs {
		lines[i] = "![](" + u + ")"
	}
	return text + `\n\n` + strings.Join(lines, `\n`)
}

type pmNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content *[]pmNode      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
}

func paragraph(class any, text string, withContent bool) pmNode {
	n := pmNode{
		Type:  "paragraph",
		Attrs: map[string]any{"lineHeight": "100%", "textAlign": nil, "class": class, "indent": 0},
	}
	if withContent {
		content := []pmNode{}
		if text != "" {
			content = append(content, pmNode{Type: "text", Text: text})
		}
		n.Content = &content
	}
	return n
}

// BuildJSONContent renders the editor document for a text body and uploaded
// images: one paragraph per literal `\n`-separated line, then each image
// followed by an empty paragraph.
func BuildJSONContent(text string, imageURLs []string) string {
	var nodes []pmNode
	if text != "" {
		for _, line := range strings.Split(text, `\n`) {
			nodes = append(nodes, paragraph("", line, true))
		}
	} else {
		nodes = append(nodes, paragraph("", "", false))
	}
	for _, u := range imageURLs {
		nodes = append(nodes, pmNode{
			Type: "image",
			Attrs: map[string]any{
				"commentIds": nil,
				"class":      "",
				"src":        u,
				"alt":        "",
				"title":      "",
				"width":      350,
				"height":     "auto",
				"align":      "left",
				"href":       nil,
				"target":     nil,
				"data-src":   nil,
				"loading":    nil,
			},
		})
		nodes = append(nodes, paragraph(nil, "", false))
	}
	doc := pmNode{Type: "doc", Content: &nodes}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(doc)
	return strings.TrimSuffix(buf.String(), "\n")
}
