package models

import (
	"encoding/json"
	"strings"
)

// Attachment is one entry of a note's attachments list.
type Attachment struct {
	URL        string
	Type       string
	Title      string
	DurationMs int64
}

// Tag is a note label. System tags have Type "system".
type Tag struct {
	Name string
	Type string
}

// ResourceRef is the optional reference source of a note ("res_info").
type ResourceRef struct {
	Title string
	URL   string
}

// Note is a read-only view over a note payload from the list, search or
// knowledge-base endpoints.
type Note struct {
	doc Document
}

// NewNote wraps a decoded note object.
func NewNote(raw map[string]any) Note {
	if raw == nil {
		raw = map[string]any{}
	}
	return Note{doc: Document(raw)}
}

// ID is the stable note identifier: "note_id", then "id".
func (n Note) ID() string { return n.doc.String("note_id", "id") }

// CursorID is the value used as since_id for the next page: "id", then "note_id".
func (n Note) CursorID() string { return n.doc.String("id", "note_id") }

// Version is the opaque version token, verbatim as JSON.
func (n Note) Version() json.RawMessage { return n.doc.Raw("version") }

// UpdatedAt is the "updated_at" timestamp used for cache comparison.
func (n Note) UpdatedAt() string { return n.doc.String("updated_at") }

// EditedAt is the display timestamp: "updated_at", then "edit_time".
func (n Note) EditedAt() string { return n.doc.String("updated_at", "edit_time") }

func (n Note) CreatedAt() string   { return n.doc.String("created_at") }
func (n Note) Title() string       { return n.doc.Trimmed("title") }
func (n Note) Content() string     { return n.doc.Trimmed("content") }
func (n Note) RefContent() string  { return n.doc.Trimmed("ref_content") }
func (n Note) Source() string      { return n.doc.String("source") }
func (n Note) NoteType() string    { return n.doc.String("note_type") }
func (n Note) EntryType() string   { return n.doc.String("entry_type") }
func (n Note) IsAIGenerated() bool { return n.doc.Bool("is_ai_generated") }
func (n Note) Raw() map[string]any { return n.doc }
func (n Note) Document() Document  { return n.doc }

// Attachments returns the attachment list in payload order.
func (n Note) Attachments() []Attachment {
	items := n.doc.Objects("attachments")
	out := make([]Attachment, 0, len(items))
	for _, a := range items {
		out = append(out, Attachment{
			URL:        a.String("url"),
			Type:       a.String("type"),
			Title:      a.String("title"),
			DurationMs: a.Int("duration"),
		})
	}
	return out
}

// imageKeys is the priority order of the image lists; the first non-empty wins.
var imageKeys = []string{"original_images", "small_images", "body_images"}

// Images returns the image URLs from the first non-empty image list.
// Elements may be plain strings or objects with a "url" key; empty URLs are
// kept as "" so positions stay aligned with file numbering.
func (n Note) Images() []string {
	return n.imagesFrom(imageKeys...)
}

// ResourceImages is Images restricted to the lists knowledge-base notes carry.
func (n Note) ResourceImages() []string {
	return n.imagesFrom("original_images", "small_images")
}

func (n Note) imagesFrom(keys ...string) []string {
	for _, key := range keys {
		list := n.doc.List(key)
		if len(list) == 0 {
			continue
		}
		out := make([]string, len(list))
		for i, item := range list {
			switch v := item.(type) {
			case string:
				out[i] = v
			case map[string]any:
				out[i] = Document(v).String("url")
			}
		}
		return out
	}
	return nil
}

// Tags returns all tags, including system ones.
func (n Note) Tags() []Tag {
	items := n.doc.Objects("tags")
	out := make([]Tag, 0, len(items))
	for _, t := range items {
		out = append(out, Tag{Name: t.String("name"), Type: t.String("type")})
	}
	return out
}

// UserTags returns tag names excluding system tags.
func (n Note) UserTags() []string {
	var out []string
	for _, t := range n.Tags() {
		if t.Type != "system" {
			out = append(out, t.Name)
		}
	}
	return out
}

// Topics returns the names of the knowledge bases the note belongs to.
func (n Note) Topics() []string {
	items := n.doc.Objects("topics")
	out := make([]string, 0, len(items))
	for _, t := range items {
		name := t.String("topic_name")
		if name == "" {
			name = "(未知)"
		}
		out = append(out, name)
	}
	return out
}

// Reference returns the "res_info" block with trimmed fields.
func (n Note) Reference() ResourceRef {
	info := n.doc.Object("res_info")
	if info == nil {
		return ResourceRef{}
	}
	return ResourceRef{
		Title: strings.TrimSpace(info.String("title")),
		URL:   strings.TrimSpace(info.String("url")),
	}
}
