package models

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var highlightRe = regexp.MustCompile(`</?hl>`)

// StripHighlight removes <hl>…</hl> markers and keeps the inner text.
func StripHighlight(s string) string {
	return highlightRe.ReplaceAllString(s, "")
}

// SearchHit is a cleaned search result.
type SearchHit struct {
	NoteID     string   `json:"note_id"`
	Title      string   `json:"title"`
	NoteType   string   `json:"note_type"`
	Content    string   `json:"content"`
	RefContent string   `json:"ref_content"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"created_at"`
	Source     string   `json:"source"`
	Snippet    string   `json:"highlight_snippet"`
}

// SearchHitFromDocument cleans a search item: highlight markers removed,
// system tags dropped, snippet taken from the first non-blank highlight part
// of title, content, then ref_content.
func SearchHitFromDocument(d Document) SearchHit {
	n := NewNote(d)
	hit := SearchHit{
		NoteID:     n.ID(),
		Title:      strings.TrimSpace(StripHighlight(n.Title())),
		NoteType:   n.NoteType(),
		Content:    strings.TrimSpace(StripHighlight(n.Content())),
		RefContent: strings.TrimSpace(StripHighlight(n.RefContent())),
		CreatedAt:  n.CreatedAt(),
		Source:     n.Source(),
		Tags:       []string{},
	}
	for _, t := range n.UserTags() {
		hit.Tags = append(hit.Tags, StripHighlight(t))
	}
	if hl := d.Object("highlight_info"); hl != nil {
	outer:
		for _, key := range []string{"title", "content", "ref_content"} {
			for _, part := range hl.List(key) {
				s, _ := part.(string)
				if strings.TrimSpace(s) != "" {
					hit.Snippet = strings.TrimSpace(StripHighlight(s))
					break outer
				}
			}
		}
	}
	return hit
}

// Excerpt flattens escaped newlines, strips highlights and truncates to max runes.
func Excerpt(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `\n`, "\n"))
	s = StripHighlight(s)
	if utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max]) + "..."
	}
	return s
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Items   []SearchHit `json:"notes"`
	Total   int64       `json:"total"`
	HasMore bool        `json:"has_more"`
}
