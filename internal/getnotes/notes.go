package getnotes

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/starford/getnotes/internal/models"
)

// NotesPage is one page of the cursor-paginated note listing.
type NotesPage struct {
	Notes   []models.Note
	HasMore bool
	// Total is the server-side note count as reported, "?" when absent.
	Total string
	// Body is the raw response, kept for api_responses dumps.
	Body []byte
}

// LastCursor returns the cursor for the page after this one.
func (p *NotesPage) LastCursor() string {
	if len(p.Notes) == 0 {
		return ""
	}
	return p.Notes[len(p.Notes)-1].CursorID()
}

// ListNotes fetches one page of notes newest first, starting after cursor
// ("" for the first page).
func (c *Client) ListNotes(ctx context.Context, cursor string, limit int) (*NotesPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("since_id", cursor)
	q.Set("sort", "create_desc")

	resp, err := c.do(ctx, http.MethodGet, c.notesURL("notes"), q, nil, nil)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(resp.payload)
	if err != nil {
		return nil, err
	}

	page := &NotesPage{
		HasMore: doc.Bool("has_more"),
		Total:   doc.String("total_items"),
		Body:    resp.body,
	}
	if page.Total == "" {
		page.Total = "?"
	}
	for _, n := range doc.Objects("list") {
		page.Notes = append(page.Notes, models.NewNote(n))
	}
	return page, nil
}

// Search runs a keyword search. page starts at 1.
func (c *Client) Search(ctx context.Context, query string, page, pageSize int) (*models.SearchResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("query", query)

	resp, err := c.do(ctx, http.MethodGet, c.notesURL("notes/search"), q, nil, nil)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(resp.payload)
	if err != nil {
		return nil, err
	}

	out := &models.SearchResult{
		Items:   []models.SearchHit{},
		Total:   doc.Int("total"),
		HasMore: doc.Bool("has_more"),
	}
	for _, item := range doc.Objects("items") {
		out.Items = append(out.Items, models.SearchHitFromDocument(item))
	}
	return out, nil
}
