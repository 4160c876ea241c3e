package getnotes

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/starford/getnotes/internal/models"
)

// ListNotebooks returns the knowledge bases the user owns.
func (c *Client) ListNotebooks(ctx context.Context) ([]models.Notebook, error) {
	resp, err := c.do(ctx, http.MethodGet, c.knowledgeURL("topic/mine/list"), nil, nil, knowledgeHeaders)
	if err != nil {
		return nil, err
	}
	items, err := decodeObjects(resp.payload)
	if err != nil {
		return nil, err
	}
	return notebooks(items), nil
}

// ListSubscribedNotebooks returns subscribed knowledge bases, excluding owned ones.
func (c *Client) ListSubscribedNotebooks(ctx context.Context) ([]models.Notebook, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("size", "200")
	q.Set("exclude_mine", "true")

	resp, err := c.do(ctx, http.MethodGet, c.knowledgeURL("subscribe/topic/list"), q, nil, knowledgeHeaders)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(resp.payload)
	if err != nil {
		return nil, err
	}
	return notebooks(doc.Objects("list")), nil
}

func notebooks(items []models.Document) []models.Notebook {
	out := make([]models.Notebook, 0, len(items))
	for _, it := range items {
		out = append(out, models.NotebookFromDocument(it))
	}
	return out
}

// ListResources fetches one page (starting at 1) of a knowledge-base
// directory: sub-directories plus note and file resources.
func (c *Client) ListResources(ctx context.Context, alias string, dirID int64, page int) (*models.ResourcePage, error) {
	q := url.Values{}
	q.Set("topic_id", "-1")
	q.Set("topic_id_alias", alias)
	q.Set("directory_id", strconv.FormatInt(dirID, 10))
	q.Set("sort", "create_time_desc")
	q.Set("resource_type", "0")
	q.Set("page", strconv.Itoa(page))

	resp, err := c.do(ctx, http.MethodGet, c.knowledgeURL("topic/resource/list/mix"), q, nil, knowledgeHeaders)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(resp.payload)
	if err != nil {
		return nil, err
	}
	p := models.ResourcePageFromDocument(doc)
	return &p, nil
}

// AddNoteToNotebook files an existing note under a knowledge base directory.
func (c *Client) AddNoteToNotebook(ctx context.Context, noteID string, topicID, dirID int64) error {
	body := map[string]any{
		"ids":          noteID,
		"topic_id":     topicID,
		"directory_id": dirID,
	}
	_, err := c.do(ctx, http.MethodPost, c.notesURL("topics/import/notes"), nil, body, nil)
	return err
}
