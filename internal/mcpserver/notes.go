package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/syncer"
)

func (s *Server) downloadNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clampLimit(req.GetInt("limit", 10))
	force := req.GetBool("force", false)

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.syncOptions(force)
	opts.Limit = limit
	stats, err := syncer.NewNoteSync(api, s.Store, s.Manifest, s.Fetcher, s.Logger, opts).Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("download notes: %v", err)), nil
	}
	s.publish("notes", stats)

	var b strings.Builder
	fmt.Fprintf(&b, "Checked %d recent notes.\n", stats.Processed)
	fmt.Fprintf(&b, "- New: %d\n", stats.New)
	fmt.Fprintf(&b, "- Updated: %d\n", stats.Updated)
	fmt.Fprintf(&b, "- Cached (skipped): %d\n", stats.Cached)
	if stats.Failed > 0 {
		fmt.Fprintf(&b, "- Failed: %d\n", stats.Failed)
	}
	if stats.Interrupted {
		b.WriteString("The run was interrupted before it finished.\n")
	}
	fmt.Fprintf(&b, "Notes are saved at %s", path.Join(s.Store.Root(), "notes")+"/")
	return mcp.NewToolResultText(b.String()), nil
}

type recentNote struct {
	NoteID     string   `json:"note_id"`
	Title      string   `json:"title"`
	NoteType   string   `json:"note_type"`
	Content    string   `json:"content"`
	RefContent string   `json:"ref_content"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"created_at"`
}

func (s *Server) getRecentNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clampLimit(req.GetInt("limit", 10))

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	page, err := api.ListNotes(ctx, "", limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch recent notes: %v", err)), nil
	}

	notes := make([]recentNote, 0, len(page.Notes))
	for _, n := range page.Notes {
		tags := n.UserTags()
		if tags == nil {
			tags = []string{}
		}
		notes = append(notes, recentNote{
			NoteID:     n.ID(),
			Title:      n.Title(),
			NoteType:   n.NoteType(),
			Content:    n.Content(),
			RefContent: n.RefContent(),
			Tags:       tags,
			CreatedAt:  n.CreatedAt(),
		})
	}
	return jsonResult(map[string]any{"notes": notes, "fetched_count": len(notes)})
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page := req.GetInt("page", 1)
	if page < 1 {
		page = 1
	}
	size := req.GetInt("page_size", 10)
	if size < 1 {
		size = 10
	}

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	res, err := api.Search(ctx, query, page, size)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search notes: %v", err)), nil
	}
	if len(res.Items) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No notes found matching '%s'.", query)), nil
	}
	return jsonResult(map[string]any{
		"query":    query,
		"total":    res.Total,
		"page":     page,
		"has_more": res.HasMore,
		"notes":    res.Items,
	})
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if doc, ok := s.localNote(id); ok {
		return mcp.NewToolResultText(string(doc)), nil
	}

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	res, err := api.Search(ctx, id, 1, 5)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read note: %v", err)), nil
	}
	for _, hit := range res.Items {
		if hit.NoteID == id {
			return mcp.NewToolResultText(hitMarkdown(hit)), nil
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf(
		"note %q not found locally or via search; run 'getnotes download' to sync notes first", id)), nil
}

// localNote reads the exported note.md of id using the cache manifest.
func (s *Server) localNote(id string) ([]byte, bool) {
	if s.Manifest == nil || s.Store == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Manifest.Load()
	e, ok := s.Manifest.Get(id)
	if !ok || e.FolderName == "" {
		return nil, false
	}
	data, err := s.Store.Read(path.Join("notes", e.FolderName, "note.md"))
	if err != nil {
		return nil, false
	}
	return data, true
}

// hitMarkdown renders a search hit as a short Markdown document.
func hitMarkdown(hit models.SearchHit) string {
	var parts []string
	if hit.Title != "" {
		parts = append(parts, "# "+hit.Title+"\n")
	}
	parts = append(parts, "**ID**: `"+hit.NoteID+"`")
	parts = append(parts, "**创建时间**: "+hit.CreatedAt)
	if len(hit.Tags) > 0 {
		parts = append(parts, "**标签**: "+strings.Join(hit.Tags, ", "))
	}
	if hit.Content != "" {
		parts = append(parts, "\n## 内容\n\n"+hit.Content)
	}
	if hit.RefContent != "" {
		parts = append(parts, "\n## 引用内容\n\n> "+hit.RefContent)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Server) searchLocal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.Index == nil {
		return mcp.NewToolResultError("local index is disabled"), nil
	}
	results, err := s.Index.Search(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no local notes found"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content is empty"), nil
	}

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	created, err := api.CreateNote(ctx, getnotes.Draft{
		Title: req.GetString("title", ""),
		Text:  getnotes.EditorText(content),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create note: %v", err)), nil
	}

	id := created.ID
	if id == "" {
		id = "unknown"
	}
	at := created.Raw.String("created_at")
	if at == "" {
		at = "unknown time"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created note.\nID: %s\nCreated at: %s", id, at)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
