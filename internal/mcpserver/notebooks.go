package mcpserver

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/syncer"
)

func (s *Server) listNotebooks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	nbs, err := api.ListNotebooks(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch notebooks: %v", err)), nil
	}
	if len(nbs) == 0 {
		return mcp.NewToolResultText("You have no notebooks."), nil
	}
	lines := []string{fmt.Sprintf("Found %d notebooks:", len(nbs))}
	for i, nb := range nbs {
		lines = append(lines, fmt.Sprintf("%d. %s (ID: %s) - %d items", i+1, nb.Name, nb.Alias, nb.ResourceCount))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listSubscribedNotebooks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	nbs, err := api.ListSubscribedNotebooks(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch subscribed notebooks: %v", err)), nil
	}
	if len(nbs) == 0 {
		return mcp.NewToolResultText("You have no subscribed notebooks."), nil
	}
	lines := []string{fmt.Sprintf("Found %d subscribed notebooks:", len(nbs))}
	for i, nb := range nbs {
		creator := nb.Creator
		if creator == "" {
			creator = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("%d. %s (by %s) (ID: %s) - %d items", i+1, nb.Name, creator, nb.Alias, nb.ResourceCount))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) downloadNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.notebookDownload(ctx, req, false)
}

func (s *Server) downloadSubscribedNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.notebookDownload(ctx, req, true)
}

func (s *Server) notebookDownload(ctx context.Context, req mcp.CallToolRequest, subscribed bool) (*mcp.CallToolResult, error) {
	alias, err := req.RequireString("notebook_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	force := req.GetBool("force", false)

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	list := api.ListNotebooks
	kind := "notebook"
	if subscribed {
		list = api.ListSubscribedNotebooks
		kind = "subscribed notebook"
	}
	nbs, err := list(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch notebooks: %v", err)), nil
	}
	nb, ok := findNotebook(nbs, alias)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("could not find %s with ID %q", kind, alias)), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := syncer.NewNotebookSync(api, s.Store, s.Fetcher, s.Logger, s.syncOptions(force)).DownloadNotebook(ctx, nb)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("download %s: %v", kind, err)), nil
	}
	s.publish("notebook", stats)

	var b strings.Builder
	fmt.Fprintf(&b, "Downloaded %s '%s'", kind, nb.Name)
	if subscribed && nb.Creator != "" {
		fmt.Fprintf(&b, " by %s", nb.Creator)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Notes: %d\n", stats.Notes)
	fmt.Fprintf(&b, "- Files: %d\n", stats.Files)
	fmt.Fprintf(&b, "- Skipped: %d\n", stats.Skipped)
	if stats.Failed > 0 {
		fmt.Fprintf(&b, "- Failed: %d\n", stats.Failed)
	}
	fmt.Fprintf(&b, "Saved to %s/", path.Join(s.Store.Root(), syncer.NotebookDir(nb)))
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) addNoteToNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	alias, err := req.RequireString("notebook_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	api, errResult := s.connect(ctx)
	if errResult != nil {
		return errResult, nil
	}
	nbs, err := api.ListNotebooks(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch notebooks: %v", err)), nil
	}
	nb, ok := findNotebook(nbs, alias)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("notebook with ID %q not found; use list_notebooks to get valid IDs", alias)), nil
	}
	if nb.ID == 0 || nb.RootDirID == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("notebook %q has no topic or root directory ID", alias)), nil
	}
	if err := api.AddNoteToNotebook(ctx, noteID, nb.ID, nb.RootDirID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add note to notebook: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added note '%s' to notebook '%s'.", noteID, nb.Name)), nil
}

func findNotebook(nbs []models.Notebook, alias string) (models.Notebook, bool) {
	for _, nb := range nbs {
		if nb.Alias == alias {
			return nb, true
		}
	}
	return models.Notebook{}, false
}
