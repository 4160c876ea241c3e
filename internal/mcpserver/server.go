// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Get Notes export, search and authoring tools to LLM clients.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/getnotes/internal/cache"
	"github.com/starford/getnotes/internal/getnotes"
	"github.com/starford/getnotes/internal/index"
	"github.com/starford/getnotes/internal/models"
	"github.com/starford/getnotes/internal/sse"
	"github.com/starford/getnotes/internal/storage"
	"github.com/starford/getnotes/internal/syncer"
)

// Version is reported in the MCP handshake.
const Version = "1.0.0"

// maxNotes caps the limit argument of the download and listing tools.
const maxNotes = 100

const instructions = `Get Notes MCP: manage "Get 笔记" notes.

Authentication is handled by the CLI: run "getnotes login" in a terminal
before calling any tool that talks to the service.`

// API is the part of the Get Notes client the tools call.
type API interface {
	syncer.NotesLister
	syncer.ResourceLister
	Search(ctx context.Context, query string, page, pageSize int) (*models.SearchResult, error)
	ListNotebooks(ctx context.Context) ([]models.Notebook, error)
	ListSubscribedNotebooks(ctx context.Context) ([]models.Notebook, error)
	AddNoteToNotebook(ctx context.Context, noteID string, topicID, dirID int64) error
	CreateNote(ctx context.Context, d getnotes.Draft) (*getnotes.Created, error)
	UploadImage(ctx context.Context, path string) (*getnotes.ImageToken, error)
}

var _ API = (*getnotes.Client)(nil)

// Connector returns an authenticated client. It is called once per tool
// invocation so a fresh login is picked up without a restart.
type Connector func(ctx context.Context) (API, error)

// Publisher receives an event after every download tool run.
// *sse.Broker satisfies it.
type Publisher interface {
	Publish(sse.Event)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Connect  Connector
	Store    storage.Provider
	Manifest *cache.Manifest
	// Index is optional; search_local fails without it.
	Index   *index.DB
	Fetcher syncer.Fetcher
	Logger  *slog.Logger
	// Sync carries delay, page size and SaveJSON for the download tools.
	Sync syncer.Options
	// Events is optional.
	Events Publisher
}

// Server wraps the MCP server with Get Notes tools.
type Server struct {
	mcp *server.MCPServer
	Deps

	// mu serialises tools that touch the export tree.
	mu sync.Mutex
}

// New creates a new MCP server with all tools registered.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{Deps: d}

	s.mcp = server.NewMCPServer(
		"getnotes",
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool("download_notes",
		mcp.WithDescription("Download the most recent notes as Markdown into the export directory."),
		mcp.WithNumber("limit", mcp.Description("Number of notes to check (default 10, max 100)")),
		mcp.WithBoolean("force", mcp.Description("Re-download notes even when the cache says they are unchanged")),
	), s.downloadNotes)

	s.mcp.AddTool(mcp.NewTool("get_recent_notes",
		mcp.WithDescription("Fetch the most recent notes from the cloud without writing anything to disk."),
		mcp.WithNumber("limit", mcp.Description("Number of notes to fetch (default 10, max 100)")),
	), s.getRecentNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes on the server by keyword."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search keyword or phrase")),
		mcp.WithNumber("page", mcp.Description("Page number starting at 1")),
		mcp.WithNumber("page_size", mcp.Description("Results per page (default 10)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note by its ID. Looks in the local export first, then falls back to a server search."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note ID, e.g. from search_notes")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("search_local",
		mcp.WithDescription("Full-text search through the downloaded notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchLocal)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note from text or Markdown content. "+
			"Images can be uploaded first with upload_image and referenced by their URL."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The text or Markdown content of the note")),
		mcp.WithString("title", mcp.Description("Optional title")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload an image (http(s) URL or base64 data URI) to the note image store. "+
			"Returns the public URL and a Markdown image line."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; the extension selects the format")),
	), s.uploadImage)

	s.mcp.AddTool(mcp.NewTool("list_notebooks",
		mcp.WithDescription("List the knowledge bases (notebooks) created by the user."),
	), s.listNotebooks)

	s.mcp.AddTool(mcp.NewTool("list_subscribed_notebooks",
		mcp.WithDescription("List the knowledge bases (notebooks) the user subscribes to."),
	), s.listSubscribedNotebooks)

	s.mcp.AddTool(mcp.NewTool("download_notebook",
		mcp.WithDescription("Download every note and file of one of the user's notebooks."),
		mcp.WithString("notebook_id", mcp.Required(), mcp.Description("Notebook ID (id_alias) from list_notebooks")),
		mcp.WithBoolean("force", mcp.Description("Re-download notes that already exist locally")),
	), s.downloadNotebook)

	s.mcp.AddTool(mcp.NewTool("download_subscribed_notebook",
		mcp.WithDescription("Download every note and file of a subscribed notebook."),
		mcp.WithString("notebook_id", mcp.Required(), mcp.Description("Notebook ID (id_alias) from list_subscribed_notebooks")),
		mcp.WithBoolean("force", mcp.Description("Re-download notes that already exist locally")),
	), s.downloadSubscribedNotebook)

	s.mcp.AddTool(mcp.NewTool("add_note_to_notebook",
		mcp.WithDescription("Add an existing note to one of the user's notebooks."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note ID to add")),
		mcp.WithString("notebook_id", mcp.Required(), mcp.Description("Notebook ID (id_alias) from list_notebooks")),
	), s.addNoteToNotebook)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Describe the layout of the export directory and of an exported note.md."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Export Format",
			mcp.WithResourceDescription("Layout of the export directory and the exported Markdown notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// Listen serves the stdio transport on in/out until ctx is done or in is
// closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// connect returns a client or a tool error telling the user to log in.
func (s *Server) connect(ctx context.Context) (API, *mcp.CallToolResult) {
	if s.Connect == nil {
		return nil, mcp.NewToolResultError("authentication failed: no credential source configured")
	}
	api, err := s.Connect(ctx)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("authentication failed, run 'getnotes login' in a terminal (%v)", err))
	}
	return api, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 10
	case n > maxNotes:
		return maxNotes
	}
	return n
}

func (s *Server) publish(kind string, stats any) {
	if s.Events != nil {
		s.Events.Publish(sse.Event{Type: sse.SyncFinished, Data: map[string]any{"kind": kind, "stats": stats}})
	}
}

func (s *Server) syncOptions(force bool) syncer.Options {
	o := s.Sync
	o.Force = force
	if s.Index != nil {
		o.Indexer = s.Index
	}
	return o
}
