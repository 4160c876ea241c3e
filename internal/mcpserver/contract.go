package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// NoteFormatURI is the resource URI of NoteFormat.
const NoteFormatURI = "getnotes://note-format"

// NoteFormat describes the export directory and the exported note.md so
// LLM consumers can navigate and parse the files the download tools write.
const NoteFormat = `# Get Notes Export Format

## Directory layout

` + "```" + `text
<output>/
  INDEX.md                      export index: one row per note folder
  cache_manifest.json           sync cache (note ID -> version, folder)
  notes/
    <YYYYMMDD_HHMMSS>_<title>/  one folder per note
      note.md
      note.json                 raw API item (only with --save-json)
      attachments/              downloaded images and attachments
  notebooks/
    <notebook name>/
      INDEX.md
      notes/<folder>/note.md
      files/<file name>
      <sub directory>/...       directories nest recursively
` + "```" + `

Folder names replace any of ` + "`" + `<>:"/\|?*` + "`" + ` and control characters with
` + "`_`" + ` and are truncated to 80 characters. Two notes with the same creation time
and title are told apart by a ` + "`_<last 6 characters of the ID>`" + ` suffix.

## note.md

Sections appear in this order and are omitted when empty:

1. ` + "`# <title>`" + `
2. ` + "`## 📋 笔记信息`" + ` metadata table: ID (inline code), 来源, 类型, 录入方式,
   创建时间, 更新时间, AI 生成 (是/否), 标签 (each tag in inline code).
3. ` + "`## 📝 内容`" + ` the note body.
4. ` + "`## 📖 引用内容`" + ` quoted reference content.
5. ` + "`## 🔊 附件`" + ` audio and other attachments, linked under ` + "`attachments/`" + `.
6. ` + "`## 🖼️ 图片`" + ` images as ` + "`![图片 N](attachments/image_N.ext)`" + `.
7. ` + "`## 🔗 引用来源`" + ` the linked source note or web page.
8. ` + "`## 📚 所属知识库`" + ` notebooks the note belongs to.

All links are relative to the note folder. Files are UTF-8.

## Reading notes

- ` + "`read_note`" + ` returns a note.md by note ID.
- ` + "`search_local`" + ` searches the downloaded notes; ` + "`search_notes`" + ` searches the server.
- ` + "`create_note`" + ` takes plain text or Markdown; line breaks become paragraphs.
`

func (s *Server) getNoteFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}
