package render

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is used for export timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// IndexRow is one note folder listed in the export index.
type IndexRow struct {
	Folder string
	// NoteID is empty when the folder has no readable note.json.
	NoteID string
	Title  string
}

// Counts are the sync counters shown in the export index.
type Counts struct {
	New     int
	Updated int
	Cached  int
	Failed  int
}

// ExportIndex describes the root INDEX.md of a notes export.
type ExportIndex struct {
	At        time.Time
	Processed int
	Total     string
	Counts    Counts
	Rows      []IndexRow
}

// Markdown renders the index document.
func (x ExportIndex) Markdown() string {
	var b strings.Builder
	b.WriteString("# Get笔记 导出索引\n\n")
	fmt.Fprintf(&b, "- 导出时间: %s\n", x.At.Format(TimeLayout))
	fmt.Fprintf(&b, "- 处理笔记数: %d\n", x.Processed)
	fmt.Fprintf(&b, "- 服务端总数: %s\n", x.Total)
	fmt.Fprintf(&b, "- 新增: %d | 更新: %d | 缓存跳过: %d", x.Counts.New, x.Counts.Updated, x.Counts.Cached)
	if x.Counts.Failed > 0 {
		fmt.Fprintf(&b, " | 失败: %d", x.Counts.Failed)
	}
	b.WriteString("\n\n")
	b.WriteString("## 笔记列表\n\n")
	b.WriteString("| # | 笔记 ID | 文件夹 |\n")
	b.WriteString("|---|---------|--------|\n")
	for i, r := range x.Rows {
		link := "notes/" + r.Folder + "/note.md"
		if r.NoteID == "" {
			fmt.Fprintf(&b, "| %d | - | [%s](%s) |\n", i+1, r.Folder, link)
			continue
		}
		title := r.Title
		if title == "" {
			title = "(无标题)"
		}
		fmt.Fprintf(&b, "| %d | `%s` | [%s](%s) |\n", i+1, r.NoteID, title, link)
	}
	return b.String()
}

// FileRow is one downloaded knowledge-base file.
type FileRow struct {
	Name string
	Size int64
}

// NotebookIndex describes the INDEX.md at a knowledge-base root.
type NotebookIndex struct {
	Name  string
	At    time.Time
	Notes int
	Files int
	// NoteFolders are folders under notes/ holding a note.md.
	NoteFolders []string
	FileRows    []FileRow
}

// Markdown renders the knowledge-base index document.
func (x NotebookIndex) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 📚 %s\n\n", x.Name)
	fmt.Fprintf(&b, "- 导出时间: %s\n", x.At.Format(TimeLayout))
	fmt.Fprintf(&b, "- 笔记数: %d\n", x.Notes)
	fmt.Fprintf(&b, "- 文件数: %d\n\n", x.Files)

	if len(x.NoteFolders) > 0 {
		b.WriteString("## 笔记列表\n\n")
		b.WriteString("| # | 笔记 |\n")
		b.WriteString("|---|------|\n")
		for i, d := range x.NoteFolders {
			fmt.Fprintf(&b, "| %d | [%s](notes/%s/note.md) |\n", i+1, d, d)
		}
	}

	if len(x.FileRows) > 0 {
		b.WriteString("\n## 文件列表\n\n")
		b.WriteString("| # | 文件名 | 大小 |\n")
		b.WriteString("|---|--------|------|\n")
		for i, f := range x.FileRows {
			fmt.Fprintf(&b, "| %d | [%s](files/%s) | %.1f KB |\n", i+1, f.Name, f.Name, float64(f.Size)/1024)
		}
	}
	return b.String()
}
