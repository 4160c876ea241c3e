package render

import (
	"fmt"
	"strings"

	"github.com/starford/getnotes/internal/models"
)

// Style selects the payload flavour being rendered.
type Style int

const (
	// StyleNote renders a note from the personal note list.
	StyleNote Style = iota
	// StyleResource renders a note resource inside a knowledge base. Those
	// payloads carry edit_time instead of updated_at, no body_images, no
	// durations and no res_info.
	StyleResource
)

// Images returns the image list used for n under this style.
func (s Style) Images(n models.Note) []string {
	if s == StyleResource {
		return n.ResourceImages()
	}
	return n.Images()
}

// Plan names the assets of n under this style.
func (s Style) Plan(n models.Note) Plan { return PlanFiles(n, s.Images(n)) }

// Markdown renders n as a self-contained document. Links to downloaded files
// are relative to the note folder. Sections without data are omitted.
func Markdown(n models.Note, style Style) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	plan := style.Plan(n)

	if title := n.Title(); title != "" {
		line("# %s", title)
		line("")
	}

	updated := n.EditedAt()
	if style == StyleResource {
		updated = n.Document().String("edit_time")
	}
	aiFlag := "否"
	if n.IsAIGenerated() {
		aiFlag = "是"
	}
	line("## 📋 笔记信息")
	line("")
	line("| 属性 | 值 |")
	line("|------|-----|")
	line("| ID | `%s` |", n.Document().String("note_id"))
	line("| 来源 | %s |", n.Source())
	line("| 类型 | %s |", n.NoteType())
	line("| 录入方式 | %s |", n.EntryType())
	line("| 创建时间 | %s |", n.CreatedAt())
	line("| 更新时间 | %s |", updated)
	line("| AI 生成 | %s |", aiFlag)
	if tags := n.Tags(); len(tags) > 0 {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = "`" + t.Name + "`"
		}
		line("| 标签 | %s |", strings.Join(names, ", "))
	}
	line("")

	if content := n.Content(); content != "" {
		line("## 📝 内容")
		line("")
		line("%s", content)
		line("")
	}

	if ref := n.RefContent(); ref != "" {
		line("## 📖 引用内容")
		line("")
		line("> %s", strings.ReplaceAll(ref, "\n", "\n> "))
		line("")
	}

	if atts := n.Attachments(); len(atts) > 0 {
		line("## 🔊 附件")
		line("")
		for i, att := range atts {
			typ := att.Type
			if typ == "" {
				typ = "unknown"
			}
			switch {
			case typ == "link":
				if att.URL == "" {
					continue
				}
				label := att.Title
				if label == "" {
					label = att.URL
				}
				line("- 🔗 [%s](%s)", label, att.URL)
			case att.URL != "":
				asset := plan.Attachments[i]
				if style == StyleResource {
					line("- **%s**: [%s](%s)", strings.ToUpper(typ), asset.Name, asset.RelPath())
					continue
				}
				dur := ""
				if d := FormatDuration(att.DurationMs); d != "" {
					dur = "（时长: " + d + "）"
				}
				line("- **%s** %s: [%s](%s)", strings.ToUpper(typ), dur, asset.Name, asset.RelPath())
			default:
				line("- **%s**: (无链接)", strings.ToUpper(typ))
			}
		}
		line("")
	}

	if len(plan.Images) > 0 {
		line("## 🖼️ 图片")
		line("")
		for i, img := range plan.Images {
			if img.URL == "" {
				continue
			}
			line("![图片 %d](%s)", i+1, img.RelPath())
			line("")
		}
	}

	if style == StyleNote {
		if ref := n.Reference(); ref.Title != "" || ref.URL != "" {
			line("## 🔗 引用来源")
			line("")
			switch {
			case ref.Title != "" && ref.URL != "":
				line("[%s](%s)", ref.Title, ref.URL)
			case ref.Title != "":
				line("%s", ref.Title)
			default:
				line("[链接](%s)", ref.URL)
			}
			line("")
		}
	}

	if topics := n.Topics(); len(topics) > 0 {
		line("## 📚 所属知识库")
		line("")
		for _, t := range topics {
			line("- %s", t)
		}
		line("")
	}

	return strings.TrimSuffix(b.String(), "\n")
}
