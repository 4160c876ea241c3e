package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - notes\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "notes" {
		t.Errorf("tags = %v, want [go notes]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Invalid YAML falls back to treating everything as body.
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestParse_RenderedNote(t *testing.T) {
	input := []byte("# 周会纪要\n\n## 📋 笔记信息\n\n| 属性 | 值 |\n|------|-----|\n" +
		"| ID | `1875` |\n| 来源 | app |\n| 标签 | `工作`, `会议` |\n\n## 📝 内容\n\n讨论 #季度计划 安排\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "周会纪要" {
		t.Errorf("title = %q, want %q", r.Title, "周会纪要")
	}
	if r.NoteID != "1875" {
		t.Errorf("note id = %q, want %q", r.NoteID, "1875")
	}
	want := []string{"工作", "会议", "季度计划"}
	if len(r.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", r.Tags, want)
	}
	for i := range want {
		if r.Tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, r.Tags[i], want[i])
		}
	}
}

func TestParse_HeadingsAreNotTags(t *testing.T) {
	r, err := Parse([]byte("# Title\n## 📋 笔记信息\n### Sub\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Tags) != 0 {
		t.Errorf("tags = %v, want none", r.Tags)
	}
	if r.NoteID != "" {
		t.Errorf("note id = %q, want empty", r.NoteID)
	}
}

func TestExtractNoteID_FrontmatterFallback(t *testing.T) {
	if id := extractNoteID("body", map[string]any{"id": 42}); id != "42" {
		t.Errorf("id = %q, want %q", id, "42")
	}
	if id := extractNoteID("body", map[string]any{"id": "abc"}); id != "abc" {
		t.Errorf("id = %q, want %q", id, "abc")
	}
}

func TestExtractTags_CommaSeparatedFrontmatter(t *testing.T) {
	tags := extractTags("", map[string]any{"tags": "a, b,,a"})
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("tags = %v, want [a b]", tags)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha"},
	}
	body := "Some text #beta and #alpha again."
	tags := extractTags(body, fm)
	// alpha from FM, beta from body; alpha not duplicated.
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	body := "# H1 Title\ntext"
	title := deriveTitle(fm, body)
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	title := deriveTitle(nil, "some text\n# My Heading\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}
