// Package parser extracts frontmatter, note metadata, and tags from Markdown
// content: rendered note.md exports as well as drafts written by hand.
package parser

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	tagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}\p{N}_/-]*)`)
	// Metadata rows written by the renderer: "| ID | `123` |".
	idRowRe  = regexp.MustCompile("(?m)^\\| ID \\| `([^`]*)` \\|$")
	tagRowRe = regexp.MustCompile(`(?m)^\| 标签 \| (.*) \|$`)
	codeRe   = regexp.MustCompile("`([^`]+)`")
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	// NoteID is read from the metadata table of a rendered note.
	NoteID string
	Tags   []string
	Title  string
}

// Parse extracts frontmatter, body, metadata, and tags from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		NoteID:      extractNoteID(body, fm),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep everything as body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractNoteID prefers the metadata table; frontmatter "id" is the fallback.
func extractNoteID(body string, fm map[string]interface{}) string {
	if m := idRowRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	if fm != nil {
		switch v := fm["id"].(type) {
		case string:
			return v
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// extractTags collects tags from frontmatter, the metadata table, and inline
// #tags in the body, deduplicated in that order.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	if m := tagRowRe.FindStringSubmatch(body); m != nil {
		for _, c := range codeRe.FindAllStringSubmatch(m[1], -1) {
			add(c[1])
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
