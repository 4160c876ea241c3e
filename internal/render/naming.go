// Package render turns notes into the Markdown export tree: folder and file
// naming, note documents and INDEX.md summaries.
package render

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// Name length limits.
const (
	MaxFolderName = 80
	MaxFileName   = 120
)

// CreatedLayout is the vendor timestamp format.
const CreatedLayout = "2006-01-02 15:04:05"

var illegal = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_",
	"|", "_", "?", "_", "*", "_", "\n", "_", "\r", "_", "\t", "_",
)

// SanitizeFilename replaces characters that are illegal in file names,
// trims spaces and dots at both ends and truncates to max runes. An empty
// result becomes "untitled". Applying it twice yields the same name.
func SanitizeFilename(name string, max int) string {
	if max <= 0 {
		max = MaxFolderName
	}
	name = illegal.Replace(name)
	name = strings.Trim(name, " .")
	if utf8.RuneCountInString(name) > max {
		name = string([]rune(name)[:max])
		name = strings.TrimRight(name, " .")
	}
	if name == "" {
		return "untitled"
	}
	return name
}

// FileExtension returns the extension of the URL path (percent-decoded),
// or def when there is none.
func FileExtension(rawURL, def string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return def
}

// FormatDuration renders milliseconds as "X小时Y分Z秒", "Y分Z秒" or "Z秒",
// dropping leading zero units. Non-positive input yields "".
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return ""
	}
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%d小时%d分%d秒", hours, minutes%60, seconds%60)
	case minutes > 0:
		return fmt.Sprintf("%d分%d秒", minutes, seconds%60)
	default:
		return fmt.Sprintf("%d秒", seconds)
	}
}

// DatePrefix formats a vendor created_at as 20060102_150405. Values that do
// not parse are kept with spaces turned into "_" and colons removed.
func DatePrefix(createdAt string) string {
	if createdAt == "" {
		return ""
	}
	if t, err := time.Parse(CreatedLayout, createdAt); err == nil {
		return t.Format("20060102_150405")
	}
	return strings.ReplaceAll(strings.ReplaceAll(createdAt, " ", "_"), ":", "")
}

// FolderName derives a fresh folder name from the creation time and title,
// using the ID when the title is blank.
func FolderName(createdAt, title, id string) string {
	label := strings.TrimSpace(title)
	if label == "" {
		label = id
	}
	return SanitizeFilename(DatePrefix(createdAt)+"_"+label, MaxFolderName)
}

// CollisionName disambiguates a fresh folder name that is already taken by
// appending the last six characters of the ID.
func CollisionName(folder, id string) string {
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return folder + "_" + id
}
