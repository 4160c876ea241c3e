package render

import (
	"strconv"

	"github.com/starford/getnotes/internal/models"
)

// AttachmentsDir is the per-note sub-directory for downloaded files.
const AttachmentsDir = "attachments"

// Asset is one downloadable file of a note.
type Asset struct {
	URL  string
	Name string // file name inside AttachmentsDir
}

// RelPath is the asset path relative to the note folder.
func (a Asset) RelPath() string { return AttachmentsDir + "/" + a.Name }

// Plan maps a note's attachments and images to local file names. Positions
// follow the payload so numbering is stable; entries without a URL, and link
// attachments, are left zero.
type Plan struct {
	Attachments []Asset
	Images      []Asset
}

// Files lists every asset that should be downloaded.
func (p Plan) Files() []Asset {
	var out []Asset
	for _, a := range p.Attachments {
		if a.URL != "" {
			out = append(out, a)
		}
	}
	for _, a := range p.Images {
		if a.URL != "" {
			out = append(out, a)
		}
	}
	return out
}

// PlanFiles names the assets of n. images is the chosen image list
// (Note.Images or Note.ResourceImages).
func PlanFiles(n models.Note, images []string) Plan {
	var p Plan
	for i, att := range n.Attachments() {
		var a Asset
		if att.URL != "" && att.Type != "link" {
			a = Asset{URL: att.URL, Name: "attachment_" + strconv.Itoa(i+1) + attachmentExt(att)}
		}
		p.Attachments = append(p.Attachments, a)
	}
	for i, u := range images {
		var a Asset
		if u != "" {
			a = Asset{URL: u, Name: "image_" + strconv.Itoa(i+1) + FileExtension(u, ".jpg")}
		}
		p.Images = append(p.Images, a)
	}
	return p
}

func attachmentExt(att models.Attachment) string {
	typ := att.Type
	if typ == "" {
		typ = "bin"
	}
	return FileExtension(att.URL, "."+typ)
}
