package models

// Resource types returned by the knowledge-base listing.
const (
	ResourceNote = "NOTE"
	ResourceFile = "FILE"
)

// Notebook is a knowledge base, owned or subscribed.
type Notebook struct {
	ID             int64  `json:"id"`
	Alias          string `json:"id_alias"`
	Name           string `json:"name"`
	Creator        string `json:"creator,omitempty"`
	ResourceCount  int64  `json:"resource_count"`
	SubscribeCount int64  `json:"subscribe_count,omitempty"`
	UpdatedDesc    string `json:"last_update_time_desc,omitempty"`
	RootDirID      int64  `json:"root_dir_id"`
}

// NotebookFromDocument reads a knowledge-base object. Missing names become
// "未命名知识库".
func NotebookFromDocument(d Document) Notebook {
	extend := d.Object("extend_data")
	root := d.Object("root_dir")
	nb := Notebook{
		ID:          d.Int("id"),
		Alias:       d.String("id_alias"),
		Name:        d.String("name"),
		Creator:     d.String("creator"),
		UpdatedDesc: d.String("last_update_time_desc"),
	}
	if nb.Name == "" {
		nb.Name = "未命名知识库"
	}
	if extend != nil {
		nb.ResourceCount = extend.Int("all_resource_count")
		nb.SubscribeCount = extend.Int("subscribe_count")
	}
	if root != nil {
		nb.RootDirID = root.Int("id")
	}
	return nb
}

// Directory is a sub-directory inside a knowledge base.
type Directory struct {
	ID   int64
	Name string
}

// FileMeta describes a FILE resource.
type FileMeta struct {
	Name string
	URL  string
}

// Resource is one entry of a knowledge-base directory listing.
type Resource struct {
	doc Document
}

// NewResource wraps a decoded resource object.
func NewResource(raw map[string]any) Resource {
	if raw == nil {
		raw = map[string]any{}
	}
	return Resource{doc: Document(raw)}
}

// Type is "NOTE", "FILE" or any other vendor value.
func (r Resource) Type() string { return r.doc.String("resource_type") }

// Note returns the note metadata of a NOTE resource; ok is false when absent or empty.
func (r Resource) Note() (Note, bool) {
	meta := r.doc.Object("resource_note_meta_data")
	if len(meta) == 0 {
		return Note{}, false
	}
	return NewNote(meta), true
}

// File returns the metadata of a FILE resource; ok is false when absent or empty.
func (r Resource) File() (FileMeta, bool) {
	meta := r.doc.Object("resource_file_meta_data")
	if len(meta) == 0 {
		return FileMeta{}, false
	}
	name := meta.String("name")
	if name == "" {
		name = "unknown_file"
	}
	return FileMeta{Name: name, URL: meta.String("file_url")}, true
}

// Raw returns the wrapped resource object.
func (r Resource) Raw() map[string]any { return r.doc }

// ResourcePage is one page of a directory listing.
type ResourcePage struct {
	Directories []Directory
	Resources   []Resource
	HasNext     bool
}

// ResourcePageFromDocument reads the "c" payload of the resource listing.
func ResourcePageFromDocument(d Document) ResourcePage {
	var page ResourcePage
	for _, dir := range d.Objects("directories") {
		name := dir.String("name")
		if name == "" {
			name = "未命名目录"
		}
		page.Directories = append(page.Directories, Directory{ID: dir.Int("id"), Name: name})
	}
	for _, res := range d.Objects("resources") {
		page.Resources = append(page.Resources, NewResource(res))
	}
	page.HasNext = d.Bool("has_next")
	return page
}

// NoteFromSidecar extracts the note view from a saved note.json, which holds
// either the raw note or a whole knowledge-base resource.
func NoteFromSidecar(raw map[string]any) Note {
	d := Document(raw)
	if meta := d.Object("resource_note_meta_data"); meta != nil {
		return NewNote(meta)
	}
	return NewNote(raw)
}
