package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempExport(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempExport(t)
	content := []byte("# 你好\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempExport(t)
	if err := s.Write("notes/20240101_a/attachments/x.bin", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Exists("notes/20240101_a/attachments") {
		t.Error("parent directory not created")
	}
}

func TestDelete(t *testing.T) {
	s := tempExport(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("del.md") {
		t.Error("file still exists after delete")
	}
}

func TestDirsAndFiles(t *testing.T) {
	s := tempExport(t)
	_ = s.MkdirAll("notes/b")
	_ = s.MkdirAll("notes/a")
	_ = s.Write("notes/INDEX.md", []byte("index"))
	_ = s.Write("notes/z.pdf", []byte("12345"))

	dirs, err := s.Dirs("notes")
	if err != nil {
		t.Fatalf("Dirs: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "a" || dirs[1] != "b" {
		t.Errorf("Dirs = %v", dirs)
	}

	files, err := s.Files("notes")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 || files[0].Name != "INDEX.md" || files[1].Size != 5 {
		t.Errorf("Files = %+v", files)
	}

	missing, err := s.Dirs("nope")
	if err != nil || len(missing) != 0 {
		t.Errorf("missing dir: %v %v", missing, err)
	}
}

func TestDocuments(t *testing.T) {
	s := tempExport(t)
	_ = s.Write("notes/a/note.md", []byte("a"))
	_ = s.Write("notes/b/note.md", []byte("b"))
	_ = s.Write("notes/b/note.json", []byte("{}"))
	_ = s.Write("notes/INDEX.md", []byte("index"))

	docs, err := s.Documents("", "note.md")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2", len(docs))
	}
	for _, d := range docs {
		if d.Checksum == "" || d.UpdatedAt.IsZero() {
			t.Errorf("incomplete meta: %+v", d)
		}
		if filepath.Base(d.Path) != "note.md" {
			t.Errorf("path = %s", d.Path)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempExport(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempExport(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".getnotes-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestWriteFileAtomicPerm(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg", "auth.json")
	if err := WriteFileAtomic(p, []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
}

func TestNewFS_CreatesMissingDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "export")
	if _, err := NewFS(root); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Error("root not created")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "getnotes-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
