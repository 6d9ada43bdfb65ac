package transcoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"book-library/internal/library"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestNewWithMissingBinary(t *testing.T) {
	tr := NewWithBinary(t.TempDir(), "definitely-not-a-real-binary-xyz")
	if tr.IsEnabled() {
		t.Error("transcoder should be disabled when the binary is missing")
	}
}

func TestCachedPagePath(t *testing.T) {
	tr := &Transcoder{cacheDir: "/cache/pdf"}
	got := tr.CachedPagePath("abc", 3)
	want := filepath.Join("/cache/pdf", "abc", "3.svg")
	if got != want {
		t.Errorf("CachedPagePath() = %q, want %q", got, want)
	}
}

func TestPageSVGServesCachedPage(t *testing.T) {
	dir := t.TempDir()
	tr := &Transcoder{cacheDir: dir, processes: make(map[string]*exec.Cmd)}
	cached := tr.CachedPagePath("book", 2)
	writeFile(t, cached, 10)

	// Disabled transcoders still serve what is already cached.
	got, err := tr.PageSVG(context.Background(), "book", "/missing.pdf", 2)
	if err != nil {
		t.Fatalf("PageSVG() error = %v", err)
	}
	if got != cached {
		t.Errorf("PageSVG() = %q, want %q", got, cached)
	}
}

func TestPageSVGDisabled(t *testing.T) {
	tr := &Transcoder{cacheDir: t.TempDir(), processes: make(map[string]*exec.Cmd)}
	_, err := tr.PageSVG(context.Background(), "book", "/missing.pdf", 1)
	if !errors.Is(err, library.ErrRenderFailure) {
		t.Errorf("PageSVG() error = %v, want ErrRenderFailure", err)
	}
}

func TestPageSVGRejectsInvalidPage(t *testing.T) {
	tr := &Transcoder{cacheDir: t.TempDir(), enabled: true, binary: "true", processes: make(map[string]*exec.Cmd)}
	_, err := tr.PageSVG(context.Background(), "book", "/missing.pdf", 0)
	if !errors.Is(err, library.ErrInvalidState) {
		t.Errorf("PageSVG() error = %v, want ErrInvalidState", err)
	}
}

func TestPageSVGConverterFailure(t *testing.T) {
	falseBin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	dir := t.TempDir()
	tr := &Transcoder{cacheDir: dir, enabled: true, binary: falseBin, processes: make(map[string]*exec.Cmd)}

	_, err = tr.PageSVG(context.Background(), "book", "/missing.pdf", 1)
	if !errors.Is(err, library.ErrRenderFailure) {
		t.Fatalf("PageSVG() error = %v, want ErrRenderFailure", err)
	}
	if _, statErr := os.Stat(tr.CachedPagePath("book", 1) + ".tmp"); !os.IsNotExist(statErr) {
		t.Error("temporary output should be removed after a failed conversion")
	}
	if len(tr.processes) != 0 {
		t.Errorf("process table should be empty, has %d entries", len(tr.processes))
	}
}

func TestClearBook(t *testing.T) {
	dir := t.TempDir()
	tr := &Transcoder{cacheDir: dir}
	writeFile(t, filepath.Join(dir, "a", "1.svg"), 5)
	writeFile(t, filepath.Join(dir, "b", "1.svg"), 5)

	if err := tr.ClearBook("a"); err != nil {
		t.Fatalf("ClearBook() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a")); !os.IsNotExist(err) {
		t.Error("book a cache should be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "b", "1.svg")); err != nil {
		t.Error("book b cache should be untouched")
	}
	if err := tr.ClearBook(""); err != nil {
		t.Errorf("ClearBook(\"\") error = %v", err)
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "1.svg"), 100)
	writeFile(t, filepath.Join(dir, "a", "2.svg"), 50)
	writeFile(t, filepath.Join(dir, "loose.jpg"), 25)

	freed, err := ClearDir(dir)
	if err != nil {
		t.Fatalf("ClearDir() error = %v", err)
	}
	if freed != 175 {
		t.Errorf("ClearDir() freed = %d, want 175", freed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("cache dir should survive: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache dir should be empty, has %d entries", len(entries))
	}
}

func TestClearDirMissing(t *testing.T) {
	freed, err := ClearDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || freed != 0 {
		t.Errorf("ClearDir(missing) = (%d, %v), want (0, nil)", freed, err)
	}
	freed, err = ClearDir("")
	if err != nil || freed != 0 {
		t.Errorf("ClearDir(\"\") = (%d, %v), want (0, nil)", freed, err)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x", "y", "z.bin"), 40)
	writeFile(t, filepath.Join(dir, "top.bin"), 2)

	size, err := DirSize(dir)
	if err != nil {
		t.Fatalf("DirSize() error = %v", err)
	}
	if size != 42 {
		t.Errorf("DirSize() = %d, want 42", size)
	}

	size, err = DirSize(filepath.Join(dir, "missing"))
	if err != nil || size != 0 {
		t.Errorf("DirSize(missing) = (%d, %v), want (0, nil)", size, err)
	}
}
