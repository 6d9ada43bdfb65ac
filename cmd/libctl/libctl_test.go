package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"book-library/internal/library"
)

type testDirs struct {
	library  string
	database string
	cache    string
	settings string
}

func newTestDirs(t *testing.T) testDirs {
	t.Helper()
	tmp := t.TempDir()
	d := testDirs{
		library:  filepath.Join(tmp, "books"),
		database: filepath.Join(tmp, "db"),
		cache:    filepath.Join(tmp, "cache"),
		settings: filepath.Join(tmp, "settings.yaml"),
	}
	for _, dir := range []string{d.database, d.cache} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writePage(t, filepath.Join(d.library, "Comic", "001.png"))
	writePage(t, filepath.Join(d.library, "Comic", "002.png"))
	writePage(t, filepath.Join(d.library, "Shelf", "Other", "001.png"))
	return d
}

func writePage(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, d testDirs, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--database-dir", d.database,
		"--cache-dir", d.cache,
		"--settings", d.settings,
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScanThenStats(t *testing.T) {
	d := newTestDirs(t)

	out, err := run(t, d, "scan", "--library", d.library)
	if err != nil {
		t.Fatalf("scan failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, string(library.EventComplete)) {
		t.Errorf("scan output has no completion event:\n%s", out)
	}
	if !strings.Contains(out, "Scanned 2 categories and 2 books") {
		t.Errorf("unexpected scan summary:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("colour codes written to a non-terminal")
	}

	out, err = run(t, d, "stats", "--json")
	if err != nil {
		t.Fatalf("stats failed: %v\n%s", err, out)
	}
	var stats statsOutput
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats --json is not JSON: %v\n%s", err, out)
	}
	if stats.ImageBooks != 2 || stats.PDFBooks != 0 {
		t.Errorf("stats = %+v, want 2 image books", stats)
	}
	if stats.Categories != 2 {
		t.Errorf("Categories = %d, want 2", stats.Categories)
	}
	if stats.LastScan == "" {
		t.Error("last_scan should be set after a successful scan")
	}

	out, err = run(t, d, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "(2 image, 0 PDF)") {
		t.Errorf("unexpected stats table:\n%s", out)
	}
}

func TestScanInvalidRoot(t *testing.T) {
	d := newTestDirs(t)

	out, err := run(t, d, "scan", "--library", filepath.Join(d.library, "missing"))
	if err == nil {
		t.Fatalf("scan of a missing root succeeded:\n%s", out)
	}
	if !strings.Contains(err.Error(), "root_path") {
		t.Errorf("error %q does not name root_path", err)
	}
}

func TestCacheClear(t *testing.T) {
	d := newTestDirs(t)
	cover := filepath.Join(d.cache, "covers", "x.jpg")
	if err := os.MkdirAll(filepath.Dir(cover), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cover, make([]byte, 1<<20), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, d, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	if !strings.Contains(out, "Freed 1.0 MB") {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(cover); !os.IsNotExist(err) {
		t.Errorf("cover still present: %v", err)
	}
}

func TestSettingsShow(t *testing.T) {
	d := newTestDirs(t)

	out, err := run(t, d, "settings", "show")
	if err != nil {
		t.Fatalf("settings show failed: %v", err)
	}
	for _, want := range []string{"# " + d.settings, "root_path:", "image_exts:", "compressedWidth:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInvalidLogLevel(t *testing.T) {
	d := newTestDirs(t)

	if _, err := run(t, d, "--log-level", "loud", "settings", "show"); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDirs(t)

	if _, err := run(t, d, "reindex"); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestEventColor(t *testing.T) {
	tests := []struct {
		ev   library.Event
		want string
	}{
		{library.Event{Type: library.EventInfo}, ""},
		{library.Event{Type: library.EventSuccess}, ansiGreen},
		{library.Event{Type: library.EventWarn}, ansiYellow},
		{library.Event{Type: library.EventComplete, Status: library.StatusOK}, ansiGreen},
		{library.Event{Type: library.EventComplete, Status: library.StatusError}, ansiRed},
	}
	for _, tt := range tests {
		if got := eventColor(tt.ev); got != tt.want {
			t.Errorf("eventColor(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}

	var buf bytes.Buffer
	eventPrinter{out: &buf, color: true}.print(library.Event{Type: library.EventWarn, Message: "odd folder"})
	if !strings.HasPrefix(buf.String(), ansiYellow+"WARN"+ansiReset) {
		t.Errorf("coloured line = %q", buf.String())
	}
}
