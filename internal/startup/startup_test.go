package startup

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfoInjectedValues(t *testing.T) {
	prevVersion, prevCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = prevVersion, prevCommit })

	Version, Commit = "1.2.3", "abc1234"
	info := GetBuildInfo()
	if info.Version != "1.2.3" || info.Commit != "abc1234" {
		t.Errorf("GetBuildInfo() = %+v, want injected version and commit", info)
	}
}

func TestGetEnv(t *testing.T) {
	const key = "LIBRARY_TEST_VALUE"

	os.Unsetenv(key)
	if got := getEnv(key, "fallback"); got != "fallback" {
		t.Errorf("unset: got %q", got)
	}

	t.Setenv(key, "custom")
	if got := getEnv(key, "fallback"); got != "custom" {
		t.Errorf("set: got %q", got)
	}

	// An explicitly empty variable is a value, not an absence.
	t.Setenv(key, "")
	if got := getEnv(key, "fallback"); got != "" {
		t.Errorf("empty: got %q", got)
	}
}

func TestShutdownStep(t *testing.T) {
	ran := 0
	ShutdownStep("ok", func() error { ran++; return nil })
	ShutdownStep("failing", func() error { ran++; return errors.New("boom") })
	if ran != 2 {
		t.Errorf("ran %d steps, want 2", ran)
	}
}

func TestConfigFromEnv(t *testing.T) {
	dataDir := t.TempDir()
	libraryDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("LIBRARY_DIR", libraryDir)
	t.Setenv("PORT", "9000")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173")
	for _, key := range []string{"CACHE_DIR", "DATABASE_DIR", "SETTINGS_FILE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() error = %v", err)
	}

	if cfg.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dataDir)
	}
	if want := filepath.Join(dataDir, "cache"); cfg.CacheDir != want {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, want)
	}
	if want := filepath.Join(dataDir, "library.db"); cfg.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.DatabasePath, want)
	}
	if want := filepath.Join(dataDir, "settings.yaml"); cfg.SettingsFile != want {
		t.Errorf("SettingsFile = %q, want %q", cfg.SettingsFile, want)
	}
	if cfg.LibraryDir != libraryDir {
		t.Errorf("LibraryDir = %q, want %q", cfg.LibraryDir, libraryDir)
	}
	if cfg.Port != "9000" || cfg.MetricsPort != "9090" {
		t.Errorf("ports = %s/%s, want 9000/9090", cfg.Port, cfg.MetricsPort)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled should be false")
	}
	if cfg.CORSOrigins != "http://localhost:5173" {
		t.Errorf("CORSOrigins = %q", cfg.CORSOrigins)
	}
	if !cfg.RenderCacheEnabled {
		t.Error("render cache should be enabled for a writable directory")
	}
	if info, err := os.Stat(cfg.CacheDir); err != nil || !info.IsDir() {
		t.Errorf("cache directory was not created: %v", err)
	}
}

func TestConfigFromEnvDatabaseDirNotADirectory(t *testing.T) {
	dataDir := t.TempDir()
	blocker := filepath.Join(dataDir, "db")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("DATABASE_DIR", blocker)

	if _, err := configFromEnv(); err == nil {
		t.Fatal("expected an error when DATABASE_DIR is a file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "BOOKLIB_TEST_FROM_FILE=file\nBOOKLIB_TEST_PRESET=file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOOKLIB_TEST_PRESET", "process")
	t.Cleanup(func() { os.Unsetenv("BOOKLIB_TEST_FROM_FILE") })

	loadDotEnv(path)

	if got := os.Getenv("BOOKLIB_TEST_FROM_FILE"); got != "file" {
		t.Errorf("BOOKLIB_TEST_FROM_FILE = %q, want file", got)
	}
	if got := os.Getenv("BOOKLIB_TEST_PRESET"); got != "process" {
		t.Errorf("existing variables must win, got %q", got)
	}

	// A missing file is not an error.
	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/health":                           "health",
		"/api/books/{id}":                   "api/books",
		"/api/custom-categories/{id}/books": "api/custom-categories",
		"/api":                              "api",
		"/":                                 "",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.HandleFunc("/health", noop).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/books/{id}/favorite", noop).Methods(http.MethodPost, http.MethodDelete)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	seen := map[string]bool{}
	for _, route := range routes {
		seen[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{"GET /health", "POST /api/books/{id}/favorite", "DELETE /api/books/{id}/favorite", "* /api"} {
		if !seen[want] {
			t.Errorf("missing route %q in %v", want, routes)
		}
	}
}
