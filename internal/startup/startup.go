package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"book-library/internal/logging"
	"book-library/internal/memory"
)

// Set with -ldflags "-X book-library/internal/startup.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is served by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo reports the linker-injected values. When they were not
// injected, the commit and time recorded by the go tool's VCS stamping
// are used instead.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, kv := range bi.Settings {
			switch {
			case kv.Key == "vcs.revision" && info.Commit == "unknown":
				info.Commit = kv.Value
			case kv.Key == "vcs.time" && info.BuildTime == "unknown":
				info.BuildTime = kv.Value
			}
		}
	}
	return info
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds the process configuration. Library behaviour (root path,
// extensions, thresholds) lives in the settings file instead.
type Config struct {
	DataDir      string
	CacheDir     string
	DatabaseDir  string
	SettingsFile string
	// LibraryDir overrides the settings root_path when set.
	LibraryDir string

	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogStaticFiles  bool
	LogHealthChecks bool
	CORSOrigins     string

	// Derived
	DatabasePath string

	RenderCacheEnabled bool
}

// LoadConfig loads an optional .env file, prints the banner and reads
// the configuration from the environment.
func LoadConfig() (*Config, error) {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	printBanner()
	logSystemInfo()

	return configFromEnv()
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("No %s file, using process environment only", path)
			return
		}
		logging.Warn("Failed to load %s: %v", path, err)
		return
	}
	if level, ok := logging.ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		logging.SetLevel(level)
	}
	logging.Info("Loaded environment from %s", path)
}

func configFromEnv() (*Config, error) {
	section("CONFIGURATION")

	dataDir := getEnv("DATA_DIR", "/data")
	cacheDir := getEnv("CACHE_DIR", filepath.Join(dataDir, "cache"))
	databaseDir := getEnv("DATABASE_DIR", dataDir)
	settingsFile := getEnv("SETTINGS_FILE", filepath.Join(dataDir, "settings.yaml"))
	libraryDir := getEnv("LIBRARY_DIR", "")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	corsOrigins := getEnv("CORS_ORIGINS", "")
	logStaticFiles := getEnvBool("LOG_STATIC_FILES", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  DATA_DIR:            %s", dataDir)
	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  SETTINGS_FILE:       %s", settingsFile)
	logging.Info("  LIBRARY_DIR:         %s", orUnset(libraryDir))
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  CORS_ORIGINS:        %s", orUnset(corsOrigins))
	logging.Info("  LOG_STATIC_FILES:    %v", logStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	section("DIRECTORY SETUP")

	var err error
	for _, p := range []*string{&dataDir, &cacheDir, &databaseDir, &settingsFile} {
		if *p, err = filepath.Abs(*p); err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", *p, err)
		}
	}
	if libraryDir != "" {
		if libraryDir, err = filepath.Abs(libraryDir); err != nil {
			return nil, fmt.Errorf("failed to resolve library directory path: %w", err)
		}
		if err := ensureDirectory(libraryDir, "library"); err != nil {
			logging.Warn("  Library directory issue: %v", err)
		}
	}

	config := &Config{
		DataDir:         dataDir,
		CacheDir:        cacheDir,
		DatabaseDir:     databaseDir,
		SettingsFile:    settingsFile,
		LibraryDir:      libraryDir,
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		LogStaticFiles:  logStaticFiles,
		LogHealthChecks: logHealthChecks,
		CORSOrigins:     corsOrigins,
		DatabasePath:    filepath.Join(databaseDir, "library.db"),
	}

	// The data directory holds the scan lock and, by default, the settings.
	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	if err := os.MkdirAll(filepath.Dir(settingsFile), 0o755); err != nil {
		return nil, fmt.Errorf("settings directory error: %w", err)
	}

	config.RenderCacheEnabled = setupOptionalDir(cacheDir, "render cache")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:      ENABLED (required)")
	logging.Info("    Render cache:  %s", enabledString(config.RenderCacheEnabled))
	logging.Info("    Metrics:       %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func orUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

const rule = "------------------------------------------------------------"

// section starts a titled block of the startup log.
func section(format string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(format, args...)
	logging.Info(rule)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs the runtime memory limit chosen at startup.
func LogMemoryConfig(l memory.Limits) {
	section("MEMORY CONFIGURATION")
	switch l.Source {
	case memory.SourceGoMemLimit:
		logging.Info("  GOMEMLIMIT:      %s (from environment)", memory.FormatBytes(l.Heap))
	case memory.SourceContainer:
		logging.Info("  Container limit: %s", memory.FormatBytes(l.Container))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%% of MEMORY_LIMIT)", memory.FormatBytes(l.Heap), l.Ratio*100)
	default:
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(path string, duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  Path: %s", path)
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogSettingsLoaded logs the library settings in effect.
func LogSettingsLoaded(path, rootPath string, imageExts []string, autoScan bool) {
	section("LIBRARY SETTINGS")
	logging.Info("  Settings file:   %s", path)
	logging.Info("  Library root:    %s", rootPath)
	logging.Info("  Page formats:    %s", strings.Join(imageExts, ", "))
	logging.Info("  Scan on startup: %v", autoScan)
}

// LogRendererInit logs renderer setup and checks for the PDF page
// converter.
func LogRendererInit(cacheEnabled, vipsAvailable bool, converter string) {
	section("RENDERER INITIALIZATION")

	if !cacheEnabled {
		logging.Warn("  Render cache directory is not writable")
		logging.Warn("  Covers and thumbnails will fail to generate")
	}
	if vipsAvailable {
		logging.Info("  [OK] libvips is available")
	} else {
		logging.Warn("  libvips unavailable, PDF covers and page counts disabled")
	}

	if err := checkConverter(converter); err != nil {
		logging.Warn("  %s check failed: %v", converter, err)
		logging.Warn("  PDF pages will not render as SVG")
	} else {
		logging.Info("  [OK] %s is available", converter)
	}
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(rootPath string, autoScan bool) {
	section("INDEXER INITIALIZATION")
	logging.Info("  Library root: %s", rootPath)
	if autoScan {
		logging.Info("  Starting background sync...")
	} else {
		logging.Info("  Auto scan disabled, building tree from the database")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Subrouter prefixes carry no methods.
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes at debug level, grouped by
// their first path segment.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Cover and page logging: ON")
	} else {
		logging.Info("    Cover and page logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup returns "api/<resource>" for API routes and the first
// segment otherwise.
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// ShutdownStep runs one named shutdown action and logs its outcome. A
// failing step is logged and does not stop the ones after it.
func ShutdownStep(name string, fn func() error) {
	logging.Debug("  %s...", name)
	start := time.Now()
	if err := fn(); err != nil {
		logging.Warn("  [FAILED] %s: %v", name, err)
		return
	}
	logging.Info("  [OK] %s (%v)", name, time.Since(start).Round(time.Millisecond))
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ____              __      __    _ __
   / __ )____  ____  / /__   / /   (_) /_  _________ ________  __
  / __  / __ \/ __ \/ //_/  / /   / / __ \/ ___/ __ '/ ___/ / / /
 / /_/ / /_/ / /_/ / ,<    / /___/ / /_/ / /  / /_/ / /  / /_/ /
/_____/\____/\____/_/|_|  /_____/_/_.___/_/   \__,_/_/   \__, /
                                                        /____/
------------------------------------------------------------`
	fmt.Println(banner)
	info := GetBuildInfo()
	logging.Info("  Version %s, commit %s, built %s", info.Version, info.Commit, info.BuildTime)
	logging.Info("  Started %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	procs, cpus := runtime.GOMAXPROCS(0), runtime.NumCPU()
	logging.Info("  Go %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if procs < cpus {
		logging.Info("  CPUs: %d usable of %d (container limit)", procs, cpus)
	} else {
		logging.Info("  CPUs: %d", cpus)
	}
	if !logging.IsDebugEnabled() {
		return
	}
	wd, _ := os.Getwd()
	host, _ := os.Hostname()
	logging.Debug("  Working dir: %s", wd)
	logging.Debug("  Hostname:    %s", host)
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if name == "library" {
			return fmt.Errorf("library directory %s does not exist", path)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// checkConverter verifies that binary is on PATH and answers -v.
func checkConverter(binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", binary)
	}
	logging.Debug("  %s path: %s", binary, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// poppler tools print their version on stderr.
	output, err := exec.CommandContext(ctx, path, "-v").CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", binary, err)
	}
	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  %s version: %s", binary, strings.TrimSpace(first))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// getEnvBool accepts anything strconv.ParseBool does. Unset, empty or
// unparsable values give fallback.
func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("Ignoring %s=%q: not a boolean", key, v)
		return fallback
	}
	return b
}
