// Package startup loads process configuration and writes the startup and
// shutdown log sections.
//
// # Configuration
//
// [LoadConfig] first loads an optional .env file (ENV_FILE, default
// ".env") without overriding variables already present, then reads:
//
//   - DATA_DIR: scan lock and default location of everything below (default: /data)
//   - CACHE_DIR: render cache for covers, thumbnails and SVG pages (default: $DATA_DIR/cache)
//   - DATABASE_DIR: directory of library.db (default: $DATA_DIR)
//   - SETTINGS_FILE: library settings YAML (default: $DATA_DIR/settings.yaml)
//   - LIBRARY_DIR: overrides the root_path setting when set
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus port (default: 9090)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - CORS_ORIGINS: comma separated allowed origins, empty disables CORS
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_STATIC_FILES: log cover and page requests (default: false)
//   - LOG_HEALTH_CHECKS: log health probe requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// The database directory must be writable. An unwritable cache directory
// only disables rendering.
//
// # Build Information
//
// Version, Commit and BuildTime are injected with -ldflags and exposed
// through [GetBuildInfo].
//
// # Lifecycle Logging
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogDatabaseInit(config.DatabasePath, time.Since(dbStart))
//	startup.LogIndexerInit(settings.RootPath, settings.AutoScanOnStartup)
//	startup.LogServerStarted(startup.ServerConfig{Port: config.Port})
//	...
//	startup.LogShutdownInitiated("SIGTERM")
//	startup.LogShutdownComplete()
package startup
