// Command libctl operates a book library from the shell, without the
// server.
//
// Usage:
//
//	libctl [--database-dir DIR] [--settings FILE] [--cache-dir DIR] [--log-level LEVEL] <command>
//
// Commands:
//
//	scan           Sync the library root into the database, printing
//	               progress events. --library overrides root_path.
//	stats          Library totals and render cache size (--json).
//	cache clear    Delete the render cache.
//	settings show  Print the effective settings as YAML.
//
// The flags default to the server's environment: DATABASE_DIR,
// SETTINGS_FILE and CACHE_DIR, each falling back to a location under
// DATA_DIR (default /data). Output is coloured only when stdout is a
// terminal.
package main
