package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"book-library/internal/database"
	"book-library/internal/logging"
	"book-library/internal/media"
	"book-library/internal/settings"
	"book-library/internal/startup"
	"book-library/internal/transcoder"
)

const defaultTimeout = 30 * time.Second

// options are the global flags shared by every command.
type options struct {
	databaseDir  string
	settingsFile string
	cacheDir     string
	logLevel     string

	out   io.Writer
	color bool
}

func (o *options) databasePath() string {
	return filepath.Join(o.databaseDir, "library.db")
}

func (o *options) openDatabase(ctx context.Context) (*database.Database, error) {
	db, err := database.New(ctx, o.databasePath())
	if err != nil {
		return nil, fmt.Errorf("open database %s (check --database-dir): %w", o.databasePath(), err)
	}
	return db, nil
}

// openSettings loads the settings file; root, when set, replaces the
// configured library root for this invocation only.
func (o *options) openSettings(root string) (*settings.Store, error) {
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		root = abs
	}
	return settings.Open(o.settingsFile, root)
}

func (o *options) renderer(coverWidth int) *media.Renderer {
	return media.NewRenderer(media.RendererConfig{
		CacheDir:   o.cacheDir,
		CoverWidth: coverWidth,
		SVG:        transcoder.New(filepath.Join(o.cacheDir, "pdf")),
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// isTerminal reports whether w is a terminal, which enables colour.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newRootCmd(out io.Writer) *cobra.Command {
	dataDir := envOr("DATA_DIR", "/data")
	o := &options{out: out, color: isTerminal(out)}

	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Operate a book library without the server",
		Long:          "libctl syncs, inspects and maintains the database, render cache and settings used by the book library server.",
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if o.logLevel == "" {
				return nil
			}
			level, ok := logging.ParseLevel(o.logLevel)
			if !ok {
				return fmt.Errorf("invalid --log-level %q (want debug, info, warn or error)", o.logLevel)
			}
			logging.SetLevel(level)
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&o.databaseDir, "database-dir", envOr("DATABASE_DIR", dataDir), "directory of library.db")
	flags.StringVar(&o.settingsFile, "settings", envOr("SETTINGS_FILE", filepath.Join(dataDir, "settings.yaml")), "settings file")
	flags.StringVar(&o.cacheDir, "cache-dir", envOr("CACHE_DIR", filepath.Join(dataDir, "cache")), "render cache directory")
	flags.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newScanCmd(o),
		newStatsCmd(o),
		newCacheCmd(o),
		newSettingsCmd(o),
	)
	return root
}
