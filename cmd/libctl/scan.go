package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"book-library/internal/indexer"
	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/media"
	"book-library/internal/treecache"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

func newScanCmd(o *options) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Sync the library folder into the database",
		Long: `Walk the library root, reconcile it into the database and print the
progress events as they happen. The server's scan lock is honoured, so
scan fails while the server is syncing the same database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd.Context(), o, root)
		},
	}
	cmd.Flags().StringVar(&root, "library", "", "library root, overriding root_path for this run")
	return cmd
}

func runScan(ctx context.Context, o *options, root string) error {
	store, err := o.openSettings(root)
	if err != nil {
		return err
	}
	s := store.Get()
	if err := store.Validate(s); err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	db, err := o.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, PDF page counts disabled: %v", err)
	} else {
		defer media.ShutdownVips()
	}

	renderer := o.renderer(s.CoverWidth)
	idx := indexer.New(db, treecache.New(db), media.VipsPDF{}, renderer, renderer, indexer.Config{
		RootPath: s.RootPath,
		DataDir:  o.databaseDir,
		Scanner:  indexer.ScannerConfigFrom(s),
	})

	p := eventPrinter{out: o.out, color: o.color}
	res, err := idx.SyncStream(ctx, p.print)
	if err != nil {
		return err
	}

	fmt.Fprintf(o.out, "\nScanned %d categories and %d books\n", res.Scanned.Categories, res.Scanned.Books)
	fmt.Fprintf(o.out, "Added %d categories, %d books; updated %d books; deleted %d categories, %d books\n",
		res.Synced.AddedCategories, res.Synced.AddedBooks, res.Synced.UpdatedBooks,
		res.Synced.DeletedCategories, res.Synced.DeletedBooks)
	return nil
}

type eventPrinter struct {
	out   io.Writer
	color bool
}

func (p eventPrinter) print(ev library.Event) {
	label := string(ev.Type)
	if p.color {
		if c := eventColor(ev); c != "" {
			label = c + label + ansiReset
		}
	}
	fmt.Fprintf(p.out, "%-8s %s\n", label, ev.Message)
}

func eventColor(ev library.Event) string {
	switch ev.Type {
	case library.EventSuccess:
		return ansiGreen
	case library.EventWarn:
		return ansiYellow
	case library.EventComplete:
		if ev.Status == library.StatusError {
			return ansiRed
		}
		return ansiGreen
	default:
		return ""
	}
}
